package persist

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"avaneesh/pnio-go/pkg/types"
)

const (
	createIdentityTable = `
		CREATE TABLE IF NOT EXISTS station_identity (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			vendor_id INTEGER NOT NULL,
			device_id INTEGER NOT NULL,
			instance INTEGER NOT NULL,
			station_name TEXT NOT NULL,
			ip_address TEXT NOT NULL,
			netmask TEXT NOT NULL,
			gateway TEXT NOT NULL,
			mac TEXT NOT NULL,
			vendor_name TEXT NOT NULL,
			device_role INTEGER NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`

	upsertIdentity = `
		INSERT INTO station_identity
			(id, vendor_id, device_id, instance, station_name, ip_address, netmask, gateway, mac, vendor_name, device_role, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			vendor_id = excluded.vendor_id,
			device_id = excluded.device_id,
			instance = excluded.instance,
			station_name = excluded.station_name,
			ip_address = excluded.ip_address,
			netmask = excluded.netmask,
			gateway = excluded.gateway,
			mac = excluded.mac,
			vendor_name = excluded.vendor_name,
			device_role = excluded.device_role,
			updated_at = CURRENT_TIMESTAMP`

	selectIdentity = `
		SELECT vendor_id, device_id, instance, station_name, ip_address, netmask, gateway, mac, vendor_name, device_role
		FROM station_identity WHERE id = 1`

	deleteIdentity = `DELETE FROM station_identity`
)

// SQLiteStore keeps the identity in a single-row SQLite table
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createIdentityTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load implements Store
func (s *SQLiteStore) Load() (types.StationIdentity, error) {
	var (
		id                     types.StationIdentity
		addr, mask, gw, macStr string
	)
	err := s.db.QueryRow(selectIdentity).Scan(
		&id.VendorID, &id.DeviceID, &id.Instance, &id.StationName,
		&addr, &mask, &gw, &macStr, &id.VendorName, &id.DeviceRole,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.StationIdentity{}, ErrNotFound
	}
	if err != nil {
		return types.StationIdentity{}, fmt.Errorf("load identity: %w", err)
	}

	for _, f := range []struct {
		dst *types.IPv4
		src string
	}{{&id.IP.Address, addr}, {&id.IP.Netmask, mask}, {&id.IP.Gateway, gw}} {
		if err := f.dst.UnmarshalText([]byte(f.src)); err != nil {
			return types.StationIdentity{}, fmt.Errorf("load identity: %w", err)
		}
	}
	if err := id.MAC.UnmarshalText([]byte(macStr)); err != nil {
		return types.StationIdentity{}, fmt.Errorf("load identity: %w", err)
	}
	return id, nil
}

// Save implements Store
func (s *SQLiteStore) Save(id types.StationIdentity) error {
	_, err := s.db.Exec(upsertIdentity,
		id.VendorID, id.DeviceID, id.Instance, id.StationName,
		id.IP.Address.String(), id.IP.Netmask.String(), id.IP.Gateway.String(),
		id.MAC.String(), id.VendorName, id.DeviceRole,
	)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// Reset implements Store
func (s *SQLiteStore) Reset() error {
	if _, err := s.db.Exec(deleteIdentity); err != nil {
		return fmt.Errorf("reset identity: %w", err)
	}
	return nil
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
