// Package persist keeps the station identity across power cycles.
package persist

import (
	"errors"
	"fmt"

	"avaneesh/pnio-go/pkg/types"
)

// ErrNotFound is returned by Load when no identity was saved yet
var ErrNotFound = errors.New("no stored identity")

// Store persists one station identity. Reset removes it so the next Load
// falls back to factory data.
type Store interface {
	Load() (types.StationIdentity, error)
	Save(identity types.StationIdentity) error
	Reset() error
	Close() error
}

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open creates the store named by backend at path
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendFile:
		return NewFileStore(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", backend)
	}
}

// LoadOr returns the stored identity, or factory when nothing is stored.
// The MAC always comes from factory since it belongs to the hardware.
func LoadOr(s Store, factory types.StationIdentity) (types.StationIdentity, error) {
	id, err := s.Load()
	switch {
	case errors.Is(err, ErrNotFound):
		return factory, nil
	case err != nil:
		return factory, err
	}
	id.MAC = factory.MAC
	if err := types.ValidateStationName(id.StationName); err != nil {
		return factory, fmt.Errorf("stored identity: %w", err)
	}
	if err := id.IP.Validate(); err != nil {
		return factory, fmt.Errorf("stored identity: %w", err)
	}
	return id, nil
}
