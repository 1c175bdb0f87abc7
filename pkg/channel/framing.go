package channel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"avaneesh/pnio-go/pkg/ethernet"
)

// ErrFrameSize is returned for a tunnelled frame whose length prefix is out of range
var ErrFrameSize = errors.New("tunnelled frame size out of range")

// Stream tunnels (TCP, QUIC) carry each Ethernet frame behind a 2-byte
// big-endian length.
const lengthPrefix = 2

func readFramed(r io.Reader) ([]byte, error) {
	var prefix [lengthPrefix]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(prefix[:]))
	if n < ethernet.HeaderLength || n > ethernet.MaxFrameLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameSize, n)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// writeFramed writes prefix and frame in one call so concurrent streams
// never see a split record.
func writeFramed(w io.Writer, frame []byte) error {
	if len(frame) < ethernet.HeaderLength || len(frame) > ethernet.MaxFrameLength {
		return fmt.Errorf("%w: %d bytes", ErrFrameSize, len(frame))
	}
	buf := make([]byte, lengthPrefix, lengthPrefix+len(frame))
	binary.BigEndian.PutUint16(buf, uint16(len(frame)))
	_, err := w.Write(append(buf, frame...))
	return err
}
