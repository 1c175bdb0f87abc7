package dcp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"avaneesh/pnio-go/pkg/types"
)

// Block is one option/suboption TLV. Payload holds the raw value including any
// block qualifier or block info prefix; unknown options keep their bytes untouched.
type Block struct {
	Option    uint8
	Suboption uint8
	Payload   []byte
}

// Key returns the packed option/suboption pair
func (b Block) Key() Key {
	return MakeKey(b.Option, b.Suboption)
}

// encodedLength returns the on-wire length including padding to an even boundary
func (b Block) encodedLength() int {
	n := BlockHeaderLength + len(b.Payload)
	return n + n%2
}

// String returns string representation of block
func (b Block) String() string {
	return fmt.Sprintf("%s[%d]", b.Key(), len(b.Payload))
}

// PDU is a decoded DCP message, starting at the frame ID
type PDU struct {
	FrameID       uint16
	ServiceID     ServiceID
	ServiceType   ServiceType
	Xid           uint32
	ResponseDelay uint16
	Blocks        []Block
}

// IsRequest reports whether the PDU is a request
func (p *PDU) IsRequest() bool {
	return p.ServiceType == ServiceTypeRequest
}

// selectorList reports whether the block list is a bare option/suboption list.
// Get requests carry only the options to read.
func (p *PDU) selectorList() bool {
	return p.ServiceID == ServiceGet && p.ServiceType == ServiceTypeRequest
}

func malformed(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %w: %s", types.ErrMalformedFrame, err, fmt.Sprintf(format, args...))
}

// Decode parses a DCP PDU. payload starts at the frame ID, right after the EtherType.
// Trailing bytes beyond the declared data length (Ethernet padding) are ignored.
func Decode(payload []byte) (*PDU, error) {
	if len(payload) < HeaderLength {
		return nil, malformed(ErrHeaderTooShort, "%d bytes", len(payload))
	}

	p := &PDU{
		FrameID:       binary.BigEndian.Uint16(payload[0:2]),
		ServiceID:     ServiceID(payload[2]),
		ServiceType:   ServiceType(payload[3]),
		Xid:           binary.BigEndian.Uint32(payload[4:8]),
		ResponseDelay: binary.BigEndian.Uint16(payload[8:10]),
	}
	if !IsFrameID(p.FrameID) {
		return nil, malformed(ErrInvalidFrameID, "0x%04X", p.FrameID)
	}

	dataLength := int(binary.BigEndian.Uint16(payload[10:12]))
	data := payload[HeaderLength:]
	if dataLength > len(data) {
		return nil, malformed(ErrDataLength, "declared %d, have %d", dataLength, len(data))
	}
	data = data[:dataLength]

	var err error
	if p.selectorList() {
		p.Blocks, err = decodeSelectors(data)
	} else {
		p.Blocks, err = decodeBlocks(data)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decodeSelectors(data []byte) ([]Block, error) {
	if len(data)%2 != 0 {
		return nil, malformed(ErrBlockTruncated, "odd selector list length %d", len(data))
	}
	blocks := make([]Block, 0, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		blocks = append(blocks, Block{Option: data[i], Suboption: data[i+1]})
	}
	return blocks, nil
}

func decodeBlocks(data []byte) ([]Block, error) {
	var blocks []Block
	offset := 0
	for offset < len(data) {
		remaining := len(data) - offset
		if remaining < BlockHeaderLength {
			return nil, malformed(ErrBlockTruncated, "%d bytes left at offset %d", remaining, offset)
		}
		length := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		if length > remaining-BlockHeaderLength {
			return nil, malformed(ErrBlockTruncated, "block %d/%d declares %d bytes, %d left",
				data[offset], data[offset+1], length, remaining-BlockHeaderLength)
		}
		b := Block{Option: data[offset], Suboption: data[offset+1]}
		if length > 0 {
			b.Payload = data[offset+BlockHeaderLength : offset+BlockHeaderLength+length]
		}
		blocks = append(blocks, b)

		offset += BlockHeaderLength + length
		// The pad byte after an odd-length block may be missing on the last block.
		if length%2 == 1 && offset < len(data) {
			offset++
		}
	}
	return blocks, nil
}

// DataLength returns the encoded length of the block list
func (p *PDU) DataLength() int {
	if p.selectorList() {
		return 2 * len(p.Blocks)
	}
	n := 0
	for _, b := range p.Blocks {
		n += b.encodedLength()
	}
	return n
}

// AppendTo appends the encoded PDU to buf
func (p *PDU) AppendTo(buf []byte) ([]byte, error) {
	dataLength := p.DataLength()
	if dataLength > MaxDataLength {
		return buf, fmt.Errorf("%w: %d bytes of blocks", ErrPDUTooLarge, dataLength)
	}
	for _, b := range p.Blocks {
		if len(b.Payload) > 0xFFFF {
			return buf, fmt.Errorf("%w: block %s", ErrPDUTooLarge, b.Key())
		}
	}

	buf = binary.BigEndian.AppendUint16(buf, p.FrameID)
	buf = append(buf, uint8(p.ServiceID), uint8(p.ServiceType))
	buf = binary.BigEndian.AppendUint32(buf, p.Xid)
	buf = binary.BigEndian.AppendUint16(buf, p.ResponseDelay)
	buf = binary.BigEndian.AppendUint16(buf, uint16(dataLength))

	if p.selectorList() {
		for _, b := range p.Blocks {
			buf = append(buf, b.Option, b.Suboption)
		}
		return buf, nil
	}
	for _, b := range p.Blocks {
		buf = append(buf, b.Option, b.Suboption)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(b.Payload)))
		buf = append(buf, b.Payload...)
		if len(b.Payload)%2 == 1 {
			buf = append(buf, 0)
		}
	}
	return buf, nil
}

// Encode returns the encoded PDU
func (p *PDU) Encode() ([]byte, error) {
	return p.AppendTo(make([]byte, 0, HeaderLength+p.DataLength()))
}

// Find returns the first block with the given key
func (p *PDU) Find(k Key) (Block, bool) {
	for _, b := range p.Blocks {
		if b.Key() == k {
			return b, true
		}
	}
	return Block{}, false
}

// Equal reports whether two PDUs carry the same fields and blocks
func (p *PDU) Equal(o *PDU) bool {
	if p.FrameID != o.FrameID || p.ServiceID != o.ServiceID || p.ServiceType != o.ServiceType ||
		p.Xid != o.Xid || p.ResponseDelay != o.ResponseDelay || len(p.Blocks) != len(o.Blocks) {
		return false
	}
	for i := range p.Blocks {
		a, b := p.Blocks[i], o.Blocks[i]
		if a.Option != b.Option || a.Suboption != b.Suboption || !bytes.Equal(a.Payload, b.Payload) {
			return false
		}
	}
	return true
}

// String returns string representation of PDU
func (p *PDU) String() string {
	blocks := make([]string, len(p.Blocks))
	for i, b := range p.Blocks {
		blocks[i] = b.String()
	}
	return fmt.Sprintf("DCP{FrameID=0x%04X, %s.%s, Xid=0x%08X, Delay=%d, Blocks=[%s]}",
		p.FrameID, p.ServiceID, p.ServiceType, p.Xid, p.ResponseDelay, strings.Join(blocks, " "))
}
