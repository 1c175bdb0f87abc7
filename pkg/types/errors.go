package types

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame marks structurally invalid input. Such frames are dropped.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnsupportedOption marks a well-formed request for an option the device does not serve.
	ErrUnsupportedOption = errors.New("unsupported option")
	// ErrValidationFailed marks a DCP Set carrying an out-of-range value.
	ErrValidationFailed = errors.New("validation failed")
	// ErrWatchdogExpired marks a cyclic session that lost its controller.
	ErrWatchdogExpired = errors.New("watchdog expired")
	// ErrTransferStatus marks a cyclic frame whose transfer status is non-zero.
	ErrTransferStatus = errors.New("transfer status error")
)

// BlockErrorCode is the error byte of a DCP Control/Response block
type BlockErrorCode uint8

// DCP block error codes
const (
	BlockErrorNone               BlockErrorCode = 0
	BlockErrorOptionNotSupported BlockErrorCode = 1
	BlockErrorOptionNotSet       BlockErrorCode = 2
	BlockErrorResource           BlockErrorCode = 3
	BlockErrorSetNotPossible     BlockErrorCode = 4
)

// String returns string representation of BlockErrorCode
func (c BlockErrorCode) String() string {
	switch c {
	case BlockErrorNone:
		return "NoError"
	case BlockErrorOptionNotSupported:
		return "OptionNotSupported"
	case BlockErrorOptionNotSet:
		return "OptionNotSet"
	case BlockErrorResource:
		return "ResourceError"
	case BlockErrorSetNotPossible:
		return "SetNotPossible"
	default:
		return fmt.Sprintf("BlockError(%d)", uint8(c))
	}
}

// BlockError reports why a single DCP block could not be served
type BlockError struct {
	Option    uint8
	Suboption uint8
	Code      BlockErrorCode
	Err       error
}

func (e *BlockError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("block %d/%d: %s: %v", e.Option, e.Suboption, e.Code, e.Err)
	}
	return fmt.Sprintf("block %d/%d: %s", e.Option, e.Suboption, e.Code)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}
