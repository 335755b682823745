package device

import "errors"

var (
	// ErrInvalidArgument indicates that a caller supplied an argument which violates
	// the preconditions of an operation, such as a fingerprint of the wrong length.
	ErrInvalidArgument = errors.New("device: invalid argument")

	// ErrProtocol indicates that the device returned data which violates the framing
	// rules of its communication protocol, such as a bad acknowledgement byte.
	ErrProtocol = errors.New("device: protocol violation")

	// ErrDataFormat indicates that device memory decoded without transport errors,
	// but its contents do not have the expected structure.
	ErrDataFormat = errors.New("device: unexpected data format")
)
