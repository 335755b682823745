// Package device defines the contracts shared by dive computer drivers: the error
// taxonomy, the event stream emitted during transfers, and the memory access
// interfaces the generic helpers are built on.
package device

import "context"

// Reader provides random access to the memory of a dive computer.
//
// Read fills p with the device memory starting at address. Implementations
// split large requests into device sized packets internally, so p may be of
// any length. The context is checked between packets; an in-flight packet is
// never interrupted.
type Reader interface {
	Read(ctx context.Context, address uint32, p []byte) error
}

// DiveCallback is invoked once per dive during enumeration, newest dive first.
//
// The data slice holds the complete dive record and fingerprint identifies it
// uniquely. Both slices alias the enumeration scratch buffer; callers must copy
// whatever they keep. Returning false stops the enumeration without error.
type DiveCallback func(data, fingerprint []byte) bool

// DumpRead fills data with a linear image of the device memory starting at
// address zero, reading blocksize bytes per request and reporting progress
// after each block.
func DumpRead(ctx context.Context, r Reader, events EventFunc, data []byte, blocksize int) error {
	if r == nil || blocksize <= 0 {
		return ErrInvalidArgument
	}

	progress := NewProgress(events, uint32(len(data)))

	nbytes := 0
	for nbytes < len(data) {
		length := len(data) - nbytes
		if length > blocksize {
			length = blocksize
		}

		if err := r.Read(ctx, uint32(nbytes), data[nbytes:nbytes+length]); err != nil {
			return err
		}

		progress.Advance(uint32(length))
		nbytes += length
	}

	return nil
}
