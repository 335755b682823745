// Package rbstream streams the ring buffer of a dive computer as a sequence of
// fixed size device reads.
//
// Dive computers store their profile data in a circular memory region. New data
// overwrites the oldest data, and the region rarely starts or ends at the
// position of interest. A Stream hides the wrap point and the device packet
// size behind a plain sequential reader, in either direction.
package rbstream

import (
	"context"
	"fmt"

	"github.com/william-perry/go-mares/device"
)

// Direction selects the order in which a Stream walks the ring buffer.
type Direction int

const (
	// Forward reads from the start address towards newer data.
	Forward Direction = iota
	// Backward reads from the start address towards older data.
	Backward
)

// Stream reads a circular memory region [begin, end) through a device.Reader.
//
// A backward stream starting at an address returns the bytes immediately
// preceding that address, oldest byte first within each request. Device reads
// are issued in whole packets and cached, so consecutive small requests do not
// multiply the device traffic. Packets never span the wrap point.
type Stream struct {
	reader     device.Reader
	direction  Direction
	pagesize   uint32
	packetsize uint32
	begin      uint32
	end        uint32
	address    uint32
	skip       int
	offset     int
	available  int
	cache      []byte
}

// New creates a stream over the ring buffer [begin, end) starting at address.
//
// The boundaries must be multiples of pagesize and the start address must lie
// within the region. The packet size is rounded down to a whole number of
// pages; a packet size smaller than one page is invalid.
func New(reader device.Reader, pagesize, packetsize, begin, end, address uint32, direction Direction) (*Stream, error) {
	if reader == nil {
		return nil, fmt.Errorf("%w: rbstream: reader is nil", device.ErrInvalidArgument)
	}
	if pagesize == 0 {
		return nil, fmt.Errorf("%w: rbstream: page size is zero", device.ErrInvalidArgument)
	}

	// Page align the packet size.
	packetsize -= packetsize % pagesize
	if packetsize == 0 {
		return nil, fmt.Errorf("%w: rbstream: packet size smaller than one page", device.ErrInvalidArgument)
	}

	if begin >= end || begin%pagesize != 0 || end%pagesize != 0 {
		return nil, fmt.Errorf("%w: rbstream: invalid ring buffer boundaries [0x%08X, 0x%08X)", device.ErrInvalidArgument, begin, end)
	}
	if address < begin || address > end {
		return nil, fmt.Errorf("%w: rbstream: address 0x%08X outside ring buffer", device.ErrInvalidArgument, address)
	}

	s := &Stream{
		reader:     reader,
		direction:  direction,
		pagesize:   pagesize,
		packetsize: packetsize,
		begin:      begin,
		end:        end,
		cache:      make([]byte, packetsize),
	}

	// Page align the start address. The skipped bytes are discarded from the
	// first packet.
	if direction == Forward {
		s.address = address - address%pagesize
		s.skip = int(address - s.address)
	} else {
		s.address = address + (pagesize-address%pagesize)%pagesize
		s.skip = int(s.address - address)
	}

	return s, nil
}

// Read fills p with the next len(p) bytes of the stream. Progress, when not
// nil, advances by the number of bytes consumed from the device.
func (s *Stream) Read(ctx context.Context, progress *device.Progress, p []byte) error {
	if s.direction == Forward {
		return s.readForward(ctx, progress, p)
	}

	return s.readBackward(ctx, progress, p)
}

func (s *Stream) readForward(ctx context.Context, progress *device.Progress, p []byte) error {
	nbytes := 0
	for nbytes < len(p) {
		if s.available == 0 {
			// Handle the wrap point.
			if s.address == s.end {
				s.address = s.begin
			}

			// Packets never cross the end boundary.
			length := s.packetsize
			if s.end-s.address < length {
				length = s.end - s.address
			}

			if err := s.reader.Read(ctx, s.address, s.cache[:length]); err != nil {
				return err
			}

			s.address += length
			s.offset = s.skip
			s.available = int(length) - s.skip
			s.skip = 0
		}

		length := s.available
		if length > len(p)-nbytes {
			length = len(p) - nbytes
		}

		copy(p[nbytes:nbytes+length], s.cache[s.offset:s.offset+length])
		s.offset += length
		s.available -= length

		if progress != nil {
			progress.Advance(uint32(length))
		}

		nbytes += length
	}

	return nil
}

func (s *Stream) readBackward(ctx context.Context, progress *device.Progress, p []byte) error {
	nbytes := 0
	offset := len(p)
	for nbytes < len(p) {
		if s.available == 0 {
			// Handle the wrap point.
			if s.address == s.begin {
				s.address = s.end
			}

			// Packets never cross the begin boundary.
			length := s.packetsize
			if s.address-s.begin < length {
				length = s.address - s.begin
			}

			address := s.address - length
			if err := s.reader.Read(ctx, address, s.cache[:length]); err != nil {
				return err
			}

			s.address = address
			s.available = int(length) - s.skip
			s.skip = 0
		}

		length := s.available
		if length > len(p)-nbytes {
			length = len(p) - nbytes
		}

		offset -= length
		s.available -= length
		copy(p[offset:offset+length], s.cache[s.available:s.available+length])

		if progress != nil {
			progress.Advance(uint32(length))
		}

		nbytes += length
	}

	return nil
}
