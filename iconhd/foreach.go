package iconhd

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/william-perry/go-mares/device"
	"github.com/william-perry/go-mares/rbstream"
)

// serialNumberAddress is where the serial number is stored in device memory.
const serialNumberAddress = 0x0C

// pointerAddresses holds the locations of the end of profile pointer. The
// second location is only consulted when the first holds the empty marker.
var pointerAddresses = [2]uint32{0x2001, 0x3001}

// emptyMarker fills unused pointer locations and erased profile memory.
const emptyMarker = 0xFFFFFFFF

// Foreach enumerates the dives stored on the device, newest first, and invokes
// callback once per dive.
//
// The profile ring buffer is walked backwards from the end of the newest dive.
// Each record is announced by its trailing header, which carries the dive type
// and sample count from which the full record size follows. The walk stops,
// without error, on the first of:
//
//   - a header with sentinel type or sample count fields, marking erased memory
//   - a record larger than the remaining data, truncated by the ring wrap
//   - a record whose stored length disagrees with its computed length,
//     partially overwritten by newer dives
//   - the dive matching the fingerprint set with SetFingerprint
//   - a callback returning false
//
// A missing profile pointer means the device holds no dives; Foreach returns
// nil without invoking the callback.
func (d *Device) Foreach(ctx context.Context, callback device.DiveCallback) error {
	lay := d.layout
	capacity := int(lay.rbProfileEnd - lay.rbProfileBegin)

	// Enable progress notifications.
	progress := device.NewProgress(d.events, uint32(capacity)+4)

	d.emitVendor()

	// Read the serial number.
	var serial [4]byte
	if err := d.Read(ctx, serialNumberAddress, serial[:]); err != nil {
		return fmt.Errorf("iconhd: read serial number: %w", err)
	}
	progress.Advance(uint32(len(serial)))

	d.emit(device.InfoEvent{
		Model:    uint32(d.model),
		Firmware: 0,
		Serial:   binary.LittleEndian.Uint32(serial[:]),
	})

	prefix := d.model.headerPrefix()

	// Locate the end of the newest profile data.
	head := uint32(emptyMarker)
	for _, address := range pointerAddresses {
		var pointer [4]byte
		if err := d.Read(ctx, address, pointer[:]); err != nil {
			return fmt.Errorf("iconhd: read profile pointer: %w", err)
		}

		progress.Maximum += uint32(len(pointer))
		progress.Advance(uint32(len(pointer)))

		head = binary.LittleEndian.Uint32(pointer[:])
		if head != emptyMarker {
			break
		}
	}
	if head < lay.rbProfileBegin || head >= lay.rbProfileEnd {
		if head == emptyMarker {
			return nil // No dives available.
		}

		d.logger.Error("iconhd: profile pointer out of range", "pointer", fmt.Sprintf("0x%08X", head))

		return fmt.Errorf("%w: iconhd: profile pointer 0x%08X out of range", device.ErrDataFormat, head)
	}

	stream, err := rbstream.New(d, 1, uint32(d.packetsize), lay.rbProfileBegin, lay.rbProfileEnd, head, rbstream.Backward)
	if err != nil {
		return err
	}

	// The scratch buffer is filled back to front, so every complete record is
	// contiguous and in device byte order when it is handed to the callback.
	buffer := make([]byte, capacity)

	offset := capacity
	for offset >= prefix+4 {
		// Read the trailing part of the header, enough to learn the dive type
		// and the number of samples.
		if err := stream.Read(ctx, progress, buffer[offset-prefix:offset]); err != nil {
			return fmt.Errorf("iconhd: read dive header: %w", err)
		}

		divetype, nsamples := d.model.prefixFields(buffer[offset-prefix:])
		if nsamples == 0xFFFF || divetype == 0xFFFF {
			break // erased memory, end of the profile data
		}

		mode := divetype & 0x03

		shape := d.model.shape(mode)
		if offset < shape.headerSize {
			break // truncated by the ring buffer wrap
		}

		// Read the rest of the header.
		if err := stream.Read(ctx, progress, buffer[offset-shape.headerSize:offset-prefix]); err != nil {
			return fmt.Errorf("iconhd: read dive header: %w", err)
		}

		// Calculate the total record size. A record that does not fit in the
		// remaining data was partially overwritten by newer dives.
		header := buffer[offset-shape.headerSize:]
		nbytes := 4 + shape.headerSize + int(nsamples)*shape.sampleSize + d.model.extraBytes(int(nsamples), header)
		if offset < nbytes {
			break // truncated by the ring buffer wrap
		}

		// Read the remainder of the dive.
		if err := stream.Read(ctx, progress, buffer[offset-nbytes:offset-shape.headerSize]); err != nil {
			return fmt.Errorf("iconhd: read dive data: %w", err)
		}

		// Move to the start of the dive.
		offset -= nbytes

		// The length stored in the record must equal the calculated length.
		// If the two disagree, the oldest dive has been partially overwritten
		// and the walk is done.
		length := int(binary.LittleEndian.Uint32(buffer[offset:]))
		if length != nbytes {
			break
		}

		fpStart := offset + nbytes - shape.headerSize + shape.fingerprint
		fp := buffer[fpStart : fpStart+fingerprintSize]
		if bytes.Equal(fp, d.fingerprint[:]) {
			break // everything before this dive is already downloaded
		}

		if callback != nil && !callback(buffer[offset:offset+nbytes], fp) {
			break
		}
	}

	return nil
}
