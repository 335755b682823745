package iconhd

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/william-perry/go-mares/device"
)

// Read fills p with device memory starting at address. The request is split
// into packets of the model specific packet size; each packet is a separate
// exchange with its own retries.
func (d *Device) Read(ctx context.Context, address uint32, p []byte) error {
	nbytes := 0
	for nbytes < len(p) {
		// Calculate the packet size.
		length := len(p) - nbytes
		if length > d.packetsize {
			length = d.packetsize
		}

		// Read the packet.
		var command [10]byte
		copy(command[:2], cmdRead[:])
		binary.LittleEndian.PutUint32(command[2:6], address)
		binary.LittleEndian.PutUint32(command[6:10], uint32(length))

		if err := d.transfer(ctx, command[:], p[nbytes:nbytes+length]); err != nil {
			return fmt.Errorf("iconhd: read 0x%08X: %w", address, err)
		}

		nbytes += length
		address += uint32(length)
	}

	return nil
}

// Dump downloads a linear image of the entire device memory. The image size
// depends on the detected model. Progress is reported through the event sink,
// preceded by a vendor event carrying the identification block.
func (d *Device) Dump(ctx context.Context) ([]byte, error) {
	data := make([]byte, d.layout.memsize)

	d.emitVendor()

	if err := device.DumpRead(ctx, d, d.events, data, d.packetsize); err != nil {
		return nil, err
	}

	return data, nil
}
