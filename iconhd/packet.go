package iconhd

import (
	"context"
	"errors"
	"fmt"

	"github.com/william-perry/go-mares/device"
	"github.com/william-perry/go-mares/transport"
)

// --- Low-level I/O helpers ---

// receive reads exactly len(p) bytes from the transport.
//
// On a BLE link the data arrives in whole packets, possibly larger than the
// remaining request, so one packet is pulled into the cache and served from
// there across calls. On a serial link the transport is read directly.
func (d *Device) receive(p []byte) error {
	ble := d.transport.Kind() == transport.KindBLE

	nbytes := 0
	for nbytes < len(p) {
		if ble {
			if d.available == 0 {
				// Read the next packet into the cache.
				n, err := d.transport.Read(d.cache[:])
				if err != nil {
					return err
				}

				d.available = n
				d.offset = 0
			}

			length := d.available
			if length > len(p)-nbytes {
				length = len(p) - nbytes
			}

			copy(p[nbytes:nbytes+length], d.cache[d.offset:d.offset+length])
			d.available -= length
			d.offset += length
			nbytes += length

			continue
		}

		n, err := d.transport.Read(p[nbytes:])
		if err != nil {
			return err
		}

		nbytes += n
	}

	d.metrics.addBytesRecvCount(uint64(len(p)))

	return nil
}

// send writes all of p to the transport. On a BLE link the data is chunked to
// the packet size.
func (d *Device) send(p []byte) error {
	ble := d.transport.Kind() == transport.KindBLE

	nbytes := 0
	for nbytes < len(p) {
		length := len(p) - nbytes
		if ble && length > blePacketSize {
			length = blePacketSize
		}

		n, err := d.transport.Write(p[nbytes : nbytes+length])
		if err != nil {
			return err
		}

		nbytes += n
	}

	d.metrics.addBytesSentCount(uint64(len(p)))

	return nil
}

// --- Packet exchange ---

// packet performs a single framed exchange: opcode, acknowledgement, command
// payload, answer, trailer. The command must be at least two bytes, the opcode.
//
// Cancellation is checked once, before any byte is written; an exchange in
// flight is never interrupted, so the device is left in a consistent state.
func (d *Device) packet(ctx context.Context, command, answer []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	d.metrics.incPacketSendCount()

	// Send the command opcode.
	if err := d.send(command[:2]); err != nil {
		return fmt.Errorf("iconhd: send command: %w", err)
	}

	// The device acknowledges the opcode before the payload may follow.
	var header [1]byte
	if err := d.receive(header[:]); err != nil {
		return fmt.Errorf("iconhd: receive ack: %w", err)
	}
	if header[0] != ack {
		return fmt.Errorf("%w: iconhd: unexpected ack byte 0x%02X", device.ErrProtocol, header[0])
	}

	// Send the command payload.
	if len(command) > 2 {
		if err := d.send(command[2:]); err != nil {
			return fmt.Errorf("iconhd: send command payload: %w", err)
		}
	}

	// Read the answer.
	if err := d.receive(answer); err != nil {
		return fmt.Errorf("iconhd: receive answer: %w", err)
	}

	// Every answer is trailed by an end of packet byte.
	var trailer [1]byte
	if err := d.receive(trailer[:]); err != nil {
		return fmt.Errorf("iconhd: receive trailer: %w", err)
	}
	if trailer[0] != eop {
		return fmt.Errorf("%w: iconhd: unexpected trailer byte 0x%02X", device.ErrProtocol, trailer[0])
	}

	return nil
}

// transfer runs a packet exchange, retrying corrupted or timed out packets.
//
// Only protocol violations and timeouts are retried; those indicate a
// corrupted packet that the device will happily serve again. Anything else,
// including cancellation, aborts immediately.
func (d *Device) transfer(ctx context.Context, command, answer []byte) error {
	nretries := 0
	for {
		err := d.packet(ctx, command, answer)
		if err == nil {
			return nil
		}

		if !errors.Is(err, device.ErrProtocol) && !errors.Is(err, transport.ErrTimeout) {
			return err
		}

		if errors.Is(err, transport.ErrTimeout) {
			d.metrics.incTimeoutCount()
		}

		// Abort if the maximum number of retries is reached.
		if nretries >= maxRetries {
			d.metrics.incPacketErrCount()
			return err
		}
		nretries++

		d.metrics.incPacketRetryCount()
		d.logger.Debug("iconhd: packet retry",
			"retry", nretries,
			"maxRetry", maxRetries,
			"error", err,
		)

		// Discard any garbage bytes.
		_ = d.transport.Purge(transport.DirectionInput)
	}
}
