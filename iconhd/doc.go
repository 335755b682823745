// Package iconhd implements the download protocol of the Mares Icon HD family
// of dive computers, which also covers the Matrix, Smart, Puck Pro, Nemo Wide 2,
// Puck 2, Quad and their air integrated variants.
//
// # Protocol Overview
//
// The device answers framed request-response exchanges over a serial line
// (115200 baud, 8 data bits, even parity) or a BLE bridge:
//
//   - the host sends a two byte command opcode
//   - the device acknowledges it with ACK (0xAA)
//   - the host sends the remaining command bytes, if any
//   - the device sends the fixed size answer
//   - the device closes the frame with a trailer byte (0xEA)
//
// A corrupted or timed out packet is discarded and requested again, up to four
// extra attempts per packet. On BLE links the same byte stream is packetized
// into 20 byte GATT frames.
//
// # Memory Model
//
// Dive profiles live in a ring buffer region of the device memory whose
// boundaries depend on the model. Records are stored oldest to newest; a
// record consists of a 4 byte length, the profile samples, and a trailing
// header. Enumeration therefore runs backwards: it locates the end of the
// newest record through a pointer in the configuration area and walks towards
// older dives, reading each record tail first.
//
// # Typical Use
//
//	port, err := serialport.Open("/dev/ttyUSB0")
//	if err != nil {
//		...
//	}
//	defer port.Close()
//
//	dev, err := iconhd.Open(ctx, port)
//	if err != nil {
//		...
//	}
//
//	err = dev.Foreach(ctx, func(data, fingerprint []byte) bool {
//		// Decode or store the dive. Both slices are only valid during
//		// the callback.
//		return true
//	})
//
// Storing the fingerprint of the newest dive and passing it to SetFingerprint
// on the next session limits the download to new dives.
package iconhd
