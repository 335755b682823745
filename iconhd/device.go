package iconhd

import (
	"context"
	"fmt"
	"time"

	"github.com/william-perry/go-mares/descriptor"
	"github.com/william-perry/go-mares/device"
	"github.com/william-perry/go-mares/logger"
	"github.com/william-perry/go-mares/transport"
)

const (
	// versionSize is the size of the identification block returned by the
	// version command.
	versionSize = 140

	// fingerprintSize is the size of the dive fingerprint.
	fingerprintSize = 10

	// blePacketSize is the usable payload of one BLE packet. Reads and writes
	// over a BLE transport are packetized to this size.
	blePacketSize = 20

	// maxRetries is the number of additional attempts after a corrupted packet.
	maxRetries = 4

	// responseTimeout is the time to wait for the device to answer.
	responseTimeout = time.Second
)

// Framing bytes of the wire protocol.
const (
	ack = 0xAA // acknowledges a command opcode
	eop = 0xEA // trails every answer
)

// Command opcodes. A command starts with a two byte opcode which the device
// acknowledges before the rest of the command is sent.
var (
	cmdVersion = [2]byte{0xC2, 0x67}
	cmdRead    = [2]byte{0xE7, 0x42}
)

// Device is an open session with a Mares Icon HD family dive computer.
//
// A Device is created with Open and remains bound to a single transport. It is
// not safe for concurrent use; the protocol is strictly request-response, so
// all methods must be called from one goroutine at a time.
type Device struct {
	transport transport.Transport
	logger    logger.Logger
	events    device.EventFunc
	metrics   DeviceMetrics

	layout      *layout
	model       Model
	packetsize  int
	fingerprint [fingerprintSize]byte
	version     [versionSize]byte

	// Single packet receive cache, used on BLE links only.
	cache     [blePacketSize]byte
	available int
	offset    int
}

var _ device.Reader = (*Device)(nil)

// Open establishes a session over an already opened transport.
//
// The line is configured for the serial settings of the device (115200 baud,
// 8 data bits, even parity), the modem lines are cleared, and the device is
// identified with a version command. The model found in the identification
// block selects the memory layout used by all further operations.
//
// Open does not take ownership of the transport. The caller remains
// responsible for closing it, whether Open succeeds or not.
func Open(ctx context.Context, t transport.Transport, opts ...Option) (*Device, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: iconhd: transport is nil", device.ErrInvalidArgument)
	}

	d := &Device{
		transport: t,
		logger:    logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(d); err != nil {
			return nil, err
		}
	}

	// Set the serial communication protocol (115200 8E1).
	if err := t.Configure(115200, 8, transport.ParityEven, transport.StopBitsOne, transport.FlowControlNone); err != nil {
		return nil, fmt.Errorf("iconhd: configure line: %w", err)
	}

	// Set the timeout for receiving data.
	if err := t.SetTimeout(responseTimeout); err != nil {
		return nil, fmt.Errorf("iconhd: set timeout: %w", err)
	}

	// Clear the DTR line.
	if err := t.SetDTR(false); err != nil {
		return nil, fmt.Errorf("iconhd: clear DTR: %w", err)
	}

	// Clear the RTS line.
	if err := t.SetRTS(false); err != nil {
		return nil, fmt.Errorf("iconhd: clear RTS: %w", err)
	}

	// Make sure everything is in a sane state.
	_ = t.Purge(transport.DirectionAll)

	// Identify the device.
	if err := d.transfer(ctx, cmdVersion[:], d.version[:]); err != nil {
		return nil, fmt.Errorf("iconhd: identify device: %w", err)
	}

	d.model = matchModel(d.version[:])
	d.layout, d.packetsize = d.model.geometry()

	d.logger.Debug("iconhd: session opened",
		"model", d.model.String(),
		"packetSize", d.packetsize,
	)

	return d, nil
}

// Model returns the detected model code. It is zero when the product name in
// the identification block was not recognized.
func (d *Device) Model() Model {
	return d.model
}

// Version returns a copy of the identification block read during Open.
func (d *Device) Version() []byte {
	version := make([]byte, versionSize)
	copy(version, d.version[:])

	return version
}

// Metrics returns the communication counters of this session.
func (d *Device) Metrics() *DeviceMetrics {
	return &d.metrics
}

// SetFingerprint registers the fingerprint of the newest dive already
// downloaded. Enumeration stops, without error, when it reaches the dive with
// this fingerprint. An empty fingerprint clears the mark so all dives are
// enumerated.
func (d *Device) SetFingerprint(data []byte) error {
	if len(data) != 0 && len(data) != fingerprintSize {
		return fmt.Errorf("%w: iconhd: fingerprint must be %d bytes, got %d",
			device.ErrInvalidArgument, fingerprintSize, len(data))
	}

	if len(data) != 0 {
		copy(d.fingerprint[:], data)
	} else {
		d.fingerprint = [fingerprintSize]byte{}
	}

	return nil
}

func (d *Device) emit(ev device.Event) {
	if d.events != nil {
		d.events(ev)
	}
}

func (d *Device) emitVendor() {
	d.emit(device.VendorEvent{Data: d.version[:]})
}

func init() {
	// Older models connect over a serial cable only; the newer generation also
	// pairs with the vendor BLE bridge.
	serial := []transport.Kind{transport.KindSerial}
	both := []transport.Kind{transport.KindSerial, transport.KindBLE}

	for _, m := range []struct {
		model      Model
		transports []transport.Kind
	}{
		{ModelMatrix, serial},
		{ModelSmart, both},
		{ModelSmartApnea, both},
		{ModelIconHD, serial},
		{ModelIconHDNet, serial},
		{ModelPuckPro, both},
		{ModelNemoWide2, serial},
		{ModelPuck2, both},
		{ModelQuadAir, both},
		{ModelSmartAir, both},
		{ModelQuad, both},
	} {
		descriptor.Register(&descriptor.Descriptor{
			Vendor:     "Mares",
			Product:    m.model.String(),
			Model:      uint32(m.model),
			Transports: m.transports,
		})
	}
}
