// Package blecomm adapts a BLE GATT connection to the transport.Transport
// interface using the tinygo.org/x/bluetooth library.
//
// Dive computers with a BLE bridge expose a serial-over-GATT service: the host
// writes commands to one characteristic and receives responses as notifications
// on another. Notifications are queued internally and served to Read in arrival
// order, so drivers can treat the connection as a byte stream.
package blecomm

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/william-perry/go-mares/internal/pool"
	"github.com/william-perry/go-mares/transport"
)

// Default GATT identifiers of the Nordic UART service, the de facto standard
// for serial bridges. Devices with a proprietary service can override them
// with WithService.
const (
	DefaultServiceUUID = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	DefaultWriteUUID   = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
	DefaultNotifyUUID  = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// attPayloadSize is the usable ATT payload of a BLE 4.0 connection.
// Writes are chunked to this size.
const attPayloadSize = 20

// defaultQueueSize holds a full device answer of notifications without
// requiring the reader to keep up with the radio.
const defaultQueueSize = 512

var (
	// ErrClosed indicates that the connection has been closed.
	ErrClosed = errors.New("blecomm: connection closed")

	// ErrDeviceNotFound indicates that the scan ended without a match.
	ErrDeviceNotFound = errors.New("blecomm: device not found")

	// ErrCharacteristicMissing indicates that the GATT service does not carry
	// the expected write and notify characteristics.
	ErrCharacteristicMissing = errors.New("blecomm: characteristic missing")
)

// Conn is a BLE GATT implementation of transport.Transport.
//
// Conn is not safe for concurrent use. Reads and writes must come from a
// single goroutine, typically the one running the device driver.
type Conn struct {
	device  bluetooth.Device
	write   bluetooth.DeviceCharacteristic
	packets chan []byte
	pending []byte
	timeout time.Duration
	closed  atomic.Bool
}

var _ transport.Transport = (*Conn)(nil)

type config struct {
	serviceUUID string
	writeUUID   string
	notifyUUID  string
	queueSize   int
}

// Option adjusts the GATT configuration used by Connect.
type Option interface {
	apply(*config) error
}

type optionFunc func(*config) error

func (f optionFunc) apply(cfg *config) error {
	return f(cfg)
}

// WithService selects the GATT service and characteristic UUIDs of the device.
func WithService(serviceUUID, writeUUID, notifyUUID string) Option {
	return optionFunc(func(cfg *config) error {
		if serviceUUID == "" || writeUUID == "" || notifyUUID == "" {
			return errors.New("blecomm: service and characteristic UUIDs must not be empty")
		}
		cfg.serviceUUID = serviceUUID
		cfg.writeUUID = writeUUID
		cfg.notifyUUID = notifyUUID

		return nil
	})
}

// WithQueueSize sets the depth of the notification queue.
func WithQueueSize(size int) Option {
	return optionFunc(func(cfg *config) error {
		if size < 1 {
			return errors.New("blecomm: queue size must be >= 1")
		}
		cfg.queueSize = size

		return nil
	})
}

// Connect discovers the serial-over-GATT service on an already connected BLE
// device and subscribes to its notification characteristic.
func Connect(device bluetooth.Device, opts ...Option) (*Conn, error) {
	cfg := &config{
		serviceUUID: DefaultServiceUUID,
		writeUUID:   DefaultWriteUUID,
		notifyUUID:  DefaultNotifyUUID,
		queueSize:   defaultQueueSize,
	}
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	serviceUUID, err := bluetooth.ParseUUID(cfg.serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("blecomm: parse service UUID: %w", err)
	}
	writeUUID, err := bluetooth.ParseUUID(cfg.writeUUID)
	if err != nil {
		return nil, fmt.Errorf("blecomm: parse write UUID: %w", err)
	}
	notifyUUID, err := bluetooth.ParseUUID(cfg.notifyUUID)
	if err != nil {
		return nil, fmt.Errorf("blecomm: parse notify UUID: %w", err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil {
		return nil, fmt.Errorf("blecomm: discover services: %w", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("%w: service %s", ErrCharacteristicMissing, cfg.serviceUUID)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{writeUUID, notifyUUID})
	if err != nil {
		return nil, fmt.Errorf("blecomm: discover characteristics: %w", err)
	}
	if len(chars) < 2 {
		return nil, fmt.Errorf("%w: want write %s and notify %s", ErrCharacteristicMissing, cfg.writeUUID, cfg.notifyUUID)
	}

	conn := &Conn{
		device:  device,
		write:   chars[0],
		packets: make(chan []byte, cfg.queueSize),
		timeout: time.Second,
	}

	if err := chars[1].EnableNotifications(conn.handleNotification); err != nil {
		return nil, fmt.Errorf("blecomm: enable notifications: %w", err)
	}

	return conn, nil
}

// handleNotification runs on the bluetooth stack goroutine. The payload is
// copied because the stack reuses its buffer.
func (c *Conn) handleNotification(data []byte) {
	if c.closed.Load() || len(data) == 0 {
		return
	}

	packet := make([]byte, len(data))
	copy(packet, data)

	select {
	case c.packets <- packet:
	default:
		// Queue overflow. The stream is corrupt either way; dropping the
		// packet surfaces as a timeout or protocol error at the driver.
	}
}

// Read returns data from the next queued notification, waiting up to the
// configured timeout for one to arrive. A notification larger than p is
// served across consecutive reads.
func (c *Conn) Read(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}

	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]

		return n, nil
	}

	timer := pool.GetTimer(c.timeout)
	defer pool.PutTimer(timer)

	select {
	case packet := <-c.packets:
		n := copy(p, packet)
		if n < len(packet) {
			c.pending = packet[n:]
		}

		return n, nil
	case <-timer.C:
		return 0, fmt.Errorf("blecomm: read: %w", transport.ErrTimeout)
	}
}

// Write sends p to the write characteristic, chunked to the ATT payload size.
func (c *Conn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}

	nbytes := 0
	for nbytes < len(p) {
		length := len(p) - nbytes
		if length > attPayloadSize {
			length = attPayloadSize
		}

		n, err := c.write.WriteWithoutResponse(p[nbytes : nbytes+length])
		if err != nil {
			return nbytes, fmt.Errorf("blecomm: write: %w", err)
		}

		nbytes += n
	}

	return nbytes, nil
}

// Configure is a no-op; a GATT connection has no line parameters.
func (c *Conn) Configure(baudRate, dataBits int, parity transport.Parity, stopBits transport.StopBits, flow transport.FlowControl) error {
	return nil
}

func (c *Conn) SetTimeout(timeout time.Duration) error {
	c.timeout = timeout
	return nil
}

// SetDTR is a no-op; a GATT connection has no modem lines.
func (c *Conn) SetDTR(value bool) error {
	return nil
}

// SetRTS is a no-op; a GATT connection has no modem lines.
func (c *Conn) SetRTS(value bool) error {
	return nil
}

// Purge discards queued notifications. The output direction has no buffer and
// is ignored.
func (c *Conn) Purge(direction transport.Direction) error {
	if direction&transport.DirectionInput == 0 {
		return nil
	}

	c.pending = nil
	for {
		select {
		case <-c.packets:
		default:
			return nil
		}
	}
}

func (c *Conn) Kind() transport.Kind {
	return transport.KindBLE
}

// Close unsubscribes the reader and disconnects the BLE device.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	if err := c.device.Disconnect(); err != nil {
		return fmt.Errorf("blecomm: disconnect: %w", err)
	}

	return nil
}

// Scan searches for an advertising device whose local name is accepted by
// match and connects to it. The scan runs until a device is found or the
// adapter aborts it.
func Scan(adapter *bluetooth.Adapter, match func(name string) bool) (bluetooth.Device, error) {
	var (
		result bluetooth.ScanResult
		found  bool
	)

	err := adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
		if match(r.LocalName()) {
			result = r
			found = true
			_ = a.StopScan()
		}
	})
	if err != nil {
		return bluetooth.Device{}, fmt.Errorf("blecomm: scan: %w", err)
	}
	if !found {
		return bluetooth.Device{}, ErrDeviceNotFound
	}

	device, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return bluetooth.Device{}, fmt.Errorf("blecomm: connect %s: %w", result.Address, err)
	}

	return device, nil
}
