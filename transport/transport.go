// Package transport abstracts the byte stream between a driver and a dive
// computer. Implementations adapt concrete links, such as a serial port or a
// BLE GATT connection, to a single interface so drivers stay link agnostic.
package transport

import (
	"errors"
	"io"
	"time"
)

var (
	// ErrTimeout indicates that no data arrived within the configured read timeout.
	ErrTimeout = errors.New("transport: timeout")

	// ErrUnsupported indicates that the link cannot provide a requested line parameter.
	ErrUnsupported = errors.New("transport: unsupported line parameter")
)

// Kind identifies the physical link behind a Transport. Drivers adjust their
// packetization to it, for example by chunking writes on BLE links.
type Kind int

const (
	// KindSerial is a serial line, either native RS-232 or an USB bridge.
	KindSerial Kind = iota
	// KindBLE is a Bluetooth Low Energy GATT connection.
	KindBLE
)

// String returns a human readable name for the transport kind.
func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindBLE:
		return "ble"
	default:
		return "unknown"
	}
}

// Parity configures the parity bit of a serial line.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

// StopBits configures the number of stop bits of a serial line.
type StopBits int

const (
	StopBitsOne StopBits = iota
	StopBitsOneAndHalf
	StopBitsTwo
)

// FlowControl configures the flow control of a serial line.
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlHardware
	FlowControlSoftware
)

// Direction selects which half of the link a Purge discards.
type Direction int

const (
	DirectionInput Direction = 1 << iota
	DirectionOutput

	DirectionAll = DirectionInput | DirectionOutput
)

// Transport is a bidirectional byte stream with serial line semantics.
//
// Read returns at least one byte or fails; it returns ErrTimeout when no data
// arrives within the configured timeout. Short reads and short writes are
// permitted, callers are expected to loop. Links without a notion of line
// parameters or modem lines implement the corresponding methods as no-ops.
type Transport interface {
	io.Reader
	io.Writer

	// Configure sets the line parameters. Links that have no line parameters,
	// such as BLE, ignore the call.
	Configure(baudRate, dataBits int, parity Parity, stopBits StopBits, flow FlowControl) error

	// SetTimeout sets the maximum time a Read waits for data to arrive.
	SetTimeout(timeout time.Duration) error

	// SetDTR drives the DTR modem line.
	SetDTR(value bool) error

	// SetRTS drives the RTS modem line.
	SetRTS(value bool) error

	// Purge discards buffered data in the given direction.
	Purge(direction Direction) error

	// Kind reports the physical link behind this transport.
	Kind() Kind

	// Close releases the underlying link.
	Close() error
}
