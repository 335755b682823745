// Package serialport adapts a serial port to the transport.Transport interface
// using the go.bug.st/serial library.
package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/william-perry/go-mares/transport"
)

// defaultTimeout applies until the driver configures its own read timeout.
const defaultTimeout = time.Second

// Port is a serial line implementation of transport.Transport.
//
// Reads honor the timeout set with SetTimeout: the underlying library reports a
// timeout as an empty read, which Port converts to transport.ErrTimeout so
// callers can distinguish it from other I/O failures.
type Port struct {
	port serial.Port
	name string
}

var _ transport.Transport = (*Port)(nil)

// Open opens the named serial port. The line parameters are left at the
// library defaults until Configure is called.
func Open(name string) (*Port, error) {
	port, err := serial.Open(name, &serial.Mode{})
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", name, err)
	}

	if err := port.SetReadTimeout(defaultTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("serialport: set read timeout on %s: %w", name, err)
	}

	return &Port{port: port, name: name}, nil
}

// Name returns the port name passed to Open.
func (p *Port) Name() string {
	return p.name
}

func (p *Port) Read(buf []byte) (int, error) {
	n, err := p.port.Read(buf)
	if err != nil {
		return n, fmt.Errorf("serialport: read %s: %w", p.name, err)
	}
	// The library reports an expired read timeout as an empty read.
	if n == 0 {
		return 0, fmt.Errorf("serialport: read %s: %w", p.name, transport.ErrTimeout)
	}

	return n, nil
}

func (p *Port) Write(buf []byte) (int, error) {
	n, err := p.port.Write(buf)
	if err != nil {
		return n, fmt.Errorf("serialport: write %s: %w", p.name, err)
	}

	return n, nil
}

// Configure applies the line parameters to the port. Hardware and software
// flow control are not supported by the underlying library.
func (p *Port) Configure(baudRate, dataBits int, parity transport.Parity, stopBits transport.StopBits, flow transport.FlowControl) error {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: dataBits,
	}

	var err error
	if mode.Parity, err = mapParity(parity); err != nil {
		return err
	}
	if mode.StopBits, err = mapStopBits(stopBits); err != nil {
		return err
	}
	if flow != transport.FlowControlNone {
		return fmt.Errorf("serialport: flow control %d: %w", flow, transport.ErrUnsupported)
	}

	if err := p.port.SetMode(mode); err != nil {
		return fmt.Errorf("serialport: configure %s: %w", p.name, err)
	}

	return nil
}

func (p *Port) SetTimeout(timeout time.Duration) error {
	if err := p.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("serialport: set read timeout on %s: %w", p.name, err)
	}

	return nil
}

func (p *Port) SetDTR(value bool) error {
	if err := p.port.SetDTR(value); err != nil {
		return fmt.Errorf("serialport: set DTR on %s: %w", p.name, err)
	}

	return nil
}

func (p *Port) SetRTS(value bool) error {
	if err := p.port.SetRTS(value); err != nil {
		return fmt.Errorf("serialport: set RTS on %s: %w", p.name, err)
	}

	return nil
}

func (p *Port) Purge(direction transport.Direction) error {
	if direction&transport.DirectionInput != 0 {
		if err := p.port.ResetInputBuffer(); err != nil {
			return fmt.Errorf("serialport: purge input of %s: %w", p.name, err)
		}
	}
	if direction&transport.DirectionOutput != 0 {
		if err := p.port.ResetOutputBuffer(); err != nil {
			return fmt.Errorf("serialport: purge output of %s: %w", p.name, err)
		}
	}

	return nil
}

func (p *Port) Kind() transport.Kind {
	return transport.KindSerial
}

func (p *Port) Close() error {
	if err := p.port.Close(); err != nil {
		return fmt.Errorf("serialport: close %s: %w", p.name, err)
	}

	return nil
}

func mapParity(parity transport.Parity) (serial.Parity, error) {
	switch parity {
	case transport.ParityNone:
		return serial.NoParity, nil
	case transport.ParityOdd:
		return serial.OddParity, nil
	case transport.ParityEven:
		return serial.EvenParity, nil
	case transport.ParityMark:
		return serial.MarkParity, nil
	case transport.ParitySpace:
		return serial.SpaceParity, nil
	default:
		return serial.NoParity, fmt.Errorf("serialport: parity %d: %w", parity, transport.ErrUnsupported)
	}
}

func mapStopBits(stopBits transport.StopBits) (serial.StopBits, error) {
	switch stopBits {
	case transport.StopBitsOne:
		return serial.OneStopBit, nil
	case transport.StopBitsOneAndHalf:
		return serial.OnePointFiveStopBits, nil
	case transport.StopBitsTwo:
		return serial.TwoStopBits, nil
	default:
		return serial.OneStopBit, fmt.Errorf("serialport: stop bits %d: %w", stopBits, transport.ErrUnsupported)
	}
}

// List returns the names of the serial ports present on the system.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serialport: list ports: %w", err)
	}

	return ports, nil
}
