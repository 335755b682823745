package iconhd

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/william-perry/go-mares/device"
	"github.com/william-perry/go-mares/transport"
)

// fakeDevice emulates a dive computer behind the transport.Transport
// interface. Commands written by the driver are parsed with the same state
// machine the firmware uses: a two byte opcode, acknowledged before the
// payload, answered from an in-memory image and closed with a trailer byte.
type fakeDevice struct {
	kind    transport.Kind
	memory  []byte // device memory served by read commands
	version []byte // answer to the version command

	pending bytes.Buffer // bytes queued for the driver to read
	cmd     []byte       // partially received command
	payload int          // outstanding payload bytes of a read command

	// Fault injection.
	badAcks       int  // corrupt the ack of the next n exchanges
	badTrailers   int  // corrupt the trailer of the next n answers
	muteExchanges int  // answer nothing for the next n exchanges
	mute          bool // stop answering altogether

	// Introspection.
	exchanges   int // answered command exchanges
	writes      int // driver write calls
	purgedInput int
	baudRate    int
	dataBits    int
	parity      transport.Parity
	stopBits    transport.StopBits
	timeout     time.Duration
	dtrSet      bool
	dtr         bool
	rtsSet      bool
	rts         bool
}

var _ transport.Transport = (*fakeDevice)(nil)

func (f *fakeDevice) Read(p []byte) (int, error) {
	if f.pending.Len() == 0 {
		return 0, fmt.Errorf("fake: %w", transport.ErrTimeout)
	}

	if f.kind == transport.KindBLE {
		// A BLE link delivers data in whole packets.
		length := f.pending.Len()
		if length > blePacketSize {
			length = blePacketSize
		}
		if length > len(p) {
			length = len(p)
		}

		return f.pending.Read(p[:length])
	}

	return f.pending.Read(p)
}

func (f *fakeDevice) Write(p []byte) (int, error) {
	f.writes++
	f.cmd = append(f.cmd, p...)
	f.process()

	return len(p), nil
}

// process consumes complete opcodes and payloads from the command buffer and
// queues the corresponding answers.
func (f *fakeDevice) process() {
	for {
		if f.payload > 0 {
			if len(f.cmd) < f.payload {
				return
			}

			payload := f.cmd[:f.payload]
			f.cmd = f.cmd[f.payload:]
			f.payload = 0
			f.answerRead(payload)

			continue
		}

		if len(f.cmd) < 2 {
			return
		}

		opcode := [2]byte{f.cmd[0], f.cmd[1]}
		f.cmd = f.cmd[2:]

		switch opcode {
		case cmdVersion:
			f.queueAck()
			f.queueAnswer(f.version)
		case cmdRead:
			f.queueAck()
			f.payload = 8
		default:
			// Unknown opcode. Stay silent, the driver will time out.
		}
	}
}

func (f *fakeDevice) answerRead(payload []byte) {
	address := binary.LittleEndian.Uint32(payload[0:4])
	length := binary.LittleEndian.Uint32(payload[4:8])
	f.queueAnswer(f.memory[address : address+length])
}

func (f *fakeDevice) queueAck() {
	if f.mute || f.muteExchanges > 0 {
		return
	}

	if f.badAcks > 0 {
		f.badAcks--
		f.pending.WriteByte(0x55)

		return
	}

	f.pending.WriteByte(ack)
}

func (f *fakeDevice) queueAnswer(data []byte) {
	if f.mute {
		return
	}

	if f.muteExchanges > 0 {
		f.muteExchanges--
		return
	}

	f.exchanges++
	f.pending.Write(data)

	if f.badTrailers > 0 {
		f.badTrailers--
		f.pending.WriteByte(0x00)

		return
	}

	f.pending.WriteByte(eop)
}

func (f *fakeDevice) Configure(baudRate, dataBits int, parity transport.Parity, stopBits transport.StopBits, flow transport.FlowControl) error {
	f.baudRate = baudRate
	f.dataBits = dataBits
	f.parity = parity
	f.stopBits = stopBits

	return nil
}

func (f *fakeDevice) SetTimeout(timeout time.Duration) error {
	f.timeout = timeout
	return nil
}

func (f *fakeDevice) SetDTR(value bool) error {
	f.dtrSet = true
	f.dtr = value

	return nil
}

func (f *fakeDevice) SetRTS(value bool) error {
	f.rtsSet = true
	f.rts = value

	return nil
}

func (f *fakeDevice) Purge(direction transport.Direction) error {
	if direction&transport.DirectionInput != 0 {
		f.purgedInput++
		f.pending.Reset()
	}

	return nil
}

func (f *fakeDevice) Kind() transport.Kind {
	return f.kind
}

func (f *fakeDevice) Close() error {
	return nil
}

// makeVersion builds an identification block reporting the given product name.
func makeVersion(name string) []byte {
	version := make([]byte, versionSize)
	copy(version[productNameOffset:], name)

	return version
}

// newFakeDevice creates a fake dive computer reporting the given product name,
// with an erased memory image sized for the model.
func newFakeDevice(t *testing.T, name string, kind transport.Kind) *fakeDevice {
	t.Helper()

	fake := &fakeDevice{kind: kind, version: makeVersion(name)}

	lay, _ := matchModel(fake.version).geometry()
	fake.memory = make([]byte, lay.memsize)
	for i := range fake.memory {
		fake.memory[i] = 0xFF
	}

	return fake
}

// openTestDevice opens a session against a fake device reporting the given
// product name.
func openTestDevice(t *testing.T, name string, kind transport.Kind, opts ...Option) (*Device, *fakeDevice) {
	t.Helper()

	fake := newFakeDevice(t, name, kind)

	dev, err := Open(context.Background(), fake, opts...)
	require.NoError(t, err)

	return dev, fake
}

// buildDive constructs one dive record: the 4 byte length, the sample data,
// and the trailing header carrying the dive type, the sample count, and the
// fingerprint. The samples are filled with the given byte.
func buildDive(t *testing.T, model Model, divetype uint16, nsamples int, fingerprint []byte, fill byte) []byte {
	t.Helper()
	require.Len(t, fingerprint, fingerprintSize)

	shape := model.shape(divetype & 0x03)
	header := make([]byte, shape.headerSize)

	prefix := model.headerPrefix()
	fields := header[shape.headerSize-prefix:]
	switch model {
	case ModelSmart, ModelSmartApnea, ModelSmartAir:
		binary.LittleEndian.PutUint16(fields[0:2], uint16(nsamples))
		binary.LittleEndian.PutUint16(fields[2:4], divetype)
	default:
		binary.LittleEndian.PutUint16(fields[0:2], divetype)
		binary.LittleEndian.PutUint16(fields[2:4], uint16(nsamples))
	}
	copy(header[shape.fingerprint:], fingerprint)

	nbytes := 4 + shape.headerSize + nsamples*shape.sampleSize + model.extraBytes(nsamples, header)

	record := make([]byte, nbytes)
	binary.LittleEndian.PutUint32(record[0:4], uint32(nbytes))
	for i := 4; i < nbytes-shape.headerSize; i++ {
		record[i] = fill
	}
	copy(record[nbytes-shape.headerSize:], header)

	return record
}

// buildApneaDive constructs a Smart Apnea record whose header encodes the
// given dive time and sample rate exponent, both of which contribute to the
// record size.
func buildApneaDive(t *testing.T, nsamples int, divetime uint32, rateExp uint16, fingerprint []byte, fill byte) []byte {
	t.Helper()
	require.Len(t, fingerprint, fingerprintSize)
	require.LessOrEqual(t, rateExp, uint16(3))

	shape := ModelSmartApnea.shape(modeFreedive)
	header := make([]byte, shape.headerSize)

	binary.LittleEndian.PutUint16(header[0x1C:], rateExp<<9)
	binary.LittleEndian.PutUint32(header[0x24:], divetime)

	prefix := ModelSmartApnea.headerPrefix()
	fields := header[shape.headerSize-prefix:]
	binary.LittleEndian.PutUint16(fields[0:2], uint16(nsamples))
	binary.LittleEndian.PutUint16(fields[2:4], modeFreedive)
	copy(header[shape.fingerprint:], fingerprint)

	nbytes := 4 + shape.headerSize + nsamples*shape.sampleSize + ModelSmartApnea.extraBytes(nsamples, header)

	record := make([]byte, nbytes)
	binary.LittleEndian.PutUint32(record[0:4], uint32(nbytes))
	for i := 4; i < nbytes-shape.headerSize; i++ {
		record[i] = fill
	}
	copy(record[nbytes-shape.headerSize:], header)

	return record
}

// writeRing writes blob into the profile ring so that its last byte lands just
// before head, wrapping at the ring boundaries.
func writeRing(memory []byte, lay *layout, head uint32, blob []byte) {
	capacity := int(lay.rbProfileEnd - lay.rbProfileBegin)
	pos := int(head - lay.rbProfileBegin)

	for i := len(blob) - 1; i >= 0; i-- {
		pos--
		if pos < 0 {
			pos += capacity
		}
		memory[int(lay.rbProfileBegin)+pos] = blob[i]
	}
}

// placeDives writes the records, given oldest first, into the profile ring so
// the newest record ends at head, and stores head in the pointer location.
func (f *fakeDevice) placeDives(lay *layout, pointerAddress, head uint32, records ...[]byte) {
	var blob []byte
	for _, record := range records {
		blob = append(blob, record...)
	}

	writeRing(f.memory, lay, head, blob)
	binary.LittleEndian.PutUint32(f.memory[pointerAddress:], head)
}

// fp builds a distinctive fingerprint from a seed byte.
func fp(seed byte) []byte {
	fingerprint := make([]byte, fingerprintSize)
	for i := range fingerprint {
		fingerprint[i] = seed + byte(i)
	}

	return fingerprint
}

// eventSink records every event emitted by a session.
type eventSink struct {
	events []device.Event
}

func (s *eventSink) record(ev device.Event) {
	s.events = append(s.events, ev)
}

// progress returns the recorded progress events.
func (s *eventSink) progress() []device.ProgressEvent {
	var events []device.ProgressEvent
	for _, ev := range s.events {
		if p, ok := ev.(device.ProgressEvent); ok {
			events = append(events, p)
		}
	}

	return events
}

// requireMonotonic asserts that the recorded progress never runs backwards and
// never exceeds its own maximum.
func (s *eventSink) requireMonotonic(t *testing.T) {
	t.Helper()

	var last device.ProgressEvent
	for _, p := range s.progress() {
		require.GreaterOrEqual(t, p.Current, last.Current)
		require.GreaterOrEqual(t, p.Maximum, last.Maximum)
		require.LessOrEqual(t, p.Current, p.Maximum)
		last = p
	}
}

// collectDives is a DiveCallback that copies every delivered dive.
type collectDives struct {
	data         [][]byte
	fingerprints [][]byte
	stopAfter    int // stop after this many dives, 0 means never
}

func (c *collectDives) callback(data, fingerprint []byte) bool {
	c.data = append(c.data, append([]byte{}, data...))
	c.fingerprints = append(c.fingerprints, append([]byte{}, fingerprint...))

	return c.stopAfter == 0 || len(c.data) < c.stopAfter
}
