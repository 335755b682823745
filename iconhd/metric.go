package iconhd

import (
	"sync/atomic"
)

// DeviceMetrics contains atomic communication counters for a session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type DeviceMetrics struct {
	// PacketSendCount indicates the number of packet exchanges started.
	PacketSendCount atomic.Uint64
	// PacketRetryCount indicates the number of packet exchanges retried after
	// a corrupted or timed out packet.
	PacketRetryCount atomic.Uint64
	// PacketErrCount indicates the number of packet exchanges abandoned after
	// exhausting all retries.
	PacketErrCount atomic.Uint64
	// TimeoutCount indicates the number of packets that timed out.
	TimeoutCount atomic.Uint64

	// BytesSentCount indicates the number of bytes written to the transport.
	BytesSentCount atomic.Uint64
	// BytesRecvCount indicates the number of bytes read from the transport.
	BytesRecvCount atomic.Uint64
}

func (m *DeviceMetrics) incPacketSendCount() {
	m.PacketSendCount.Add(1)
}

func (m *DeviceMetrics) incPacketRetryCount() {
	m.PacketRetryCount.Add(1)
}

func (m *DeviceMetrics) incPacketErrCount() {
	m.PacketErrCount.Add(1)
}

func (m *DeviceMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *DeviceMetrics) addBytesSentCount(n uint64) {
	m.BytesSentCount.Add(n)
}

func (m *DeviceMetrics) addBytesRecvCount(n uint64) {
	m.BytesRecvCount.Add(n)
}
