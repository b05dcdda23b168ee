package isp

import (
	"sync/atomic"

	"github.com/okmcu/fsisp/packet"
	"github.com/puzpuzpuz/xsync/v3"
)

// Metrics contains atomic counters of a client's exchanges.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc, and may be read
// from another goroutine while exchanges are running.
type Metrics struct {
	// RequestCount indicates the number of request frames sent.
	RequestCount atomic.Uint64
	// ResponseCount indicates the number of validated responses.
	ResponseCount atomic.Uint64
	// TimeoutCount indicates the number of exchanges that got no response.
	TimeoutCount atomic.Uint64
	// ProtocolErrCount indicates the number of malformed or mismatched responses.
	ProtocolErrCount atomic.Uint64
	// TransportErrCount indicates the number of send or receive failures.
	TransportErrCount atomic.Uint64
	// RetryCount indicates the number of repeated attribute fetches.
	RetryCount atomic.Uint64

	deviceFailures *xsync.MapOf[packet.Type, *atomic.Uint64]
}

// NewMetrics returns zeroed metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		deviceFailures: xsync.NewMapOf[packet.Type, *atomic.Uint64](),
	}
}

// DeviceFailureCount returns how many times the device answered with the failure kind.
func (m *Metrics) DeviceFailureCount(kind packet.Type) uint64 {
	if c, ok := m.deviceFailures.Load(kind); ok {
		return c.Load()
	}

	return 0
}

// DeviceFailures returns a snapshot of the device failure counters by kind.
func (m *Metrics) DeviceFailures() map[packet.Type]uint64 {
	out := make(map[packet.Type]uint64, m.deviceFailures.Size())
	m.deviceFailures.Range(func(kind packet.Type, c *atomic.Uint64) bool {
		out[kind] = c.Load()
		return true
	})

	return out
}

func (m *Metrics) incRequestCount() {
	m.RequestCount.Add(1)
}

func (m *Metrics) incResponseCount() {
	m.ResponseCount.Add(1)
}

func (m *Metrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *Metrics) incProtocolErrCount() {
	m.ProtocolErrCount.Add(1)
}

func (m *Metrics) incTransportErrCount() {
	m.TransportErrCount.Add(1)
}

func (m *Metrics) incRetryCount() {
	m.RetryCount.Add(1)
}

func (m *Metrics) incDeviceFailure(kind packet.Type) {
	c, _ := m.deviceFailures.LoadOrStore(kind, new(atomic.Uint64))
	c.Add(1)
}
