package isp

import (
	"sync"
	"testing"

	"github.com/okmcu/fsisp/packet"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_DeviceFailures(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.incDeviceFailure(packet.TypeFailureErrHAL)
			}
			m.incDeviceFailure(packet.TypeFailureUnknownReg)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(800), m.DeviceFailureCount(packet.TypeFailureErrHAL))
	assert.Equal(t, map[packet.Type]uint64{
		packet.TypeFailureErrHAL:     800,
		packet.TypeFailureUnknownReg: 8,
	}, m.DeviceFailures())
}
