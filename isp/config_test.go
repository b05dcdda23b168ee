package isp

import (
	"testing"
	"time"

	"github.com/okmcu/fsisp/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientConfig_Defaults(t *testing.T) {
	cfg, err := NewClientConfig()
	require.NoError(t, err)

	assert.Equal(t, uint8(0xAA), cfg.DeviceAddr())
	assert.Equal(t, 100*time.Millisecond, cfg.ReadTimeout())
	assert.Equal(t, 10, cfg.RetryLimit())
	assert.Equal(t, 100*time.Millisecond, cfg.RetryInterval())
	assert.NotNil(t, cfg.GetLogger())
}

func TestNewClientConfig_Options(t *testing.T) {
	l := logger.Nop()
	cfg, err := NewClientConfig(
		WithDeviceAddr(0x10),
		WithReadTimeout(time.Second),
		WithRetryLimit(Unlimited),
		WithRetryInterval(0),
		WithLogger(l),
	)
	require.NoError(t, err)

	assert.Equal(t, uint8(0x10), cfg.DeviceAddr())
	assert.Equal(t, time.Second, cfg.ReadTimeout())
	assert.Equal(t, Unlimited, cfg.RetryLimit())
	assert.Zero(t, cfg.RetryInterval())
	assert.Equal(t, l, cfg.GetLogger())
}

func TestNewClientConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opt  ClientOption
	}{
		{"broadcast address", WithDeviceAddr(0)},
		{"timeout too short", WithReadTimeout(time.Microsecond)},
		{"timeout too long", WithReadTimeout(time.Minute + time.Second)},
		{"retry limit below unlimited", WithRetryLimit(-2)},
		{"retry limit too high", WithRetryLimit(MaxRetryLimit + 1)},
		{"negative interval", WithRetryInterval(-time.Millisecond)},
		{"nil logger", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewClientConfig(tt.opt)
			require.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
