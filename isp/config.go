package isp

import (
	"errors"
	"fmt"
	"time"

	"github.com/okmcu/fsisp/logger"
)

// Client defaults.
const (
	DefaultDeviceAddr    uint8 = 0xAA
	DefaultReadTimeout         = 100 * time.Millisecond
	DefaultRetryLimit          = 10
	DefaultRetryInterval       = 100 * time.Millisecond
)

// Limits.
const (
	MinReadTimeout = time.Millisecond
	MaxReadTimeout = 60 * time.Second

	MaxRetryLimit = 1000

	// Unlimited retry limit makes WaitAttributes poll until the device answers or the
	// context is cancelled.
	Unlimited = -1
)

// ClientConfig holds the configuration of a Client.
type ClientConfig struct {
	deviceAddr    uint8
	readTimeout   time.Duration
	retryLimit    int
	retryInterval time.Duration
	logger        logger.Logger
}

// NewClientConfig creates a client configuration. opts are applied in order; see With* functions.
func NewClientConfig(opts ...ClientOption) (*ClientConfig, error) {
	cfg := &ClientConfig{
		deviceAddr:    DefaultDeviceAddr,
		readTimeout:   DefaultReadTimeout,
		retryLimit:    DefaultRetryLimit,
		retryInterval: DefaultRetryInterval,
		logger:        logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// DeviceAddr returns the address of the target device.
func (cfg *ClientConfig) DeviceAddr() uint8 { return cfg.deviceAddr }

// ReadTimeout returns the response timeout of each register read.
func (cfg *ClientConfig) ReadTimeout() time.Duration { return cfg.readTimeout }

// RetryLimit returns the number of extra attempts WaitAttributes makes, or Unlimited.
func (cfg *ClientConfig) RetryLimit() int { return cfg.retryLimit }

// RetryInterval returns the pause between two WaitAttributes attempts.
func (cfg *ClientConfig) RetryInterval() time.Duration { return cfg.retryInterval }

// GetLogger returns the configured logger.
func (cfg *ClientConfig) GetLogger() logger.Logger { return cfg.logger }

// --- ClientOption ---

// ClientOption is a functional option for configuring a ClientConfig.
type ClientOption interface {
	apply(*ClientConfig) error
}

type clientOptFunc func(*ClientConfig) error

func (f clientOptFunc) apply(cfg *ClientConfig) error { return f(cfg) }

// WithDeviceAddr sets the target device address, 1 to 255. Address 0 is broadcast and
// cannot be used for request/response exchanges.
func WithDeviceAddr(addr uint8) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if addr == 0 {
			return errors.New("isp: device address 0 is reserved for broadcast")
		}
		cfg.deviceAddr = addr

		return nil
	})
}

// WithReadTimeout sets the response timeout of each register read.
func WithReadTimeout(d time.Duration) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if d < MinReadTimeout || d > MaxReadTimeout {
			return fmt.Errorf("isp: read timeout %v out of range [%v, %v]", d, MinReadTimeout, MaxReadTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithRetryLimit sets how many times WaitAttributes repeats a failed attribute fetch.
// Pass Unlimited to retry until the context is cancelled.
func WithRetryLimit(n int) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if n < Unlimited || n > MaxRetryLimit {
			return fmt.Errorf("isp: retry limit %d out of range [%d, %d]", n, Unlimited, MaxRetryLimit)
		}
		cfg.retryLimit = n

		return nil
	})
}

// WithRetryInterval sets the pause between two WaitAttributes attempts.
func WithRetryInterval(d time.Duration) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if d < 0 {
			return errors.New("isp: retry interval must not be negative")
		}
		cfg.retryInterval = d

		return nil
	})
}

// WithLogger sets the logger for the client and its engine.
func WithLogger(l logger.Logger) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if l == nil {
			return errors.New("isp: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
