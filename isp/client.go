package isp

import (
	"context"
	"errors"
	"fmt"

	"github.com/okmcu/fsisp/internal/pool"
	"github.com/okmcu/fsisp/logger"
	"github.com/okmcu/fsisp/packet"
	"github.com/okmcu/fsisp/transport"
)

// ErrNilTransport is returned by NewClient when no transport is given.
var ErrNilTransport = errors.New("isp: nil transport")

// Client reads and writes the registers of one device.
type Client struct {
	cfg    *ClientConfig
	engine *Engine
	logger logger.Logger
}

// NewClient returns a client talking over tr. A nil cfg selects the defaults.
func NewClient(tr transport.Transport, cfg *ClientConfig) (*Client, error) {
	if tr == nil {
		return nil, ErrNilTransport
	}

	if cfg == nil {
		var err error
		if cfg, err = NewClientConfig(); err != nil {
			return nil, err
		}
	}

	l := cfg.GetLogger().With("dev", fmt.Sprintf("0x%02X", cfg.DeviceAddr()))

	return &Client{
		cfg:    cfg,
		engine: NewEngine(tr, l, NewMetrics()),
		logger: l,
	}, nil
}

// Config returns the client configuration.
func (c *Client) Config() *ClientConfig {
	return c.cfg
}

// Engine returns the engine used for exchanges.
func (c *Client) Engine() *Engine {
	return c.engine
}

// Metrics returns the exchange counters.
func (c *Client) Metrics() *Metrics {
	return c.engine.Metrics()
}

// ReadRegister reads up to len(out) bytes of register reg into out and returns the number of
// bytes the device sent.
func (c *Client) ReadRegister(ctx context.Context, reg uint8, out []byte) (int, error) {
	return c.engine.Exchange(ctx, Request{
		DeviceAddr: c.cfg.deviceAddr,
		Type:       packet.TypeGet,
		RegAddr:    reg,
		Timeout:    c.cfg.readTimeout,
	}, out)
}

// WriteRegister stores data into register reg.
func (c *Client) WriteRegister(ctx context.Context, reg uint8, data []byte) error {
	_, err := c.engine.Exchange(ctx, Request{
		DeviceAddr: c.cfg.deviceAddr,
		Type:       packet.TypeSet,
		RegAddr:    reg,
		Payload:    data,
		Timeout:    c.cfg.readTimeout,
	}, nil)

	return err
}

// ReadAttributes reads the attribute registers in order. It stops at the first register that
// fails and returns a *RegisterError naming it.
func (c *Client) ReadAttributes(ctx context.Context) (*DeviceAttributes, error) {
	attr := &DeviceAttributes{}
	buf := make([]byte, packet.MaxPayloadSize)

	for _, r := range attrRegisters {
		n, err := c.ReadRegister(ctx, r.reg, buf[:r.size])
		if err == nil {
			err = r.decode(attr, buf[:n])
		}
		if err != nil {
			return nil, &RegisterError{Register: r.reg, Name: RegisterName(r.reg), Err: err}
		}
	}

	c.logger.Info("isp: attributes read",
		"part_number", attr.MCU.PartNumberString(),
		"bootloader", attr.Bootloader.Version(),
	)

	return attr, nil
}

// WaitAttributes calls ReadAttributes until it succeeds. A failed attempt is repeated after
// the retry interval, at most RetryLimit times unless the limit is Unlimited. It returns early
// when ctx is done or when the failure cannot be cured by retrying.
func (c *Client) WaitAttributes(ctx context.Context) (*DeviceAttributes, error) {
	for attempt := 1; ; attempt++ {
		attr, err := c.ReadAttributes(ctx)
		if err == nil {
			return attr, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("isp: wait for device: %w", ctxErr)
		}

		if !retryable(err) {
			return nil, err
		}

		if c.cfg.retryLimit != Unlimited && attempt > c.cfg.retryLimit {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}

		c.logger.Debug("isp: device not ready, retrying", "attempt", attempt, "error", err)
		c.engine.metrics.incRetryCount()

		if err := pool.Sleep(ctx, c.cfg.retryInterval); err != nil {
			return nil, fmt.Errorf("isp: wait for device: %w", err)
		}
	}
}

func retryable(err error) bool {
	return !errors.Is(err, ErrInvalidRequest) &&
		!errors.Is(err, packet.ErrPayloadTooLarge) &&
		!errors.Is(err, transport.ErrClosed)
}
