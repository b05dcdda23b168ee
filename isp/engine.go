package isp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okmcu/fsisp/logger"
	"github.com/okmcu/fsisp/packet"
	"github.com/okmcu/fsisp/transport"
)

// rxBufferSize bounds the bytes collected for a single response.
const rxBufferSize = 256

// Request describes one exchange.
type Request struct {
	DeviceAddr uint8
	// Type is packet.TypeGet or packet.TypeSet.
	Type    packet.Type
	RegAddr uint8
	// Payload is the data written by a SET. It must be empty for a GET.
	Payload []byte
	// Timeout bounds the wait for the response.
	Timeout time.Duration
}

// Engine runs request/response exchanges over a transport.
//
// An Engine owns its receive buffer and must not be used by more than one goroutine at a time.
type Engine struct {
	tr      transport.Transport
	logger  logger.Logger
	metrics *Metrics
	state   State
	rxBuf   [rxBufferSize]byte
}

// NewEngine returns an engine on tr. A nil logger disables logging, nil metrics are replaced
// by a fresh set.
func NewEngine(tr transport.Transport, l logger.Logger, m *Metrics) *Engine {
	if l == nil {
		l = logger.Nop()
	}
	if m == nil {
		m = NewMetrics()
	}

	return &Engine{tr: tr, logger: l, metrics: m}
}

// State returns the phase reached by the last exchange.
func (e *Engine) State() State {
	return e.state
}

// Metrics returns the engine's counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Exchange sends req and waits for its response.
//
// For a GET, len(out) is the number of bytes requested; for a SET, out may be nil. The response
// payload is copied into out and its length returned. On failure out is left untouched.
//
// ctx is checked once before anything is sent; an exchange in flight runs to its timeout.
func (e *Engine) Exchange(ctx context.Context, req Request, out []byte) (int, error) {
	e.state = StateIdle

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	pkt, expected, err := req.packet(len(out))
	if err != nil {
		return 0, err
	}

	frame, err := packet.Encode(pkt)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if r, ok := e.tr.(transport.InputResetter); ok {
		if err := r.ResetInput(); err != nil {
			return 0, e.transportFailure("reset input", err)
		}
	}

	e.logger.Debug("isp: send request", "type", req.Type, "reg", req.RegAddr, "len", pkt.Length, "frame", logger.HexBytes(frame))

	if err := e.tr.Send(frame); err != nil {
		return 0, e.transportFailure("send", err)
	}
	e.state = StateSent
	e.metrics.incRequestCount()

	raw, err := e.receive(req.Timeout)
	if err != nil {
		return 0, err
	}

	resp, err := packet.Decode(raw)
	if err != nil {
		return 0, e.protocolFailure(err, raw)
	}

	if err := validate(pkt, resp, expected, len(out)); err != nil {
		var devErr *DeviceError
		if errors.As(err, &devErr) {
			e.state = StateProtocolError
			e.metrics.incProtocolErrCount()
			e.metrics.incDeviceFailure(devErr.Kind)
			e.logger.Debug("isp: device failure", "kind", devErr.Kind, "reg", devErr.Register)

			return 0, err
		}

		return 0, e.protocolFailure(err, raw)
	}

	n := copy(out, resp.Payload)
	e.state = StateValidated
	e.metrics.incResponseCount()

	e.logger.Debug("isp: response validated", "type", resp.Type, "reg", resp.RegAddr, "len", n)

	return n, nil
}

// packet builds the request frame and the response type it expects.
func (req *Request) packet(capacity int) (*packet.Packet, packet.Type, error) {
	var (
		pkt *packet.Packet
		err error
	)

	switch req.Type {
	case packet.TypeGet:
		if len(req.Payload) > 0 {
			return nil, 0, fmt.Errorf("%w: %w", ErrInvalidRequest, packet.ErrUnexpectedPayload)
		}
		pkt, err = packet.NewGet(req.DeviceAddr, req.RegAddr, capacity)
	case packet.TypeSet:
		pkt, err = packet.NewSet(req.DeviceAddr, req.RegAddr, req.Payload)
	default:
		return nil, 0, fmt.Errorf("%w: cannot send %s", ErrInvalidRequest, req.Type)
	}

	if err != nil {
		return nil, 0, err
	}

	if req.Type == packet.TypeGet {
		return pkt, packet.TypeSet, nil
	}

	return pkt, packet.TypeSuccess, nil
}

// receive collects one response frame. It stops as soon as the frame size announced by the
// header has arrived, when the buffer is full, or when the timeout expires.
func (e *Engine) receive(timeout time.Duration) ([]byte, error) {
	e.state = StateAwaitingResponse

	deadline := time.Now().Add(timeout)
	got := 0

	for got < len(e.rxBuf) {
		if got >= packet.HeaderSize {
			h, _ := packet.ParseHeader(e.rxBuf[:got])
			if int(h.Length) > packet.MaxPayloadSize {
				// no valid frame is that long, let the codec reject it
				break
			}
			if want := packet.FrameSize(h); got >= want {
				return e.rxBuf[:want], nil
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		n, err := e.tr.Receive(e.rxBuf[got:], remaining)
		got += n
		if err != nil {
			return nil, e.transportFailure("receive", err)
		}
	}

	if got == 0 {
		e.state = StateTimedOut
		e.metrics.incTimeoutCount()
		e.logger.Debug("isp: response timeout", "timeout", timeout)

		return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}

	if got >= packet.HeaderSize {
		h, _ := packet.ParseHeader(e.rxBuf[:got])
		if want := packet.FrameSize(h); int(h.Length) <= packet.MaxPayloadSize && got < want {
			err := fmt.Errorf("%w: got %d of %d frame bytes", packet.ErrTruncated, got, want)
			return nil, e.protocolFailure(err, e.rxBuf[:got])
		}
	}

	return e.rxBuf[:got], nil
}

func (e *Engine) transportFailure(op string, err error) error {
	e.state = StateTransportError
	e.metrics.incTransportErrCount()
	e.logger.Debug("isp: transport failure", "op", op, "error", err)

	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

func (e *Engine) protocolFailure(err error, raw []byte) error {
	e.state = StateProtocolError
	e.metrics.incProtocolErrCount()
	e.logger.Debug("isp: protocol error", "error", err, "raw", logger.HexBytes(raw))

	return fmt.Errorf("%w: %w", ErrProtocol, err)
}

// validate checks resp against req. Device failures are reported as *DeviceError, every
// other mismatch wraps one of the Err*Mismatch sentinels.
func validate(req, resp *packet.Packet, expected packet.Type, capacity int) error {
	if resp.DeviceAddr != req.DeviceAddr {
		return fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrAddressMismatch, resp.DeviceAddr, req.DeviceAddr)
	}

	if resp.Type.IsFailure() {
		return &DeviceError{Kind: resp.Type, Register: resp.RegAddr}
	}

	if resp.Type != expected {
		return fmt.Errorf("%w: got %s, want %s", ErrTypeMismatch, resp.Type, expected)
	}

	if resp.RegAddr != req.RegAddr {
		return fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrRegisterMismatch, resp.RegAddr, req.RegAddr)
	}

	if len(resp.Payload) > capacity {
		return fmt.Errorf("%w: %d bytes, buffer holds %d", ErrPayloadOverflow, len(resp.Payload), capacity)
	}

	return nil
}
