package isp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okmcu/fsisp/internal/simdev"
	"github.com/okmcu/fsisp/logger"
	"github.com/okmcu/fsisp/packet"
	"github.com/okmcu/fsisp/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func getRequest(reg uint8) Request {
	return Request{DeviceAddr: DefaultDeviceAddr, Type: packet.TypeGet, RegAddr: reg, Timeout: testTimeout}
}

func TestEngine_Get(t *testing.T) {
	dev := newTestDevice()
	e := NewEngine(dev, nil, nil)

	out := make([]byte, 4)
	n, err := e.Exchange(context.Background(), getRequest(RegBootloaderVersion), out)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{1, 2, 3, 0}, out)
	assert.Equal(t, StateValidated, e.State())

	reqs := dev.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, packet.TypeGet, reqs[0].Type)
	assert.Equal(t, uint8(4), reqs[0].Length)
	assert.Empty(t, reqs[0].Payload)

	assert.Equal(t, uint64(1), e.Metrics().RequestCount.Load())
	assert.Equal(t, uint64(1), e.Metrics().ResponseCount.Load())
}

func TestEngine_ShortAnswer(t *testing.T) {
	dev := newTestDevice()
	e := NewEngine(dev, nil, nil)

	out := make([]byte, packet.MaxPayloadSize)
	n, err := e.Exchange(context.Background(), getRequest(RegPartNumber), out)
	require.NoError(t, err)
	assert.Equal(t, "S32K144", string(out[:n]))
}

func TestEngine_Set(t *testing.T) {
	dev := newTestDevice()
	dev.SetRegister(0x20, []byte{0})
	dev.SetWritable(0x20)
	e := NewEngine(dev, nil, nil)

	req := Request{DeviceAddr: DefaultDeviceAddr, Type: packet.TypeSet, RegAddr: 0x20, Payload: []byte{0x12, 0x34}, Timeout: testTimeout}
	n, err := e.Exchange(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	data, _ := dev.Register(0x20)
	assert.Equal(t, []byte{0x12, 0x34}, data)
}

func TestEngine_ChunkedResponse(t *testing.T) {
	dev := newTestDevice()
	dev.SetChunkSize(1)
	e := NewEngine(dev, nil, nil)

	out := make([]byte, packet.MaxPayloadSize)
	n, err := e.Exchange(context.Background(), getRequest(RegUUID), out)
	require.NoError(t, err)
	assert.Equal(t, testAttributes.UUID, string(out[:n]))
}

func TestEngine_Timeout(t *testing.T) {
	dev := newTestDevice()
	dev.Inject(simdev.Fault{Kind: simdev.FaultSilent})
	e := NewEngine(dev, nil, nil)

	out := []byte{0xEE, 0xEE, 0xEE, 0xEE}
	_, err := e.Exchange(context.Background(), getRequest(RegBootloaderVersion), out)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateTimedOut, e.State())
	assert.Equal(t, []byte{0xEE, 0xEE, 0xEE, 0xEE}, out)
	assert.Equal(t, uint64(1), e.Metrics().TimeoutCount.Load())
}

func TestEngine_LateResponseDiscarded(t *testing.T) {
	dev := newTestDevice()
	dev.Inject(simdev.Fault{Kind: simdev.FaultLate})
	e := NewEngine(dev, nil, nil)

	out := make([]byte, 4)
	_, err := e.Exchange(context.Background(), getRequest(RegBootloaderSize), out)
	require.ErrorIs(t, err, ErrTimeout)

	// the stale size reply must not be taken for the version
	n, err := e.Exchange(context.Background(), getRequest(RegBootloaderVersion), out)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 0}, out[:n])
	assert.Equal(t, 2, dev.ResetCount())
}

func TestEngine_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name  string
		fault simdev.Fault
		want  error
	}{
		{name: "checksum", fault: simdev.Fault{Kind: simdev.FaultCorruptChecksum}, want: packet.ErrChecksumMismatch},
		{name: "truncated", fault: simdev.Fault{Kind: simdev.FaultTruncate}, want: packet.ErrTruncated},
		{name: "address", fault: simdev.Fault{Kind: simdev.FaultWrongAddress}, want: ErrAddressMismatch},
		{name: "register", fault: simdev.Fault{Kind: simdev.FaultWrongRegister}, want: ErrRegisterMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice()
			dev.Inject(tt.fault)
			e := NewEngine(dev, nil, nil)

			out := []byte{0xEE, 0xEE, 0xEE, 0xEE}
			_, err := e.Exchange(context.Background(), getRequest(RegBootloaderVersion), out)
			require.ErrorIs(t, err, ErrProtocol)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, StateProtocolError, e.State())
			assert.Equal(t, []byte{0xEE, 0xEE, 0xEE, 0xEE}, out, "output must be untouched")
			assert.Equal(t, uint64(1), e.Metrics().ProtocolErrCount.Load())
		})
	}
}

func TestEngine_TypeMismatch(t *testing.T) {
	dev := newTestDevice()
	dev.Inject(simdev.Fault{Kind: simdev.FaultFailure, Failure: packet.TypeSuccess})
	e := NewEngine(dev, nil, nil)

	_, err := e.Exchange(context.Background(), getRequest(RegBootloaderVersion), make([]byte, 4))
	require.ErrorIs(t, err, ErrProtocol)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestEngine_PayloadOverflow(t *testing.T) {
	// a device answering more than asked for
	raw, err := packet.Encode(&packet.Packet{
		Header:  packet.Header{DeviceAddr: DefaultDeviceAddr, Type: packet.TypeSet, RegAddr: 0x02, Length: 6},
		Payload: []byte{1, 2, 3, 4, 5, 6},
	})
	require.NoError(t, err)
	ft := &scriptedTransport{responses: [][]byte{raw}}
	e := NewEngine(ft, nil, nil)

	_, err = e.Exchange(context.Background(), getRequest(RegBootloaderVersion), make([]byte, 4))
	require.ErrorIs(t, err, ErrPayloadOverflow)
	require.ErrorIs(t, err, ErrProtocol)
}

func TestEngine_DeviceFailure(t *testing.T) {
	dev := newTestDevice()
	dev.Inject(simdev.Fault{Kind: simdev.FaultFailure, Failure: packet.TypeFailureErrPasswd})
	e := NewEngine(dev, nil, nil)

	_, err := e.Exchange(context.Background(), getRequest(RegUUID), make([]byte, 8))
	require.ErrorIs(t, err, ErrDeviceFailure)
	require.ErrorIs(t, err, ErrProtocol)

	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, packet.TypeFailureErrPasswd, devErr.Kind)
	assert.Equal(t, RegUUID, devErr.Register)
	assert.Equal(t, StateProtocolError, e.State())
	assert.Equal(t, uint64(1), e.Metrics().DeviceFailureCount(packet.TypeFailureErrPasswd))
	assert.Zero(t, e.Metrics().DeviceFailureCount(packet.TypeFailureErrHAL))
}

func TestEngine_UnknownRegister(t *testing.T) {
	e := NewEngine(newTestDevice(), nil, nil)

	_, err := e.Exchange(context.Background(), getRequest(0x42), make([]byte, 4))

	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, packet.TypeFailureUnknownReg, devErr.Kind)
}

func TestEngine_InvalidRequest(t *testing.T) {
	dev := newTestDevice()
	e := NewEngine(dev, nil, nil)
	ctx := context.Background()

	_, err := e.Exchange(ctx, getRequest(RegPartNumber), make([]byte, packet.MaxPayloadSize+1))
	require.ErrorIs(t, err, packet.ErrPayloadTooLarge)

	req := getRequest(RegPartNumber)
	req.Payload = []byte{1}
	_, err = e.Exchange(ctx, req, make([]byte, 4))
	require.ErrorIs(t, err, ErrInvalidRequest)

	req = getRequest(RegPartNumber)
	req.Type = packet.TypeSuccess
	_, err = e.Exchange(ctx, req, nil)
	require.ErrorIs(t, err, ErrInvalidRequest)

	assert.Empty(t, dev.Requests(), "nothing must be sent")
	assert.Equal(t, StateIdle, e.State())
}

func TestEngine_TransportFailure(t *testing.T) {
	dev := newTestDevice()
	lineErr := errors.New("line down")
	dev.FailSend(lineErr)
	e := NewEngine(dev, nil, nil)

	_, err := e.Exchange(context.Background(), getRequest(RegPartNumber), make([]byte, 4))
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, lineErr)
	assert.Equal(t, StateTransportError, e.State())

	require.NoError(t, dev.Close())
	_, err = e.Exchange(context.Background(), getRequest(RegPartNumber), make([]byte, 4))
	require.ErrorIs(t, err, transport.ErrClosed)
	assert.Equal(t, uint64(2), e.Metrics().TransportErrCount.Load())
}

func TestEngine_CanceledContext(t *testing.T) {
	dev := newTestDevice()
	e := NewEngine(dev, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Exchange(ctx, getRequest(RegPartNumber), make([]byte, 4))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dev.Requests())
}

func TestEngine_PartialFrame(t *testing.T) {
	full, err := packet.Encode(&packet.Packet{
		Header:  packet.Header{DeviceAddr: DefaultDeviceAddr, Type: packet.TypeSet, RegAddr: RegBootloaderVersion, Length: 4},
		Payload: []byte{1, 2, 3, 0},
	})
	require.NoError(t, err)

	for cut := 1; cut <= 4; cut++ {
		t.Run(fmt.Sprintf("missing %d", cut), func(t *testing.T) {
			e := NewEngine(&scriptedTransport{responses: [][]byte{full[:len(full)-cut]}}, nil, nil)

			out := []byte{0xEE, 0xEE, 0xEE, 0xEE}
			_, err := e.Exchange(context.Background(), getRequest(RegBootloaderVersion), out)
			require.ErrorIs(t, err, ErrProtocol)
			require.ErrorIs(t, err, packet.ErrTruncated)
			assert.NotErrorIs(t, err, packet.ErrChecksumMismatch)
			assert.NotErrorIs(t, err, ErrTimeout)
			assert.Equal(t, StateProtocolError, e.State())
			assert.Equal(t, []byte{0xEE, 0xEE, 0xEE, 0xEE}, out)
		})
	}
}

func TestEngine_OversizedHeader(t *testing.T) {
	// header announcing 200 bytes, followed by garbage
	ft := &scriptedTransport{responses: [][]byte{{0xAA, 0x01, 0x02, 200, 1, 2, 3}}}
	e := NewEngine(ft, nil, nil)

	_, err := e.Exchange(context.Background(), getRequest(RegBootloaderVersion), make([]byte, 4))
	require.ErrorIs(t, err, ErrProtocol)
	assert.Equal(t, StateProtocolError, e.State())
}

func TestEngine_Logging(t *testing.T) {
	dev := newTestDevice()
	dev.Inject(simdev.Fault{Kind: simdev.FaultSilent})

	l := logger.NewMockLogger()
	l.On("Debug", "isp: send request", mock.Anything).Return()
	l.On("Debug", "isp: response timeout", mock.Anything).Return()

	e := NewEngine(dev, l, nil)
	_, err := e.Exchange(context.Background(), getRequest(RegPartNumber), make([]byte, 4))
	require.ErrorIs(t, err, ErrTimeout)

	l.AssertCalled(t, "Debug", "isp: response timeout", []any{"timeout", testTimeout})
	l.AssertNumberOfCalls(t, "Debug", 2)
}

// scriptedTransport replays fixed responses, one per Send.
type scriptedTransport struct {
	responses [][]byte
	pending   []byte
}

func (s *scriptedTransport) Send([]byte) error {
	if len(s.responses) > 0 {
		s.pending = s.responses[0]
		s.responses = s.responses[1:]
	}

	return nil
}

func (s *scriptedTransport) Receive(p []byte, _ time.Duration) (int, error) {
	n := copy(p, s.pending)
	s.pending = s.pending[n:]

	return n, nil
}

func (s *scriptedTransport) Close() error { return nil }
