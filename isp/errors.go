package isp

import (
	"errors"
	"fmt"

	"github.com/okmcu/fsisp/packet"
)

// Sentinel errors for transactions.
var (
	// ErrTransport wraps a send or receive failure reported by the transport.
	ErrTransport = errors.New("isp: transport failure")
	// ErrTimeout indicates that no response byte arrived within the request timeout.
	ErrTimeout = errors.New("isp: response timeout")
	// ErrProtocol indicates a malformed response or one that does not match the request.
	ErrProtocol = errors.New("isp: protocol error")

	ErrAddressMismatch  = errors.New("isp: response device address mismatch")
	ErrTypeMismatch     = errors.New("isp: unexpected response type")
	ErrRegisterMismatch = errors.New("isp: response register mismatch")
	ErrPayloadOverflow  = errors.New("isp: response payload exceeds buffer")

	// ErrDeviceFailure is matched by every *DeviceError.
	ErrDeviceFailure = errors.New("isp: device reported failure")

	ErrInvalidRequest   = errors.New("isp: invalid request")
	ErrShortRegister    = errors.New("isp: register value too short")
	ErrRetriesExhausted = errors.New("isp: retries exhausted")
)

// DeviceError is a FAILURE_* response reported by the device.
type DeviceError struct {
	// Kind is the failure packet type, one of the packet.TypeFailure* constants.
	Kind packet.Type
	// Register is the register address echoed by the device.
	Register uint8
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("isp: device reported %s for register 0x%02X", e.Kind, e.Register)
}

// Is makes errors.Is match both ErrDeviceFailure and ErrProtocol for any DeviceError.
func (e *DeviceError) Is(target error) bool {
	return target == ErrDeviceFailure || target == ErrProtocol
}

// RegisterError reports which register of the attribute sequence failed.
type RegisterError struct {
	Register uint8
	Name     string
	Err      error
}

func (e *RegisterError) Error() string {
	return fmt.Sprintf("isp: read register 0x%02X (%s): %v", e.Register, e.Name, e.Err)
}

func (e *RegisterError) Unwrap() error {
	return e.Err
}
