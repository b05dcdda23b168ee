package packet

import (
	"errors"
	"fmt"
)

// Frame geometry.
const (
	// HeaderSize is the fixed size of the packet header.
	HeaderSize = 4

	// ChecksumSize is the size of the trailing CRC.
	ChecksumSize = 1

	// MaxPayloadSize is the maximum number of payload bytes in a packet, and the maximum
	// number of bytes a GET may request.
	MaxPayloadSize = 128

	// MinFrameSize is the size of a frame without payload.
	MinFrameSize = HeaderSize + ChecksumSize

	// MaxFrameSize is the size of a frame carrying a full payload.
	MaxFrameSize = HeaderSize + MaxPayloadSize + ChecksumSize
)

// BroadcastAddr is the reserved device address addressing every target on the line.
const BroadcastAddr uint8 = 0x00

// Sentinel errors returned by the codec.
var (
	ErrTruncated         = errors.New("packet: truncated frame")
	ErrChecksumMismatch  = errors.New("packet: checksum mismatch")
	ErrPayloadTooLarge   = errors.New("packet: payload too large")
	ErrUnexpectedPayload = errors.New("packet: GET request must not carry payload")
)

// Type is the packet type byte.
type Type uint8

// Packet types. A read is answered by a TypeSet packet carrying the register contents,
// a write by TypeSuccess. Failure kinds are reported by the device in place of either.
const (
	TypeSet     Type = 0x01
	TypeGet     Type = 0x02
	TypeSuccess Type = 0x80

	TypeFailureErrLength    Type = 0x81
	TypeFailureNotSupport   Type = 0x82
	TypeFailureErrPasswd    Type = 0x83
	TypeFailureErrSignature Type = 0x84
	TypeFailureErrHAL       Type = 0x85
	TypeFailureErrParam     Type = 0x86
	TypeFailureUnknownReg   Type = 0x87
)

// String returns the protocol name of the type.
func (t Type) String() string {
	switch t {
	case TypeSet:
		return "SET"
	case TypeGet:
		return "GET"
	case TypeSuccess:
		return "SUCCESS"
	case TypeFailureErrLength:
		return "FAILURE_ERR_LENGTH"
	case TypeFailureNotSupport:
		return "FAILURE_NOT_SUPPORT"
	case TypeFailureErrPasswd:
		return "FAILURE_ERR_PASSWD"
	case TypeFailureErrSignature:
		return "FAILURE_ERR_SIGNATURE"
	case TypeFailureErrHAL:
		return "FAILURE_ERR_HAL"
	case TypeFailureErrParam:
		return "FAILURE_ERR_PARAM"
	case TypeFailureUnknownReg:
		return "FAILURE_UNKNOWN_REG"
	default:
		return fmt.Sprintf("Type(0x%02X)", uint8(t))
	}
}

// IsFailure reports whether t is one of the device-reported failure kinds.
func (t Type) IsFailure() bool {
	return t >= TypeFailureErrLength && t <= TypeFailureUnknownReg
}

// IsValid reports whether t is a known packet type.
func (t Type) IsValid() bool {
	return t == TypeSet || t == TypeGet || t == TypeSuccess || t.IsFailure()
}

// Header is the fixed 4-byte packet header.
type Header struct {
	DeviceAddr uint8
	Type       Type
	RegAddr    uint8
	// Length is the payload size, or the number of bytes requested by a GET.
	Length uint8
}

// Bytes returns the wire encoding of the header.
func (h Header) Bytes() []byte {
	return []byte{h.DeviceAddr, byte(h.Type), h.RegAddr, h.Length}
}

// PayloadSize returns the number of payload bytes that follow the header on the wire.
// A GET carries none, whatever its Length.
func (h Header) PayloadSize() int {
	if h.Type == TypeGet {
		return 0
	}

	return int(h.Length)
}

// ParseHeader decodes the header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d header bytes, want %d", ErrTruncated, len(b), HeaderSize)
	}

	return Header{
		DeviceAddr: b[0],
		Type:       Type(b[1]),
		RegAddr:    b[2],
		Length:     b[3],
	}, nil
}

// FrameSize returns the on-wire size of the frame described by h.
func FrameSize(h Header) int {
	return HeaderSize + h.PayloadSize() + ChecksumSize
}

// Packet is a decoded frame.
type Packet struct {
	Header
	Payload []byte
}

// NewGet returns a read request for n bytes of register regAddr.
func NewGet(devAddr, regAddr uint8, n int) (*Packet, error) {
	if n < 0 || n > MaxPayloadSize {
		return nil, fmt.Errorf("%w: requested %d bytes, max %d", ErrPayloadTooLarge, n, MaxPayloadSize)
	}

	return &Packet{Header: Header{DeviceAddr: devAddr, Type: TypeGet, RegAddr: regAddr, Length: uint8(n)}}, nil
}

// NewSet returns a write request storing data into register regAddr.
func NewSet(devAddr, regAddr uint8, data []byte) (*Packet, error) {
	return NewResponse(devAddr, TypeSet, regAddr, data)
}

// NewResponse returns a packet of type typ carrying data, as sent by a device.
func NewResponse(devAddr uint8, typ Type, regAddr uint8, data []byte) (*Packet, error) {
	if len(data) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(data), MaxPayloadSize)
	}

	return &Packet{
		Header:  Header{DeviceAddr: devAddr, Type: typ, RegAddr: regAddr, Length: uint8(len(data))},
		Payload: data,
	}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler using Encode.
func (p *Packet) MarshalBinary() ([]byte, error) {
	return Encode(p)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using Decode.
func (p *Packet) UnmarshalBinary(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*p = *decoded

	return nil
}
