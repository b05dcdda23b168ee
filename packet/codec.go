package packet

import (
	"bytes"
	"fmt"
)

// Encode serializes p to its wire format.
//
// For a GET, p.Length is the number of bytes requested and p.Payload must be empty; the
// checksum covers the header alone. For every other type the length field is taken from
// len(p.Payload) and the checksum covers header and payload.
//
// Encode fails with ErrPayloadTooLarge before producing any output when the payload (or
// the GET request size) exceeds MaxPayloadSize.
func Encode(p *Packet) ([]byte, error) {
	h := p.Header

	if h.Type == TypeGet {
		if len(p.Payload) > 0 {
			return nil, fmt.Errorf("%w: got %d bytes", ErrUnexpectedPayload, len(p.Payload))
		}
		if h.Length > MaxPayloadSize {
			return nil, fmt.Errorf("%w: requested %d bytes, max %d", ErrPayloadTooLarge, h.Length, MaxPayloadSize)
		}
	} else {
		if len(p.Payload) > MaxPayloadSize {
			return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(p.Payload), MaxPayloadSize)
		}
		h.Length = uint8(len(p.Payload))
	}

	frame := make([]byte, 0, FrameSize(h))
	frame = append(frame, h.Bytes()...)

	crc := Checksum(frame)
	if h.PayloadSize() > 0 {
		frame = append(frame, p.Payload...)
		crc = ChecksumUpdate(crc, p.Payload)
	}

	return append(frame, crc), nil
}

// Decode parses a received frame.
//
// The trailing byte of raw must be the checksum of every byte before it. Decode validates,
// in order:
//   - raw holds at least a header and a checksum (ErrTruncated).
//   - The checksum matches (ErrChecksumMismatch).
//   - The declared length is at most MaxPayloadSize (ErrPayloadTooLarge).
//   - The declared payload fits before the checksum (ErrTruncated).
//
// The returned payload is a copy of exactly PayloadSize() bytes.
func Decode(raw []byte) (*Packet, error) {
	if len(raw) < MinFrameSize {
		return nil, fmt.Errorf("%w: got %d bytes, want at least %d", ErrTruncated, len(raw), MinFrameSize)
	}

	last := len(raw) - 1
	if calc := Checksum(raw[:last]); calc != raw[last] {
		return nil, fmt.Errorf("%w: wire=0x%02X, computed=0x%02X", ErrChecksumMismatch, raw[last], calc)
	}

	h, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}

	if h.Length > MaxPayloadSize {
		return nil, fmt.Errorf("%w: declared %d bytes, max %d", ErrPayloadTooLarge, h.Length, MaxPayloadSize)
	}

	n := h.PayloadSize()
	if HeaderSize+n > last {
		return nil, fmt.Errorf("%w: declared %d payload bytes, %d available", ErrTruncated, n, last-HeaderSize)
	}

	p := &Packet{Header: h}
	if n > 0 {
		p.Payload = bytes.Clone(raw[HeaderSize : HeaderSize+n])
	}

	return p, nil
}
