// Package simdev simulates a device running the fsisp bootloader behind a transport.Transport.
//
// A Device answers GET and SET requests from an in-memory register map, and can be told to
// misbehave on upcoming requests to exercise the host's error handling.
package simdev

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"

	"github.com/okmcu/fsisp/packet"
	"github.com/okmcu/fsisp/transport"
)

// FaultKind selects how the device misbehaves on one request.
type FaultKind int

const (
	// FaultSilent drops the request without answering.
	FaultSilent FaultKind = iota + 1
	// FaultCorruptChecksum flips the CRC byte of the response.
	FaultCorruptChecksum
	// FaultWrongRegister answers with the register address incremented.
	FaultWrongRegister
	// FaultWrongAddress answers from another device address.
	FaultWrongAddress
	// FaultFailure answers with Fault.Failure instead of the normal response.
	FaultFailure
	// FaultLate delivers the response only after the receive timeout expired.
	FaultLate
	// FaultTruncate drops the last byte of the response.
	FaultTruncate
)

// Fault is one injected misbehaviour.
type Fault struct {
	Kind FaultKind
	// Failure is the FAILURE_* type answered by FaultFailure.
	Failure packet.Type
}

// Device is a simulated bootloader. It is safe for concurrent use.
type Device struct {
	mu        sync.Mutex
	addr      uint8
	regs      map[uint8][]byte
	writable  map[uint8]bool
	faults    []Fault
	pending   []byte
	late      []byte
	chunk     int
	closed    bool
	requests  []*packet.Packet
	sendErr   error
	resetHits int
}

var (
	_ transport.Transport     = (*Device)(nil)
	_ transport.InputResetter = (*Device)(nil)
)

// New returns a device listening on addr with an empty register map.
func New(addr uint8) *Device {
	return &Device{
		addr:     addr,
		regs:     make(map[uint8][]byte),
		writable: make(map[uint8]bool),
	}
}

// Attributes describes the contents of the attribute registers.
type Attributes struct {
	PartNumber string
	UUID       string
	Major      uint8
	Minor      uint8
	Build      uint16
	FlashAddr  uint32
	Size       uint32
}

// NewBootloader returns a device on addr with the attribute registers 0x00 to 0x04 populated.
func NewBootloader(addr uint8, a Attributes) *Device {
	d := New(addr)

	version := []byte{a.Major, a.Minor, 0, 0}
	binary.LittleEndian.PutUint16(version[2:], a.Build)

	d.SetRegister(0x00, []byte(a.PartNumber))
	d.SetRegister(0x01, []byte(a.UUID))
	d.SetRegister(0x02, version)
	d.SetRegister(0x03, binary.LittleEndian.AppendUint32(nil, a.FlashAddr))
	d.SetRegister(0x04, binary.LittleEndian.AppendUint32(nil, a.Size))

	return d
}

// SetRegister sets the contents of register reg.
func (d *Device) SetRegister(reg uint8, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.regs[reg] = bytes.Clone(data)
}

// Register returns a copy of the contents of register reg.
func (d *Device) Register(reg uint8) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, ok := d.regs[reg]

	return bytes.Clone(data), ok
}

// SetWritable allows SET requests on register reg. Other registers answer FAILURE_NOT_SUPPORT.
func (d *Device) SetWritable(reg uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writable[reg] = true
}

// Inject queues faults applied to the next requests, one fault per request.
func (d *Device) Inject(faults ...Fault) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.faults = append(d.faults, faults...)
}

// SetChunkSize makes Receive return at most n bytes per call. Zero disables chunking.
func (d *Device) SetChunkSize(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.chunk = n
}

// FailSend makes subsequent Send calls return err. A nil err clears it.
func (d *Device) FailSend(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sendErr = err
}

// Requests returns the decoded requests received so far.
func (d *Device) Requests() []*packet.Packet {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]*packet.Packet(nil), d.requests...)
}

// ResetCount returns how many times the input was reset.
func (d *Device) ResetCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.resetHits
}

// Send implements transport.Transport. A frame that does not decode is dropped like on a
// real line.
func (d *Device) Send(p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return transport.ErrClosed
	}
	if d.sendErr != nil {
		return d.sendErr
	}

	req, err := packet.Decode(p)
	if err != nil {
		return nil
	}
	d.requests = append(d.requests, req)

	if req.DeviceAddr != d.addr {
		return nil
	}

	var fault Fault
	if len(d.faults) > 0 {
		fault = d.faults[0]
		d.faults = d.faults[1:]
	}

	resp := d.handle(req, fault)
	if resp == nil {
		return nil
	}

	frame, err := packet.Encode(resp)
	if err != nil {
		return nil
	}

	switch fault.Kind {
	case FaultCorruptChecksum:
		frame[len(frame)-1] ^= 0xFF
	case FaultTruncate:
		frame = frame[:len(frame)-1]
	case FaultLate:
		d.late = frame
		return nil
	}

	d.pending = append(d.pending, frame...)

	return nil
}

func (d *Device) handle(req *packet.Packet, fault Fault) *packet.Packet {
	addr, reg := d.addr, req.RegAddr

	switch fault.Kind {
	case FaultSilent:
		return nil
	case FaultWrongRegister:
		reg++
	case FaultWrongAddress:
		addr++
	case FaultFailure:
		return reply(addr, fault.Failure, reg)
	}

	switch req.Type {
	case packet.TypeGet:
		data, ok := d.regs[req.RegAddr]
		if !ok {
			return reply(addr, packet.TypeFailureUnknownReg, reg)
		}
		if len(data) > int(req.Length) {
			data = data[:req.Length]
		}
		resp, _ := packet.NewResponse(addr, packet.TypeSet, reg, bytes.Clone(data))

		return resp
	case packet.TypeSet:
		if _, ok := d.regs[req.RegAddr]; !ok {
			return reply(addr, packet.TypeFailureUnknownReg, reg)
		}
		if !d.writable[req.RegAddr] {
			return reply(addr, packet.TypeFailureNotSupport, reg)
		}
		d.regs[req.RegAddr] = bytes.Clone(req.Payload)

		return reply(addr, packet.TypeSuccess, reg)
	default:
		return reply(addr, packet.TypeFailureErrParam, reg)
	}
}

// reply returns an empty packet of type typ.
func reply(addr uint8, typ packet.Type, reg uint8) *packet.Packet {
	return &packet.Packet{Header: packet.Header{DeviceAddr: addr, Type: typ, RegAddr: reg}}
}

// Receive implements transport.Transport. With nothing to deliver it waits for the whole
// timeout, like a silent line.
func (d *Device) Receive(p []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()

	if d.closed {
		d.mu.Unlock()
		return 0, transport.ErrClosed
	}

	if len(d.pending) == 0 {
		d.mu.Unlock()
		if timeout > 0 {
			time.Sleep(timeout)
		}

		d.mu.Lock()
		if d.late != nil {
			d.pending = append(d.pending, d.late...)
			d.late = nil
		}
		d.mu.Unlock()

		return 0, nil
	}
	defer d.mu.Unlock()

	limit := len(p)
	if d.chunk > 0 && d.chunk < limit {
		limit = d.chunk
	}
	n := copy(p[:limit], d.pending)
	d.pending = d.pending[n:]

	return n, nil
}

// ResetInput implements transport.InputResetter.
func (d *Device) ResetInput() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return transport.ErrClosed
	}
	d.resetHits++
	d.pending = nil
	d.late = nil

	return nil
}

// Close implements transport.Transport.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return transport.ErrClosed
	}
	d.closed = true

	return nil
}
