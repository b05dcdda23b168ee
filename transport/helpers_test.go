package transport

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"go.bug.st/serial"
)

// fakePort is an in-memory serial.Port. Only the methods used by Serial are implemented;
// calling any other method panics on the nil embedded interface.
type fakePort struct {
	serial.Port

	written     bytes.Buffer
	rx          [][]byte // chunks returned by successive Read calls
	readTimeout time.Duration
	writeErr    error
	readErr     error
	maxWrite    int // bytes accepted per Write call, 0 = unlimited
	resets      int
	closed      bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	if p.maxWrite > 0 && len(b) > p.maxWrite {
		b = b[:p.maxWrite]
	}

	return p.written.Write(b)
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.rx) == 0 {
		return 0, nil // timeout
	}

	n := copy(b, p.rx[0])
	if n < len(p.rx[0]) {
		p.rx[0] = p.rx[0][n:]
	} else {
		p.rx = p.rx[1:]
	}

	return n, nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.readTimeout = t
	return nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.resets++
	p.rx = nil

	return nil
}

func (p *fakePort) Close() error {
	if p.closed {
		return errors.New("already closed")
	}
	p.closed = true

	return nil
}

// useFakePort makes OpenSerial return port and records the requested mode.
func useFakePort(t *testing.T, port *fakePort) *serial.Mode {
	t.Helper()

	mode := &serial.Mode{}
	orig := openPort
	openPort = func(_ string, m *serial.Mode) (serial.Port, error) {
		*mode = *m
		return port, nil
	}
	t.Cleanup(func() { openPort = orig })

	return mode
}
