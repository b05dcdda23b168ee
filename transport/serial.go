package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/okmcu/fsisp/logger"
	"go.bug.st/serial"
)

// openPort is replaced in tests.
var openPort = serial.Open

// Serial is a Transport over a local serial port.
//
// Serial is NOT goroutine-safe.
type Serial struct {
	name   string
	port   serial.Port
	cfg    *LineConfig
	logger logger.Logger
	closed bool
}

var (
	_ Transport     = (*Serial)(nil)
	_ InputResetter = (*Serial)(nil)
)

// OpenSerial opens the named port ("COM3", "/dev/ttyUSB0") with the given line setting.
// A nil cfg selects the defaults (115200 8N1), a nil logger the package default.
func OpenSerial(name string, cfg *LineConfig, l logger.Logger) (*Serial, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty port name", ErrInvalidConfig)
	}
	if cfg == nil {
		var err error
		if cfg, err = NewLineConfig(); err != nil {
			return nil, err
		}
	}
	if l == nil {
		l = logger.GetLogger()
	}

	port, err := openPort(name, cfg.mode())
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", name, err)
	}

	l.Info("transport: serial port opened", "port", name, "line", cfg.String())

	return &Serial{
		name:   name,
		port:   port,
		cfg:    cfg,
		logger: l,
	}, nil
}

// Name returns the port name the transport was opened with.
func (s *Serial) Name() string { return s.name }

// Config returns the line setting in use.
func (s *Serial) Config() *LineConfig { return s.cfg }

// Send writes all of p to the port.
func (s *Serial) Send(p []byte) error {
	if s.closed {
		return ErrClosed
	}

	for written := 0; written < len(p); {
		n, err := s.port.Write(p[written:])
		written += n

		if err != nil {
			return fmt.Errorf("transport: write %s: %w", s.name, err)
		}
		if n == 0 {
			return fmt.Errorf("transport: write %s: no progress after %d of %d bytes", s.name, written, len(p))
		}
	}

	return nil
}

// Receive waits at most timeout for data and returns what arrived, up to len(p) bytes.
// A non-positive timeout returns immediately without reading.
func (s *Serial) Receive(p []byte, timeout time.Duration) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 || timeout <= 0 {
		return 0, nil
	}

	if err := s.port.SetReadTimeout(timeout); err != nil {
		return 0, fmt.Errorf("transport: set read timeout on %s: %w", s.name, err)
	}

	n, err := s.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("transport: read %s: %w", s.name, err)
	}

	return n, nil
}

// ResetInput discards any bytes received but not yet read.
func (s *Serial) ResetInput() error {
	if s.closed {
		return ErrClosed
	}

	return s.port.ResetInputBuffer()
}

// Close closes the port. Closing twice returns ErrClosed.
func (s *Serial) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true

	if err := s.port.Close(); err != nil {
		return fmt.Errorf("transport: close %s: %w", s.name, err)
	}
	s.logger.Info("transport: serial port closed", "port", s.name)

	return nil
}

// ListPorts returns the names of the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("transport: list ports: %w", err)
	}

	return ports, nil
}

// IsPortBusy reports whether err was caused by the port being held by another process.
func IsPortBusy(err error) bool {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		return portErr.Code() == serial.PortBusy
	}

	return false
}
