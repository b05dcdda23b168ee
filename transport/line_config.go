package transport

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// Line setting defaults.
const (
	DefaultBaudRate = 115200
	DefaultByteSize = 8

	MinByteSize = 5
	MaxByteSize = 8
)

// Parity is the parity mode of a serial line.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	case ParityMark:
		return "mark"
	case ParitySpace:
		return "space"
	default:
		return fmt.Sprintf("Parity(%d)", int(p))
	}
}

// ParseParity parses a parity name ("none", "odd", "even", "mark", "space" or the first letter).
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "n":
		return ParityNone, nil
	case "odd", "o":
		return ParityOdd, nil
	case "even", "e":
		return ParityEven, nil
	case "mark", "m":
		return ParityMark, nil
	case "space", "s":
		return ParitySpace, nil
	}

	return ParityNone, fmt.Errorf("%w: unknown parity %q", ErrInvalidConfig, s)
}

// StopBits is the number of stop bits of a serial line.
type StopBits int

const (
	StopBits1 StopBits = iota
	StopBits1Half
	StopBits2
)

func (s StopBits) String() string {
	switch s {
	case StopBits1:
		return "1"
	case StopBits1Half:
		return "1.5"
	case StopBits2:
		return "2"
	default:
		return fmt.Sprintf("StopBits(%d)", int(s))
	}
}

// ParseStopBits parses "1", "1.5" or "2".
func ParseStopBits(s string) (StopBits, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return StopBits1, nil
	case "1.5":
		return StopBits1Half, nil
	case "2":
		return StopBits2, nil
	}

	return StopBits1, fmt.Errorf("%w: unknown stop bits %q", ErrInvalidConfig, s)
}

// LineConfig is the configuration of a serial line.
type LineConfig struct {
	baudRate int
	byteSize int
	parity   Parity
	stopBits StopBits
}

// NewLineConfig creates a line configuration, 115200 8N1 unless overridden by opts.
func NewLineConfig(opts ...LineOption) (*LineConfig, error) {
	cfg := &LineConfig{
		baudRate: DefaultBaudRate,
		byteSize: DefaultByteSize,
		parity:   ParityNone,
		stopBits: StopBits1,
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// BaudRate returns the line speed in bits per second.
func (cfg *LineConfig) BaudRate() int { return cfg.baudRate }

// ByteSize returns the number of data bits per character.
func (cfg *LineConfig) ByteSize() int { return cfg.byteSize }

// Parity returns the parity mode.
func (cfg *LineConfig) Parity() Parity { return cfg.parity }

// StopBits returns the number of stop bits.
func (cfg *LineConfig) StopBits() StopBits { return cfg.stopBits }

// String renders the setting in the usual "115200 8N1" notation.
func (cfg *LineConfig) String() string {
	return fmt.Sprintf("%d %d%s%s", cfg.baudRate, cfg.byteSize,
		strings.ToUpper(cfg.parity.String()[:1]), cfg.stopBits)
}

// mode converts the configuration to the serial driver's representation.
func (cfg *LineConfig) mode() *serial.Mode {
	parity := map[Parity]serial.Parity{
		ParityNone:  serial.NoParity,
		ParityOdd:   serial.OddParity,
		ParityEven:  serial.EvenParity,
		ParityMark:  serial.MarkParity,
		ParitySpace: serial.SpaceParity,
	}
	stopBits := map[StopBits]serial.StopBits{
		StopBits1:     serial.OneStopBit,
		StopBits1Half: serial.OnePointFiveStopBits,
		StopBits2:     serial.TwoStopBits,
	}

	return &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: cfg.byteSize,
		Parity:   parity[cfg.parity],
		StopBits: stopBits[cfg.stopBits],
	}
}

// --- LineOption ---

// LineOption is a functional option for configuring a LineConfig.
type LineOption interface {
	apply(*LineConfig) error
}

type lineOptFunc func(*LineConfig) error

func (f lineOptFunc) apply(cfg *LineConfig) error { return f(cfg) }

// WithBaudRate sets the line speed. Must be positive.
func WithBaudRate(rate int) LineOption {
	return lineOptFunc(func(cfg *LineConfig) error {
		if rate <= 0 {
			return fmt.Errorf("%w: baud rate %d must be positive", ErrInvalidConfig, rate)
		}
		cfg.baudRate = rate

		return nil
	})
}

// WithByteSize sets the number of data bits, 5 to 8.
func WithByteSize(bits int) LineOption {
	return lineOptFunc(func(cfg *LineConfig) error {
		if bits < MinByteSize || bits > MaxByteSize {
			return fmt.Errorf("%w: byte size %d out of range [%d, %d]", ErrInvalidConfig, bits, MinByteSize, MaxByteSize)
		}
		cfg.byteSize = bits

		return nil
	})
}

// WithParity sets the parity mode.
func WithParity(p Parity) LineOption {
	return lineOptFunc(func(cfg *LineConfig) error {
		if p < ParityNone || p > ParitySpace {
			return fmt.Errorf("%w: parity %d", ErrInvalidConfig, int(p))
		}
		cfg.parity = p

		return nil
	})
}

// WithStopBits sets the number of stop bits.
func WithStopBits(s StopBits) LineOption {
	return lineOptFunc(func(cfg *LineConfig) error {
		if s < StopBits1 || s > StopBits2 {
			return fmt.Errorf("%w: stop bits %d", ErrInvalidConfig, int(s))
		}
		cfg.stopBits = s

		return nil
	})
}
