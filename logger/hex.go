package logger

import (
	"fmt"
	"log/slog"
)

// HexBytes is a log value rendering bytes as space separated hex pairs, e.g. "AA 02 00 80 71".
// The text is only built when a record is actually written.
type HexBytes []byte

var (
	_ slog.LogValuer = HexBytes(nil)
	_ fmt.Stringer   = HexBytes(nil)
)

func (b HexBytes) String() string {
	return fmt.Sprintf("% X", []byte(b))
}

// LogValue implements slog.LogValuer.
func (b HexBytes) LogValue() slog.Value {
	return slog.StringValue(b.String())
}
