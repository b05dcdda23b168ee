// Package transport provides the byte links the fsisp protocol engine runs over.
//
// The engine only depends on the Transport interface: send a buffer, receive whatever
// arrives within a timeout, close. OpenSerial implements it on a local serial port with a
// configurable line setting (baud rate, byte size, parity, stop bits).
package transport

import (
	"errors"
	"time"
)

// Sentinel errors for transports.
var (
	ErrClosed        = errors.New("transport: closed")
	ErrInvalidConfig = errors.New("transport: invalid line configuration")
)

// Transport is a half-duplex byte link to a single device.
//
// Implementations are not required to be goroutine-safe; a handle is owned by exactly one caller.
type Transport interface {
	// Send writes all of p, blocking until every byte has been accepted or an error occurs.
	Send(p []byte) error

	// Receive reads up to len(p) bytes, waiting at most timeout for data to arrive.
	// It returns the number of bytes read; zero bytes within the timeout is not an error.
	Receive(p []byte, timeout time.Duration) (int, error)

	// Close releases the link. Subsequent calls to Send or Receive return ErrClosed.
	Close() error
}

// InputResetter is implemented by transports able to discard unread input, such as a late
// reply to a timed-out request.
type InputResetter interface {
	ResetInput() error
}
