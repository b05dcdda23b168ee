// Package isp implements the host side of the fsisp bootloader protocol: a synchronous
// request/response transaction engine and a client that reads the device attributes.
//
// # Transactions
//
// An exchange is strictly half-duplex. The Engine encodes one request frame, sends it, then
// waits up to the request timeout for a single response frame, which is validated against
// the request before its payload is copied to the caller:
//
//	Idle -> Sent -> AwaitingResponse -> Validated | TimedOut | ProtocolError
//
// A send or receive failure ends the exchange in TransportError.
//
// A GET of register R is answered by a SET packet from the same device address carrying R's
// contents; a SET is answered by SUCCESS. A device may instead answer with one of the
// FAILURE_* packet types, reported as a *DeviceError carrying the failure kind. The Engine
// never retries.
//
// # Device Attributes
//
// Client.ReadAttributes reads five fixed registers in sequence:
//
//	0x00  MCU part number     up to 128 bytes of text
//	0x01  MCU UUID            up to 128 bytes of text
//	0x02  bootloader version  [major][minor][build lo][build hi]
//	0x03  bootloader address  32-bit, byte 3 most significant
//	0x04  bootloader size     32-bit, byte 3 most significant
//
// and stops at the first failing register with a *RegisterError. Client.WaitAttributes
// repeats the whole sequence until the device answers, up to the configured retry limit,
// sleeping between attempts and returning early when the context is cancelled.
//
// # Errors
//
// Failures are reported with sentinel errors to be tested with errors.Is:
//
//	attr, err := client.ReadAttributes(ctx)
//	switch {
//	case errors.Is(err, isp.ErrTimeout):
//	    // the device did not answer
//	case errors.Is(err, packet.ErrChecksumMismatch):
//	    // corrupted response, also matches isp.ErrProtocol
//	case errors.As(err, &devErr):
//	    // devErr.Kind is the FAILURE_* type reported by the device
//	case errors.Is(err, isp.ErrProtocol):
//	    // any other malformed or mismatched response
//	}
//
// Engine and Client are not goroutine-safe; a transport handle has a single owner.
package isp
