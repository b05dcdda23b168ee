// Package packet implements the wire format of the fsisp bootloader protocol.
//
// # Frame Layout
//
// Every request and response is a single frame:
//
//	[DEV_ADDR(1)][TYPE(1)][REG_ADDR(1)][LENGTH(1)][PAYLOAD(0-128)][CRC(1)]
//
// DEV_ADDR is the target address (1-255, 0 is broadcast). REG_ADDR selects a device-defined
// register. LENGTH is the number of payload bytes that follow for a SET (or any response),
// and the number of bytes requested for a GET, which carries no payload on the wire.
//
// # Checksum
//
// CRC is CRC-8/MAXIM (polynomial 0x31, reflected, zero init, no final XOR) computed over
// every byte that precedes it on the wire: the header alone for a GET, header and payload
// otherwise. [ChecksumUpdate] lets the header and payload be folded separately.
//
// # Codec
//
//	p, _ := packet.NewGet(0xAA, 0x00, 128)
//	frame, err := packet.Encode(p)
//
//	resp, err := packet.Decode(frame)
//	if errors.Is(err, packet.ErrChecksumMismatch) {
//	    // corrupted on the line
//	}
//
// Decode copies the payload out of the input buffer; the returned packet never aliases it.
package packet
