package packet

import (
	"math/bits"

	"github.com/sigurn/crc8"
)

// crcTable is the CRC-8/MAXIM (Dallas 1-Wire) lookup table.
var crcTable = crc8.MakeTable(crc8.CRC8_MAXIM)

// Checksum returns the CRC-8/MAXIM of data. An empty input yields 0x00.
func Checksum(data []byte) byte {
	return crc8.Checksum(data, crcTable)
}

// ChecksumUpdate continues a checksum previously returned by Checksum or ChecksumUpdate
// over more data, so that ChecksumUpdate(Checksum(a), b) == Checksum(append(a, b...)).
func ChecksumUpdate(crc byte, data []byte) byte {
	// crc8 keeps its running register unreflected, the finished value is reflected.
	return crc8.Complete(crc8.Update(bits.Reverse8(crc), data, crcTable), crcTable)
}
