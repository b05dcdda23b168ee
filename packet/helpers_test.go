package packet

import (
	"math/rand/v2"
)

func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rng.UintN(256))
	}

	return b
}

// frameWithCRC appends a valid checksum to body.
func frameWithCRC(body ...byte) []byte {
	return append(body, Checksum(body))
}
