package utils

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// HashSize is the length in bytes of every hash produced here.
const HashSize = 32

// Blake3Hash returns the 32 byte BLAKE3 digest of msg.
func Blake3Hash(msg []byte) []byte {
	sum := blake3.Sum256(msg)
	return sum[:]
}

// GetHashFromString returns the BLAKE3 digest of s.
func GetHashFromString(s string) []byte {
	return Blake3Hash([]byte(s))
}

// GetHashFromBytes returns the hex-encoded BLAKE3 digest of msg.
func GetHashFromBytes(msg []byte) string {
	return hex.EncodeToString(Blake3Hash(msg))
}
