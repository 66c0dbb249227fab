package utils

import (
	"bytes"
	"encoding/hex"
	"testing"

	"lukechampine.com/blake3"
)

func TestBlake3Hash(t *testing.T) {
	t.Parallel()

	msg := []byte("e_3045022100")
	want := blake3.Sum256(msg)

	got := Blake3Hash(msg)
	if !bytes.Equal(got, want[:]) {
		t.Fatalf("hash mismatch")
	}
	if len(got) != HashSize {
		t.Fatalf("unexpected hash size %d", len(got))
	}
}

func TestGetHashFromString(t *testing.T) {
	t.Parallel()

	if !bytes.Equal(GetHashFromString("node-1"), Blake3Hash([]byte("node-1"))) {
		t.Fatalf("string and byte hashes differ")
	}
	if bytes.Equal(GetHashFromString("node-1"), GetHashFromString("node-2")) {
		t.Fatalf("distinct inputs hashed equal")
	}
}

func TestGetHashFromBytes(t *testing.T) {
	t.Parallel()

	want := blake3.Sum256([]byte("data"))
	if got := GetHashFromBytes([]byte("data")); got != hex.EncodeToString(want[:]) {
		t.Fatalf("hex hash mismatch: %s", got)
	}
}
