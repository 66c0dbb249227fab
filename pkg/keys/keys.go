// Package keys derives distributed-store keys from read locations and write signatures.
package keys

import "strings"

// WriteTag prefixes every key produced for an authenticated write.
const WriteTag = "e_"

// StoreKey is an opaque key in the distributed store.
type StoreKey []byte

// DeriveReadKey maps a location to its store key. The mapping is the identity on the
// location bytes; readers address records by whatever key the writer was given.
func DeriveReadKey(location string) StoreKey {
	return StoreKey(location)
}

// DeriveWriteKey maps a write signature to its store key. The signature is embedded
// verbatim, so distinct signatures over the same entry yield distinct keys.
func DeriveWriteKey(signature string) StoreKey {
	return StoreKey(WriteTag + signature)
}

// Bytes returns the raw key.
func (k StoreKey) Bytes() []byte {
	return []byte(k)
}

func (k StoreKey) String() string {
	return string(k)
}

// IsWriteKey reports whether k carries the write tag.
func (k StoreKey) IsWriteKey() bool {
	return strings.HasPrefix(string(k), WriteTag)
}

// Signature returns the signature embedded in a write key.
func (k StoreKey) Signature() (string, bool) {
	if !k.IsWriteKey() {
		return "", false
	}
	return strings.TrimPrefix(string(k), WriteTag), true
}
