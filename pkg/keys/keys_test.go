package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveReadKey(t *testing.T) {
	tests := map[string]struct {
		location string
		expected string
	}{
		"plain":     {location: "docs/readme", expected: "docs/readme"},
		"write key": {location: "e_3045abcd", expected: "e_3045abcd"},
		"empty":     {location: "", expected: ""},
		"unicode":   {location: "ключ", expected: "ключ"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DeriveReadKey(tc.location).String())
		})
	}
}

func TestDeriveWriteKey(t *testing.T) {
	key := DeriveWriteKey("3045abcd")
	assert.Equal(t, "e_3045abcd", key.String())
	assert.True(t, key.IsWriteKey())

	sig, ok := key.Signature()
	assert.True(t, ok)
	assert.Equal(t, "3045abcd", sig)
}

func TestDeriveWriteKeyDeterministic(t *testing.T) {
	assert.Equal(t, DeriveWriteKey("aa"), DeriveWriteKey("aa"))
	assert.NotEqual(t, DeriveWriteKey("aa"), DeriveWriteKey("ab"))
}

func TestWriteKeyReadableAsLocation(t *testing.T) {
	write := DeriveWriteKey("deadbeef")
	assert.Equal(t, write, DeriveReadKey(write.String()))
}

func TestReadKeyIsNotWriteKey(t *testing.T) {
	key := DeriveReadKey("docs")
	assert.False(t, key.IsWriteKey())

	_, ok := key.Signature()
	assert.False(t, ok)
}
