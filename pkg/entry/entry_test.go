package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshal(t *testing.T) {
	in := Entry{
		Name:     "doc1",
		Data:     []byte("hello"),
		Metadata: map[string]string{"content-type": "text/plain"},
	}

	b, err := Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"doc1","data":"aGVsbG8=","metadata":{"content-type":"text/plain"}}`, string(b))

	out, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestMarshalNameOnly(t *testing.T) {
	b, err := Marshal(Entry{Name: "doc1"})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"doc1"}`, string(b))
}

func TestMarshalMissingName(t *testing.T) {
	_, err := Marshal(Entry{Data: []byte("x")})
	assert.ErrorIs(t, err, ErrMissingName)
}

func TestUnmarshalErrors(t *testing.T) {
	tests := map[string][]byte{
		"not json":     []byte("raw bytes"),
		"array":        []byte(`[1,2]`),
		"missing name": []byte(`{"data":"aGVsbG8="}`),
		"empty":        nil,
	}

	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(in)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}
