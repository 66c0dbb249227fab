package signature

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

// compactFromDER re-encodes a hex DER signature as hex R||S, optionally with S negated.
func compactFromDER(t *testing.T, der string, negateS bool) string {
	t.Helper()
	parsed, err := ParseSignature(der)
	require.NoError(t, err)

	r, s := parsed.R(), parsed.S()
	if negateS {
		s.Negate()
	}
	rb, sb := r.Bytes(), s.Bytes()
	return hex.EncodeToString(append(rb[:], sb[:]...))
}

func TestSignVerify(t *testing.T) {
	kp := newKeyPair(t)
	sig := kp.Sign("doc1")

	require.NoError(t, Verify(kp.PublicKeyHex(), "doc1", sig))
}

func TestVerifyFailures(t *testing.T) {
	kp := newKeyPair(t)
	other := newKeyPair(t)
	sig := kp.Sign("doc1")

	tests := map[string]struct {
		publicKey string
		name      string
		signature string
		expected  error
	}{
		"wrong key":          {publicKey: other.PublicKeyHex(), name: "doc1", signature: sig, expected: ErrInvalidSignature},
		"tampered name":      {publicKey: kp.PublicKeyHex(), name: "doc2", signature: sig, expected: ErrInvalidSignature},
		"non hex signature":  {publicKey: kp.PublicKeyHex(), name: "doc1", signature: "zz", expected: ErrMalformedSignature},
		"empty signature":    {publicKey: kp.PublicKeyHex(), name: "doc1", signature: "", expected: ErrMalformedSignature},
		"truncated der":      {publicKey: kp.PublicKeyHex(), name: "doc1", signature: sig[:20], expected: ErrMalformedSignature},
		"non hex public key": {publicKey: "not-a-key", name: "doc1", signature: sig, expected: ErrMalformedPublicKey},
		"short public key":   {publicKey: "02abcd", name: "doc1", signature: sig, expected: ErrMalformedPublicKey},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := Verify(tc.publicKey, tc.name, tc.signature)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestVerifyUncompressedPublicKey(t *testing.T) {
	kp := newKeyPair(t)
	sig := kp.Sign("doc1")

	uncompressed := hex.EncodeToString(kp.priv.PubKey().SerializeUncompressed())
	require.NoError(t, Verify(uncompressed, "doc1", sig))
	require.NoError(t, Verify(strings.ToUpper(kp.PublicKeyHex()), "doc1", sig))
}

func TestVerifyCompactSignature(t *testing.T) {
	kp := newKeyPair(t)
	sig := kp.Sign("doc1")

	compact := compactFromDER(t, sig, false)
	require.NoError(t, Verify(kp.PublicKeyHex(), "doc1", compact))
}

func TestVerifyRejectsHighS(t *testing.T) {
	kp := newKeyPair(t)
	sig := kp.Sign("doc1")

	highS := compactFromDER(t, sig, true)
	err := Verify(kp.PublicKeyHex(), "doc1", highS)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyCompactOutOfRange(t *testing.T) {
	kp := newKeyPair(t)
	zero := strings.Repeat("00", 64)

	err := Verify(kp.PublicKeyHex(), "doc1", zero)
	assert.ErrorIs(t, err, ErrMalformedSignature)
}

func TestSignDeterministic(t *testing.T) {
	kp := newKeyPair(t)
	assert.Equal(t, kp.Sign("doc1"), kp.Sign("doc1"))
	assert.NotEqual(t, kp.Sign("doc1"), kp.Sign("doc2"))
}

func TestParsePrivateKeyRoundTrip(t *testing.T) {
	kp := newKeyPair(t)

	parsed, err := ParsePrivateKey(kp.PrivateKeyHex())
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKeyHex(), parsed.PublicKeyHex())

	sig, err := Sign(kp.PrivateKeyHex(), "doc1")
	require.NoError(t, err)
	assert.NoError(t, Verify(kp.PublicKeyHex(), "doc1", sig))
}

func TestParsePrivateKeyErrors(t *testing.T) {
	for _, in := range []string{"", "zz", "abcd", strings.Repeat("00", 32), strings.Repeat("ff", 32)} {
		_, err := ParsePrivateKey(in)
		assert.ErrorIs(t, err, ErrMalformedPrivateKey, in)
	}
}

func TestMessageFormat(t *testing.T) {
	assert.Equal(t, []byte("02ab/doc1"), Message("02ab", "doc1"))
	assert.Len(t, newKeyPair(t).PublicKeyHex(), 2*secp256k1.PubKeyBytesLenCompressed)
}
