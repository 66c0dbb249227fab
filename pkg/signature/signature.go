// Package signature verifies and produces the secp256k1 ECDSA signatures that
// authorize writes. A signature covers sha256("<public key hex>/<entry name>").
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

const compactSignatureLen = 64

var (
	// ErrMalformedPublicKey is returned when the public key is not a valid secp256k1 point.
	ErrMalformedPublicKey = errors.New("malformed public key")
	// ErrMalformedSignature is returned when the signature cannot be decoded.
	ErrMalformedSignature = errors.New("malformed signature")
	// ErrInvalidSignature is returned when a well-formed signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Message returns the bytes a writer signs for an entry name.
func Message(publicKeyHex, entryName string) []byte {
	return []byte(publicKeyHex + "/" + entryName)
}

// Digest returns sha256 of Message.
func Digest(publicKeyHex, entryName string) [32]byte {
	return sha256.Sum256(Message(publicKeyHex, entryName))
}

// Verify checks that sig is a valid signature by publicKey over entryName.
// Public keys are accepted in compressed or uncompressed hex form; the message
// always embeds the compressed form. Signatures are hex DER or hex compact R||S,
// and must have a low S value.
func Verify(publicKey, entryName, sig string) error {
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return err
	}

	parsed, err := ParseSignature(sig)
	if err != nil {
		return err
	}

	s := parsed.S()
	if s.IsOverHalfOrder() {
		return errors.Errorf("%w: non-canonical s value", ErrInvalidSignature)
	}

	digest := Digest(PublicKeyHex(pub), entryName)
	if !parsed.Verify(digest[:], pub) {
		return ErrInvalidSignature
	}
	return nil
}

// ParsePublicKey decodes a hex secp256k1 public key.
func ParsePublicKey(publicKey string) (*secp256k1.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(publicKey))
	if err != nil {
		return nil, errors.Errorf("%w: %v", ErrMalformedPublicKey, err)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, errors.Errorf("%w: %v", ErrMalformedPublicKey, err)
	}
	return pub, nil
}

// PublicKeyHex returns the canonical text form of a public key.
func PublicKeyHex(pub *secp256k1.PublicKey) string {
	return hex.EncodeToString(pub.SerializeCompressed())
}

// ParseSignature decodes a hex DER or hex compact (64 byte R||S) signature.
func ParseSignature(sig string) (*ecdsa.Signature, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(sig))
	if err != nil {
		return nil, errors.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(raw) == 0 {
		return nil, errors.Errorf("%w: empty", ErrMalformedSignature)
	}

	if len(raw) == compactSignatureLen {
		return parseCompact(raw)
	}

	parsed, err := ecdsa.ParseDERSignature(raw)
	if err != nil {
		return nil, errors.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return parsed, nil
}

func parseCompact(raw []byte) (*ecdsa.Signature, error) {
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(raw[:32]); overflow || r.IsZero() {
		return nil, errors.Errorf("%w: r out of range", ErrMalformedSignature)
	}
	if overflow := s.SetByteSlice(raw[32:]); overflow || s.IsZero() {
		return nil, errors.Errorf("%w: s out of range", ErrMalformedSignature)
	}
	return ecdsa.NewSignature(&r, &s), nil
}
