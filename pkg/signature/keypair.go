package signature

import (
	"encoding/hex"
	"strings"

	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ErrMalformedPrivateKey is returned when a secret key cannot be decoded.
var ErrMalformedPrivateKey = errors.New("malformed private key")

// KeyPair is a secp256k1 signing key.
type KeyPair struct {
	priv *secp256k1.PrivateKey
}

// GenerateKeyPair creates a key pair from the system random source.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, errors.Errorf("generate private key: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// ParsePrivateKey decodes a 32 byte hex secret key.
func ParsePrivateKey(privateKey string) (*KeyPair, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(privateKey))
	if err != nil {
		return nil, errors.Errorf("%w: %v", ErrMalformedPrivateKey, err)
	}
	if len(raw) != secp256k1.PrivKeyBytesLen {
		return nil, errors.Errorf("%w: expected %d bytes, got %d", ErrMalformedPrivateKey, secp256k1.PrivKeyBytesLen, len(raw))
	}

	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(raw); overflow || scalar.IsZero() {
		return nil, errors.Errorf("%w: out of range", ErrMalformedPrivateKey)
	}
	return &KeyPair{priv: secp256k1.NewPrivateKey(&scalar)}, nil
}

// PublicKeyHex returns the compressed public key in hex.
func (k *KeyPair) PublicKeyHex() string {
	return PublicKeyHex(k.priv.PubKey())
}

// PrivateKeyHex returns the secret key in hex.
func (k *KeyPair) PrivateKeyHex() string {
	return hex.EncodeToString(k.priv.Serialize())
}

// Sign returns the hex DER signature authorizing a write of entryName.
func (k *KeyPair) Sign(entryName string) string {
	digest := Digest(k.PublicKeyHex(), entryName)
	return hex.EncodeToString(ecdsa.Sign(k.priv, digest[:]).Serialize())
}

// Sign parses privateKey and signs entryName with it.
func Sign(privateKey, entryName string) (string, error) {
	kp, err := ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	return kp.Sign(entryName), nil
}
