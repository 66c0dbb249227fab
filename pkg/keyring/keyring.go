// Package keyring wraps the Cosmos SDK keyring for the node's signing keys.
package keyring

import (
	"encoding/hex"
	"os"

	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	cryptocodec "github.com/cosmos/cosmos-sdk/crypto/codec"
	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	"github.com/cosmos/go-bip39"

	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/signature"
)

const (
	// AppName namespaces keys inside the OS and file backends.
	AppName = "entrynode"

	DefaultHDPath          = "m/44'/118'/0'/0/0"
	DefaultBIP39Passphrase = ""
	DefaultEntropySize     = 256

	// BackendMemory keeps keys in process memory only.
	BackendMemory = keyring.BackendMemory
)

// ErrUnsupportedKey is returned for keys that are not secp256k1.
var ErrUnsupportedKey = errors.New("key is not secp256k1")

func newCodec() codec.Codec {
	reg := codectypes.NewInterfaceRegistry()
	cryptocodec.RegisterInterfaces(reg)
	return codec.NewProtoCodec(reg)
}

// InitKeyring opens the keyring for backend rooted at dir.
// Supported backends are test, file, os and memory.
func InitKeyring(backend, dir string) (keyring.Keyring, error) {
	cdc := newCodec()
	switch backend {
	case keyring.BackendMemory:
		return keyring.NewInMemory(cdc), nil
	case keyring.BackendTest, keyring.BackendFile, keyring.BackendOS:
	default:
		return nil, errors.Errorf("unsupported keyring backend %q", backend)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Errorf("failed to create keyring directory: %w", err)
	}
	kr, err := keyring.New(AppName, backend, dir, os.Stdin, cdc)
	if err != nil {
		return nil, errors.Errorf("failed to initialize keyring: %w", err)
	}
	return kr, nil
}

// CreateNewAccount generates a mnemonic with entropySize bits of entropy and
// stores the derived key under name.
func CreateNewAccount(kr keyring.Keyring, name string, entropySize int) (string, *keyring.Record, error) {
	entropy, err := bip39.NewEntropy(entropySize)
	if err != nil {
		return "", nil, errors.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", nil, errors.Errorf("failed to generate mnemonic: %w", err)
	}
	rec, err := kr.NewAccount(name, mnemonic, DefaultBIP39Passphrase, DefaultHDPath, hd.Secp256k1)
	if err != nil {
		return "", nil, errors.Errorf("failed to create account: %w", err)
	}
	return mnemonic, rec, nil
}

// RecoverAccountFromMnemonic restores the key for mnemonic under name.
func RecoverAccountFromMnemonic(kr keyring.Keyring, name, mnemonic string) (*keyring.Record, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	rec, err := kr.NewAccount(name, mnemonic, DefaultBIP39Passphrase, DefaultHDPath, hd.Secp256k1)
	if err != nil {
		return nil, errors.Errorf("failed to recover account: %w", err)
	}
	return rec, nil
}

// GetBech32Address returns the address of key name with the given prefix.
func GetBech32Address(kr keyring.Keyring, name, prefix string) (string, error) {
	rec, err := kr.Key(name)
	if err != nil {
		return "", errors.Errorf("key %q: %w", name, err)
	}
	addr, err := rec.GetAddress()
	if err != nil {
		return "", errors.Errorf("address of %q: %w", name, err)
	}
	return sdk.Bech32ifyAddressBytes(prefix, addr)
}

// PublicKeyHex returns the compressed secp256k1 public key of name in hex,
// the form writers put on the wire.
func PublicKeyHex(kr keyring.Keyring, name string) (string, error) {
	rec, err := kr.Key(name)
	if err != nil {
		return "", errors.Errorf("key %q: %w", name, err)
	}
	pub, err := rec.GetPubKey()
	if err != nil {
		return "", errors.Errorf("public key of %q: %w", name, err)
	}
	if pub.Type() != "secp256k1" {
		return "", errors.Errorf("%w: %s", ErrUnsupportedKey, pub.Type())
	}
	return hex.EncodeToString(pub.Bytes()), nil
}

// SignEntryName signs the write authorization for entryName with key name.
// It returns the public key and the compact signature, both hex encoded.
func SignEntryName(kr keyring.Keyring, name, entryName string) (pubHex string, sigHex string, err error) {
	pubHex, err = PublicKeyHex(kr, name)
	if err != nil {
		return "", "", err
	}
	// secp256k1 keys hash the message with sha256 before signing
	sig, _, err := kr.Sign(name, signature.Message(pubHex, entryName), signing.SignMode_SIGN_MODE_DIRECT)
	if err != nil {
		return "", "", errors.Errorf("sign %q: %w", entryName, err)
	}
	return pubHex, hex.EncodeToString(sig), nil
}
