package verifier

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LumeraProtocol/entrynode/entrynode/config"
	"github.com/LumeraProtocol/entrynode/pkg/keyring"
)

func freePort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return uint16(port)
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = freePort(t)
	cfg.P2P.ListenAddress = "127.0.0.1"
	cfg.P2P.Port = freePort(t)
	cfg.P2P.BootstrapNodes = "10.0.0.1:4445"
	return cfg
}

func fieldsOf(errs []ConfigError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestVerifyConfigValid(t *testing.T) {
	res, err := NewConfigVerifier(testConfig(t), nil).VerifyConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, res.IsValid())
	assert.False(t, res.HasWarnings())
	assert.Equal(t, "valid", res.Summary())
}

func TestVerifyConfigPortInUse(t *testing.T) {
	cfg := testConfig(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	cfg.API.Port = uint16(ln.Addr().(*net.TCPAddr).Port)

	res, err := NewConfigVerifier(cfg, nil).VerifyConfig(context.Background())
	require.NoError(t, err)
	assert.False(t, res.IsValid())
	assert.Equal(t, []string{"api.port"}, fieldsOf(res.Errors))
	assert.Equal(t, "invalid: check errors", res.Summary())
}

func TestVerifyConfigSamePorts(t *testing.T) {
	cfg := testConfig(t)
	cfg.P2P.Port = cfg.API.Port

	res, err := NewConfigVerifier(cfg, nil).VerifyConfig(context.Background())
	require.NoError(t, err)
	assert.False(t, res.IsValid())
	assert.Contains(t, fieldsOf(res.Errors), "p2p.port")
}

func TestVerifyConfigBootstrap(t *testing.T) {
	cfg := testConfig(t)
	cfg.P2P.BootstrapNodes = "10.0.0.1"
	res, err := NewConfigVerifier(cfg, nil).VerifyConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"p2p.bootstrap_nodes"}, fieldsOf(res.Errors))

	cfg = testConfig(t)
	cfg.P2P.BootstrapNodes = ""
	res, err = NewConfigVerifier(cfg, nil).VerifyConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, res.IsValid())
	assert.Equal(t, "valid with warnings", res.Summary())

	cfg = testConfig(t)
	cfg.P2P.BootstrapNodes = "127.0.0.1:" + strconv.Itoa(int(cfg.P2P.Port))
	res, err = NewConfigVerifier(cfg, nil).VerifyConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, res.IsValid())
	assert.Equal(t, []string{"p2p.bootstrap_nodes"}, fieldsOf(res.Warnings))
}

func TestVerifyConfigKeyring(t *testing.T) {
	kr, err := keyring.InitKeyring(keyring.BackendMemory, "")
	require.NoError(t, err)

	cfg := testConfig(t)
	res, err := NewConfigVerifier(cfg, kr).VerifyConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, res.IsValid())
	assert.Equal(t, []string{"node.key_name"}, fieldsOf(res.Warnings))

	_, _, err = keyring.CreateNewAccount(kr, cfg.Node.KeyName, keyring.DefaultEntropySize)
	require.NoError(t, err)
	res, err = NewConfigVerifier(cfg, kr).VerifyConfig(context.Background())
	require.NoError(t, err)
	assert.False(t, res.HasWarnings())
}
