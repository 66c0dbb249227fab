package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "node:\n  identity: node-a\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "node-a", cfg.Node.Identity)
	assert.Equal(t, DefaultKeyName, cfg.Node.KeyName)
	assert.Equal(t, uint16(DefaultAPIPort), cfg.API.Port)
	assert.Equal(t, DefaultQueueSize, cfg.API.QueueSize)
	assert.Equal(t, DefaultBroadcastBuffer, cfg.API.BroadcastBuffer)
	assert.Equal(t, DefaultRequestTimeout, cfg.API.RequestTimeout)
	assert.Equal(t, DefaultStoreTimeout, cfg.API.StoreTimeout)
	assert.Equal(t, uint16(DefaultP2PPort), cfg.P2P.Port)
	assert.Equal(t, DefaultKeyringBackend, cfg.Keyring.Backend)
	assert.Equal(t, "json", cfg.Log.Format)

	base := filepath.Dir(path)
	assert.Equal(t, filepath.Join(base, "data", "p2p"), cfg.P2P.DataDir)
	assert.Equal(t, filepath.Join(base, DefaultKeyringDir), cfg.Keyring.Dir)
	assert.DirExists(t, cfg.P2P.DataDir)
}

func TestLoadConfigValues(t *testing.T) {
	path := writeConfig(t, `
api:
  host: "127.0.0.1, ::1"
  port: 6000
  queue_size: 8
  request_timeout: 5s
  store_timeout: 1500ms
  fail_fast: true
p2p:
  port: 6001
  in_memory: true
  bootstrap_nodes: "10.0.0.1:4445,10.0.0.2:4445"
log:
  level: debug
  format: console
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"127.0.0.1", "::1"}, cfg.API.Hosts())
	assert.Equal(t, uint16(6000), cfg.API.Port)
	assert.Equal(t, 8, cfg.API.QueueSize)
	assert.Equal(t, 5*time.Second, cfg.API.RequestTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.API.StoreTimeout)
	assert.True(t, cfg.API.FailFast)
	assert.True(t, cfg.P2P.InMemory)
	assert.Empty(t, cfg.P2P.DataDir)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "api:\n  port: 6000\n")
	t.Setenv("ENTRYNODE_API_PORT", "7000")
	t.Setenv("ENTRYNODE_P2P_IN_MEMORY", "true")
	t.Setenv("ENTRYNODE_API_FAIL_FAST", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(7000), cfg.API.Port)
	assert.True(t, cfg.P2P.InMemory)
	assert.True(t, cfg.API.FailFast)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := map[string]string{
		"same ports":      "api:\n  port: 5000\np2p:\n  port: 5000\n  in_memory: true\n",
		"bad backend":     "keyring:\n  backend: vault\np2p:\n  in_memory: true\n",
		"bad log format":  "log:\n  format: xml\np2p:\n  in_memory: true\n",
		"bad listen":      "p2p:\n  listen_address: nowhere\n  in_memory: true\n",
		"bad bootstrap":   "p2p:\n  bootstrap_nodes: \"10.0.0.1\"\n  in_memory: true\n",
		"negative queue":  "api:\n  queue_size: -1\np2p:\n  in_memory: true\n",
		"malformed yaml":  "api: [\n",
		"blank host list": "api:\n  host: \" , \"\np2p:\n  in_memory: true\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultConfigFile)
	cfg := DefaultConfig()
	cfg.Node.Identity = "node-b"
	cfg.API.Port = 6100
	cfg.P2P.Port = 6101
	cfg.P2P.BootstrapNodes = "10.0.0.1:4445"

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "node-b", loaded.Node.Identity)
	assert.Equal(t, uint16(6100), loaded.API.Port)
	assert.Equal(t, uint16(6101), loaded.P2P.Port)
	assert.Equal(t, "10.0.0.1:4445", loaded.P2P.BootstrapNodes)
	assert.Equal(t, DefaultRequestTimeout, loaded.API.RequestTimeout)
}

func TestResolvePath(t *testing.T) {
	cfg := &Config{BaseDir: "/srv/entrynode"}
	assert.Equal(t, "/srv/entrynode/keys", cfg.ResolvePath("keys"))
	assert.Equal(t, "/abs", cfg.ResolvePath("/abs"))
	assert.Equal(t, "", cfg.ResolvePath(""))
}
