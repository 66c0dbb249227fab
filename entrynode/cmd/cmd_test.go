package cmd

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LumeraProtocol/entrynode/entrynode/config"
	"github.com/LumeraProtocol/entrynode/pkg/entry"
	"github.com/LumeraProtocol/entrynode/pkg/signature"
	"github.com/LumeraProtocol/entrynode/sdk/client"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		nodeAddr, putSecretKey, putKeyName, putData, putDataFile, signKeyName = "", "", "", "", "", ""
		putMetadata = nil
		forceInit, nonInteractive, createKey = false, false, false
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func freePort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return uint16(ln.Addr().(*net.TCPAddr).Port)
}

func TestGenKeypairOutput(t *testing.T) {
	out, err := execute(t, "gen-keypair")
	require.NoError(t, err)

	m := regexp.MustCompile(`^Public key: ([0-9a-f]{66})\nPrivate Key: ([0-9a-f]{64})\n$`).FindStringSubmatch(out)
	require.NotNil(t, m, "unexpected output %q", out)

	kp, err := signature.ParsePrivateKey(m[2])
	require.NoError(t, err)
	assert.Equal(t, m[1], kp.PublicKeyHex())
	assert.NoError(t, signature.Verify(m[1], "name", kp.Sign("name")))
}

func TestInitWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node", config.DefaultConfigFile)

	out, err := execute(t, "init", "--yes", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration saved to")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(config.DefaultAPIPort), cfg.API.Port)

	_, err = execute(t, "init", "--yes", "--config", path)
	assert.Error(t, err, "existing config must not be overwritten without --force")

	_, err = execute(t, "init", "--yes", "--force", "--config", path)
	assert.NoError(t, err)
}

func TestKeysAddListSign(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	_, err := execute(t, "init", "--yes", "--config", path)
	require.NoError(t, err)

	out, err := execute(t, "keys", "add", "writer", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "- Name: writer")

	out, err = execute(t, "keys", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "writer")

	out, err = execute(t, "keys", "sign", "my-entry", "--key-name", "writer", "--config", path)
	require.NoError(t, err)
	m := regexp.MustCompile(`Public key: ([0-9a-f]+)\nSignature: ([0-9a-f]+)\n`).FindStringSubmatch(out)
	require.NotNil(t, m, "unexpected output %q", out)
	assert.NoError(t, signature.Verify(m[1], "my-entry", m[2]))
}

func TestPutGetAgainstRunningNode(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.BaseDir = dir
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = freePort(t)
	cfg.P2P.ListenAddress = "127.0.0.1"
	cfg.P2P.Port = freePort(t)
	cfg.P2P.InMemory = true
	cfg.P2P.DataDir = ""
	cfgPath := filepath.Join(dir, config.DefaultConfigFile)
	require.NoError(t, config.SaveConfig(cfg, cfgPath))

	loaded, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	node, err := NewEntryNode(ctx, loaded)
	require.NoError(t, err)
	runErr := make(chan error, 1)
	go func() { runErr <- node.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-runErr:
		case <-time.After(30 * time.Second):
			t.Error("node did not stop")
		}
	})

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(int(cfg.API.Port)))
	require.Eventually(t, func() bool {
		cctx, ccancel := context.WithTimeout(context.Background(), time.Second)
		defer ccancel()
		c, err := client.New(cctx, addr)
		if err != nil {
			return false
		}
		defer c.Close(cctx)
		_, err = c.Get(cctx, "probe")
		// NotFound means the p2p service is up; Unavailable means it is still starting
		return err != nil && strings.Contains(err.Error(), "NotFound")
	}, 10*time.Second, 100*time.Millisecond)

	kp, err := signature.GenerateKeyPair()
	require.NoError(t, err)

	out, err := execute(t, "put", "--addr", addr, "--name", "greeting", "--data", "hello",
		"--metadata", "lang=en", "--secret-key", kp.PrivateKeyHex())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "Key: e_"), "unexpected output %q", out)
	key := strings.TrimSpace(strings.TrimPrefix(out, "Key: "))
	assert.Equal(t, "e_"+kp.Sign("greeting"), key)

	out, err = execute(t, "get", key, "--addr", addr)
	require.NoError(t, err)
	var got entry.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, entry.Entry{Name: "greeting", Data: []byte("hello"), Metadata: map[string]string{"lang": "en"}}, got)

	out, err = execute(t, "status", "--addr", addr, "--p2p")
	require.NoError(t, err)
	assert.Contains(t, out, `"health": "SERVING"`)

	_, err = execute(t, "put", "--addr", addr, "--name", "x", "--secret-key", "zz")
	assert.Error(t, err)
}
