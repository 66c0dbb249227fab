package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/LumeraProtocol/entrynode/p2p"
	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
)

// NodeConfig identifies this node
type NodeConfig struct {
	Identity string `mapstructure:"identity" yaml:"identity"`
	KeyName  string `mapstructure:"key_name" yaml:"key_name"`
}

// APIConfig configures the RPC facade and the request dispatcher behind it
type APIConfig struct {
	// Host is a comma separated list of listen hosts
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            uint16        `mapstructure:"port" yaml:"port"`
	QueueSize       int           `mapstructure:"queue_size" yaml:"queue_size"`
	BroadcastBuffer int           `mapstructure:"broadcast_buffer" yaml:"broadcast_buffer"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	StoreTimeout    time.Duration `mapstructure:"store_timeout" yaml:"store_timeout"`
	FailFast        bool          `mapstructure:"fail_fast" yaml:"fail_fast"`
}

// Hosts returns the trimmed, non-empty entries of Host
func (c APIConfig) Hosts() []string {
	var hosts []string
	for _, h := range strings.Split(c.Host, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

type KeyringConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Config represents the YAML configuration structure
type Config struct {
	Node    NodeConfig    `mapstructure:"node" yaml:"node"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	P2P     p2p.Config    `mapstructure:"p2p" yaml:"p2p"`
	Keyring KeyringConfig `mapstructure:"keyring" yaml:"keyring"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`

	// BaseDir anchors relative paths; it is the directory holding the config file
	BaseDir string `mapstructure:"-" yaml:"-"`
}

// keys lists every setting that may be overridden from the environment
var keys = []string{
	"node.identity", "node.key_name",
	"api.host", "api.port", "api.queue_size", "api.broadcast_buffer",
	"api.request_timeout", "api.store_timeout", "api.fail_fast",
	"p2p.listen_address", "p2p.port", "p2p.data_dir", "p2p.bootstrap_nodes",
	"p2p.external_ip", "p2p.in_memory", "p2p.required_version", "p2p.inbound_rate",
	"keyring.backend", "keyring.dir",
	"log.level", "log.format",
}

// DefaultConfig returns a config with every default applied
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{KeyName: DefaultKeyName},
		API: APIConfig{
			Host:            DefaultAPIHost,
			Port:            DefaultAPIPort,
			QueueSize:       DefaultQueueSize,
			BroadcastBuffer: DefaultBroadcastBuffer,
			RequestTimeout:  DefaultRequestTimeout,
			StoreTimeout:    DefaultStoreTimeout,
		},
		P2P: p2p.Config{
			ListenAddress: DefaultP2PListen,
			Port:          DefaultP2PPort,
			DataDir:       DefaultP2PDataDir,
		},
		Keyring: KeyringConfig{Backend: DefaultKeyringBackend, Dir: DefaultKeyringDir},
		Log:     LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// LoadConfig reads the YAML file at filename, applies ENTRYNODE_* environment
// overrides and defaults, validates the result and creates the data directory.
func LoadConfig(filename string) (*Config, error) {
	ctx := logtrace.CtxWithCorrelationID(context.Background(), "config")

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, errors.Errorf("error getting absolute path for config file: %w", err)
	}

	logtrace.Info(ctx, "Loading configuration", logtrace.Fields{"path": absPath})

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return nil, errors.Errorf("config file %s does not exist", absPath)
	}

	v := viper.New()
	v.SetConfigFile(absPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Errorf("bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Errorf("error parsing config file: %w", err)
	}
	config.BaseDir = filepath.Dir(absPath)

	config.applyDefaults(ctx)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if !config.P2P.InMemory {
		config.P2P.DataDir = config.ResolvePath(config.P2P.DataDir)
		if err := os.MkdirAll(config.P2P.DataDir, 0700); err != nil {
			return nil, errors.Errorf("failed to create P2P data directory: %w", err)
		}
	}
	config.Keyring.Dir = config.ResolvePath(config.Keyring.Dir)

	logtrace.Info(ctx, "Configuration loaded successfully", logtrace.Fields{
		"api_port": config.API.Port,
		"p2p_port": config.P2P.Port,
	})
	return &config, nil
}

func (c *Config) applyDefaults(ctx context.Context) {
	def := DefaultConfig()
	useDefault := func(name string, value interface{}) {
		logtrace.Info(ctx, "Using default "+name, logtrace.Fields{"value": value})
	}

	if c.Node.KeyName == "" {
		c.Node.KeyName = def.Node.KeyName
		useDefault("key name", c.Node.KeyName)
	}
	if c.API.Host == "" {
		c.API.Host = def.API.Host
		useDefault("API host", c.API.Host)
	}
	if c.API.Port == 0 {
		c.API.Port = def.API.Port
		useDefault("API port", c.API.Port)
	}
	if c.API.QueueSize == 0 {
		c.API.QueueSize = def.API.QueueSize
		useDefault("queue size", c.API.QueueSize)
	}
	if c.API.BroadcastBuffer == 0 {
		c.API.BroadcastBuffer = def.API.BroadcastBuffer
		useDefault("broadcast buffer", c.API.BroadcastBuffer)
	}
	if c.API.RequestTimeout == 0 {
		c.API.RequestTimeout = def.API.RequestTimeout
		useDefault("request timeout", c.API.RequestTimeout.String())
	}
	if c.API.StoreTimeout == 0 {
		c.API.StoreTimeout = def.API.StoreTimeout
		useDefault("store timeout", c.API.StoreTimeout.String())
	}
	if c.P2P.ListenAddress == "" {
		c.P2P.ListenAddress = def.P2P.ListenAddress
		useDefault("P2P listen address", c.P2P.ListenAddress)
	}
	if c.P2P.Port == 0 {
		c.P2P.Port = def.P2P.Port
		useDefault("P2P port", c.P2P.Port)
	}
	if c.P2P.DataDir == "" && !c.P2P.InMemory {
		c.P2P.DataDir = def.P2P.DataDir
		useDefault("P2P data directory", c.P2P.DataDir)
	}
	if c.Keyring.Backend == "" {
		c.Keyring.Backend = def.Keyring.Backend
		useDefault("keyring backend", c.Keyring.Backend)
	}
	if c.Keyring.Dir == "" {
		c.Keyring.Dir = def.Keyring.Dir
		useDefault("keyring directory", c.Keyring.Dir)
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate checks values that defaults cannot repair
func (c *Config) Validate() error {
	if len(c.API.Hosts()) == 0 {
		return errors.New("api.host must name at least one host")
	}
	if c.API.QueueSize < 1 {
		return errors.Errorf("api.queue_size must be positive, got %d", c.API.QueueSize)
	}
	if c.API.BroadcastBuffer < 1 {
		return errors.Errorf("api.broadcast_buffer must be positive, got %d", c.API.BroadcastBuffer)
	}
	if c.API.RequestTimeout < 0 || c.API.StoreTimeout < 0 {
		return errors.New("api timeouts must not be negative")
	}
	if c.API.Port != 0 && c.API.Port == c.P2P.Port {
		return errors.Errorf("api.port and p2p.port must differ, both are %d", c.API.Port)
	}
	switch c.Keyring.Backend {
	case "test", "file", "os", "memory":
	default:
		return errors.Errorf("unsupported keyring backend %q", c.Keyring.Backend)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errors.Errorf("unsupported log format %q", c.Log.Format)
	}
	if err := c.P2P.Validate(); err != nil {
		return errors.Wrap(err, "p2p")
	}
	return nil
}

// ResolvePath anchors a relative path at BaseDir
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.BaseDir == "" {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

// SaveConfig writes config as YAML to filename, creating parent directories
func SaveConfig(config *Config, filename string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return errors.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return errors.Errorf("failed to write config file: %w", err)
	}
	return nil
}
