package config

import "time"

// Centralized default values for configuration

const (
	DefaultConfigFile      = "config.yml"
	DefaultKeyringBackend  = "test"
	DefaultKeyringDir      = "keys"
	DefaultKeyName         = "entrynode-key"
	DefaultAPIHost         = "0.0.0.0"
	DefaultAPIPort         = 50051
	DefaultQueueSize       = 32
	DefaultBroadcastBuffer = 32
	DefaultRequestTimeout  = 30 * time.Second
	DefaultStoreTimeout    = 20 * time.Second
	DefaultP2PListen       = "0.0.0.0"
	DefaultP2PPort         = 4445
	DefaultP2PDataDir      = "./data/p2p"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"

	// EnvPrefix prefixes environment overrides, e.g. ENTRYNODE_API_PORT.
	EnvPrefix = "ENTRYNODE"
)
