package p2p

import (
	"net"

	"github.com/LumeraProtocol/entrynode/p2p/kademlia"
	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/utils"
)

const defaultDataDir = "./data/p2p"

// Config is the p2p service configuration
type Config struct {
	// ListenAddress is the address the DHT listens on
	ListenAddress string `mapstructure:"listen_address" yaml:"listen_address" json:"listen_address,omitempty"`

	// Port the DHT listens on; 0 picks an ephemeral port
	Port uint16 `mapstructure:"port" yaml:"port" json:"port,omitempty"`

	// DataDir holds the sqlite record store
	DataDir string `mapstructure:"data_dir" yaml:"data_dir" json:"data_dir,omitempty"`

	// BootstrapNodes is a comma separated list of host:port peers
	BootstrapNodes string `mapstructure:"bootstrap_nodes" yaml:"bootstrap_nodes" json:"bootstrap_nodes,omitempty"`

	// ExternalIP is advertised to peers instead of ListenAddress when set
	ExternalIP string `mapstructure:"external_ip" yaml:"external_ip" json:"external_ip,omitempty"`

	// InMemory keeps records in memory instead of sqlite
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory" json:"in_memory,omitempty"`

	// RequiredVersion rejects peers reporting another version when set
	RequiredVersion string `mapstructure:"required_version" yaml:"required_version" json:"required_version,omitempty"`

	// InboundRate caps handled peer messages per second; 0 means unlimited
	InboundRate int `mapstructure:"inbound_rate" yaml:"inbound_rate" json:"inbound_rate,omitempty"`

	// ID is the node identity, hashed into the DHT node id; random when empty
	ID string `mapstructure:"-" yaml:"-" json:"id,omitempty"`

	// Version is advertised to peers
	Version string `mapstructure:"-" yaml:"-" json:"version,omitempty"`
}

// Validate checks the config and fills in defaults
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		c.ListenAddress = "0.0.0.0"
	}
	if net.ParseIP(c.ListenAddress) == nil {
		return errors.Errorf("invalid p2p listen address %q", c.ListenAddress)
	}
	if c.ExternalIP != "" && net.ParseIP(c.ExternalIP) == nil {
		return errors.Errorf("invalid p2p external ip %q", c.ExternalIP)
	}
	if c.DataDir == "" && !c.InMemory {
		c.DataDir = defaultDataDir
	}
	if c.InboundRate < 0 {
		return errors.Errorf("invalid p2p inbound rate %d", c.InboundRate)
	}
	if _, err := kademlia.ParseBootstrapNodes(c.BootstrapNodes); err != nil {
		return err
	}
	return nil
}

// nodeID derives the 32 byte DHT node id from ID
func (c *Config) nodeID() []byte {
	if c.ID == "" {
		return nil
	}
	return utils.Blake3Hash([]byte(c.ID))
}
