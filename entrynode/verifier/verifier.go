package verifier

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/cosmos/cosmos-sdk/crypto/keyring"

	"github.com/LumeraProtocol/entrynode/entrynode/config"
	"github.com/LumeraProtocol/entrynode/p2p/kademlia"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
)

type ConfigVerifier struct {
	config  *config.Config
	keyring keyring.Keyring
}

// NewConfigVerifier returns a verifier for cfg. kr may be nil, in which case
// the signing key is not checked.
func NewConfigVerifier(cfg *config.Config, kr keyring.Keyring) ConfigVerifierService {
	return &ConfigVerifier{config: cfg, keyring: kr}
}

func (cv *ConfigVerifier) VerifyConfig(ctx context.Context) (*VerificationResult, error) {
	result := &VerificationResult{Valid: true, Errors: []ConfigError{}, Warnings: []ConfigError{}}
	logtrace.Debug(ctx, "Starting config verification", logtrace.Fields{"api_port": cv.config.API.Port, "p2p_port": cv.config.P2P.Port, "key_name": cv.config.Node.KeyName})

	cv.checkPortsDiffer(result)
	cv.checkBootstrapNodes(result)
	cv.checkKeyExists(result)
	cv.checkStorage(result)
	if result.IsValid() {
		cv.checkPortsAvailable(result)
	}

	logtrace.Debug(ctx, "Config verification completed", logtrace.Fields{"valid": result.IsValid(), "errors": len(result.Errors), "warnings": len(result.Warnings)})
	return result, nil
}

func (cv *ConfigVerifier) checkPortsDiffer(result *VerificationResult) {
	if cv.config.API.Port == cv.config.P2P.Port && cv.config.API.Port != 0 {
		result.addError(ConfigError{Field: "p2p.port", Actual: strconv.Itoa(int(cv.config.P2P.Port)), Message: fmt.Sprintf("API and P2P ports must differ, both are %d", cv.config.API.Port)})
	}
}

func (cv *ConfigVerifier) checkBootstrapNodes(result *VerificationResult) {
	nodes, err := kademlia.ParseBootstrapNodes(cv.config.P2P.BootstrapNodes)
	if err != nil {
		result.addError(ConfigError{Field: "p2p.bootstrap_nodes", Actual: cv.config.P2P.BootstrapNodes, Message: err.Error()})
		return
	}
	if len(nodes) == 0 {
		result.addWarning(ConfigError{Field: "p2p.bootstrap_nodes", Message: "No bootstrap nodes configured; this node starts a new network"})
		return
	}

	self := map[string]bool{cv.config.P2P.ListenAddress: true, cv.config.P2P.ExternalIP: true, "127.0.0.1": true, "localhost": true}
	for _, n := range nodes {
		if self[n.IP] && n.Port == cv.config.P2P.Port {
			result.addWarning(ConfigError{Field: "p2p.bootstrap_nodes", Actual: n.Address(), Message: fmt.Sprintf("Bootstrap node %s looks like this node and will be ignored", n.Address())})
		}
	}
}

func (cv *ConfigVerifier) checkKeyExists(result *VerificationResult) {
	if cv.keyring == nil {
		return
	}
	if _, err := cv.keyring.Key(cv.config.Node.KeyName); err != nil {
		result.addWarning(ConfigError{
			Field:   "node.key_name",
			Actual:  cv.config.Node.KeyName,
			Message: fmt.Sprintf("key %q not found in keyring (backend=%s, dir=%s): %v. Entries cannot be signed with it", cv.config.Node.KeyName, cv.config.Keyring.Backend, cv.config.Keyring.Dir, err),
		})
	}
}

func (cv *ConfigVerifier) checkStorage(result *VerificationResult) {
	if cv.config.P2P.InMemory {
		result.addWarning(ConfigError{Field: "p2p.in_memory", Actual: "true", Message: "Records are kept in memory and lost on restart"})
	}
}

func (cv *ConfigVerifier) checkPortsAvailable(result *VerificationResult) {
	if cv.config.API.Port != 0 {
		for _, host := range cv.config.API.Hosts() {
			if !cv.isPortAvailable(host, int(cv.config.API.Port)) {
				result.addError(ConfigError{Field: "api.port", Actual: fmt.Sprintf("%s:%d", host, cv.config.API.Port), Message: fmt.Sprintf("Port %d is already in use on %s. Please stop the conflicting service or choose a different port", cv.config.API.Port, host)})
			}
		}
	}
	if cv.config.P2P.Port != 0 && !cv.isPortAvailable(cv.config.P2P.ListenAddress, int(cv.config.P2P.Port)) {
		result.addError(ConfigError{Field: "p2p.port", Actual: fmt.Sprintf("%d", cv.config.P2P.Port), Message: fmt.Sprintf("Port %d is already in use. Please stop the conflicting service or choose a different port", cv.config.P2P.Port)})
	}
}

func (cv *ConfigVerifier) isPortAvailable(host string, port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
