package kademlia

import (
	"strings"
	"sync"
)

var (
	versionMu   sync.RWMutex
	localVer    string
	requiredVer string
)

// SetLocalVersion sets the version advertised to peers.
func SetLocalVersion(v string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	localVer = strings.TrimSpace(v)
}

// SetRequiredVersion sets the version that peers must match to be accepted.
// An empty value disables the gate.
func SetRequiredVersion(v string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	requiredVer = strings.TrimSpace(v)
}

func localVersion() string {
	versionMu.RLock()
	defer versionMu.RUnlock()
	return localVer
}

func requiredVersion() string {
	versionMu.RLock()
	defer versionMu.RUnlock()
	return requiredVer
}

// versionMismatch determines if the given peer version is unacceptable.
// Policy: when a required version is set, the peer must report exactly that version.
func versionMismatch(peerVersion string) (required string, mismatch bool) {
	required = requiredVersion()
	if required == "" {
		return "", false
	}
	return required, strings.TrimSpace(peerVersion) != required
}
