package extract

import "sync"

// Per-host selector rules, registered at startup. Lookup falls back to
// DefaultRules for hosts nobody registered.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]Rules)
)

// RegisterRules installs the selector strategy for a source host.
// Re-registering a host replaces its rules.
func RegisterRules(host string, rules Rules) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[host] = rules
}

// RulesFor returns the rules registered for host, or DefaultRules.
func RulesFor(host string) Rules {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if r, ok := registry[host]; ok {
		return r
	}
	return DefaultRules
}

// UnregisterAllRules clears the registry. Used by tests.
func UnregisterAllRules() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Rules)
}
