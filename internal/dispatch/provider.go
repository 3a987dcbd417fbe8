package dispatch

import (
	"sync"

	"github.com/quiverlab/bowstring/internal/link"
)

var (
	providersMu sync.Mutex
	providers   []Provider
)

// Register adds a provider to the global set consumed by DefaultTable.
// Called from init functions; providers for widths the build does not
// link are filtered out at table construction, not here.
func Register(p Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers = append(providers, p)
}

// Registered returns a snapshot of the registered providers.
func Registered() []Provider {
	providersMu.Lock()
	defer providersMu.Unlock()
	out := make([]Provider, len(providers))
	copy(out, providers)
	return out
}

// DefaultTable builds the process dispatch table for a link plan from
// every registered provider.
func DefaultTable(plan link.Plan) *Table {
	return NewTable(plan, Registered()...)
}
