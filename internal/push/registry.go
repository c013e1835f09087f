package push

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"vn.io.arda/notifeed/internal/config"
)

// Factory builds a transport from configuration. ok is false when the transport
// is not configured and must be skipped.
type Factory func(cfg config.PushConfig, creds Credentials) (t Transport, ok bool)

var factories = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{m: map[string]Factory{}}

// Register binds a factory to a transport name.
// Should be called from each transport's init() function.
// Panics on duplicate registration to catch wiring mistakes early.
func Register(name string, f Factory) {
	name = normalizeName(name)
	if name == "" || f == nil {
		return
	}

	factories.mu.Lock()
	defer factories.mu.Unlock()
	if _, exists := factories.m[name]; exists {
		panic("push: duplicate transport registered: " + name)
	}
	factories.m[name] = f
}

// Registered lists the known transport names, sorted.
func Registered() []string {
	factories.mu.RLock()
	defer factories.mu.RUnlock()

	names := make([]string, 0, len(factories.m))
	for name := range factories.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates the configured transports in cascade order. Unknown and
// unconfigured names are skipped.
func Build(cfg config.PushConfig, creds Credentials) []Transport {
	factories.mu.RLock()
	defer factories.mu.RUnlock()

	out := make([]Transport, 0, len(cfg.Order))
	seen := map[string]bool{}
	for _, name := range cfg.Order {
		name = normalizeName(name)
		if seen[name] {
			continue
		}
		seen[name] = true

		f, ok := factories.m[name]
		if !ok {
			log.Warn().Str("transport", name).Msg("push: unknown transport in cascade order")
			continue
		}
		if t, ok := f(cfg, creds); ok {
			out = append(out, t)
		}
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
