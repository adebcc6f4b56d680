// internal/integrations/registry.go
package integrations

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

var (
	regMu        sync.RWMutex
	registry     = map[string]Factory{}
	marketplaces = map[string]MarketplaceFactory{}
)

func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func Get(name string) (Factory, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

func All() map[string]Factory {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make(map[string]Factory, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}

func RegisterMarketplace(name string, f MarketplaceFactory) {
	regMu.Lock()
	defer regMu.Unlock()
	marketplaces[name] = f
}

func GetMarketplace(name string) (MarketplaceFactory, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := marketplaces[name]
	return f, ok
}

// BuildMarketplace tworzy rynek o nazwie name z jego surowej konfiguracji.
func BuildMarketplace(log zerolog.Logger, name string, raw json.RawMessage) (Marketplace, error) {
	f, ok := GetMarketplace(name)
	if !ok {
		return nil, fmt.Errorf("nieznany rynek %q", name)
	}
	return f(log.With().Str("integration", name).Logger(), raw)
}

// Build tworzy integracje tła dla wszystkich wpisów konfiguracji, dla których
// jest fabryka. Wpisy rynków i nieznane nazwy są pomijane; błędy inicjalizacji
// logujemy i idziemy dalej.
func Build(log zerolog.Logger, cfg map[string]json.RawMessage, env Env) []Integration {
	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Integration
	for _, name := range names {
		f, ok := Get(name)
		if !ok {
			if _, isMarket := GetMarketplace(name); !isMarket {
				log.Warn().Str("integration", name).Msg("brak fabryki – pomijam")
			}
			continue
		}
		inst, err := f(log.With().Str("integration", name).Logger(), cfg[name], env)
		if err != nil {
			log.Error().Err(err).Str("integration", name).Msg("błąd inicjalizacji")
			continue
		}
		out = append(out, inst)
	}
	log.Info().Int("started", len(out)).Msg("Integrations built")
	return out
}
