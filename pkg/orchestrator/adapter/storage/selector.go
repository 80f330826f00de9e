package storage

import (
	"github.com/hashicorp/go-multierror"

	storageConfig "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage/config"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
)

const moduleName = "storage"

// Selector routes connection names to the provider serving the configured
// backend type. It is the single entry point consumers use.
type Selector struct {
	providers map[string]Provider
	cfgs      storageConfig.StoragesConfig
}

// NewSelector builds a Selector over the registered providers.
func NewSelector(providers []Provider, cfgs storageConfig.StoragesConfig) *Selector {
	byBackend := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byBackend[p.Backend()] = p
	}
	return &Selector{providers: byBackend, cfgs: cfgs}
}

// Open resolves the named connection via the provider matching its
// configured backend type.
func (s *Selector) Open(name string) (Connection, error) {
	cfg, ok := s.cfgs[name]
	if !ok {
		return nil, exception.NewConfigError(moduleName, "storage connection is not configured", name)
	}
	provider, ok := s.providers[cfg.Type]
	if !ok {
		return nil, exception.NewConfigError(moduleName, "no provider registered for storage backend", cfg.Type)
	}
	return provider.GetConnection(name)
}

// CloseAll closes every provider's cached connections.
func (s *Selector) CloseAll() error {
	var merr *multierror.Error
	for _, p := range s.providers {
		if err := p.CloseAll(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}
