package app

import (
	"tracetap/internal/domain"
	"tracetap/internal/infra/config"
	"tracetap/internal/infra/providers"
)

// ProviderSet returns the providers a session would enable for cfg.
func ProviderSet(cfg config.Config) []domain.ProviderSpec {
	if len(cfg.Providers) > 0 {
		return domain.CloneProviders(cfg.Providers)
	}
	return providers.Default(cfg.IntervalSeconds)
}
