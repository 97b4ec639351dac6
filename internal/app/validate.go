package app

import (
	"context"

	"go.uber.org/zap"

	"tracetap/internal/infra/config"
)

// LoadConfig reads path over defaults and environment without validating.
func (a *App) LoadConfig(ctx context.Context, path string) (config.Config, error) {
	return config.NewLoader(a.logger).Load(ctx, path)
}

// ValidateConfig loads and validates the configuration at path.
func (a *App) ValidateConfig(ctx context.Context, path string) (config.Config, error) {
	cfg, err := a.LoadConfig(ctx, path)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	a.logger.Info("configuration validated",
		zap.String("config", path),
		zap.String("system", cfg.Target.System),
		zap.Int("providers", len(cfg.Providers)),
	)
	return cfg, nil
}
