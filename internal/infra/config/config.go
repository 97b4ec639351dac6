// Package config loads monitor settings from file, environment and flags.
package config

import (
	"time"

	"tracetap/internal/domain"
	"tracetap/internal/infra/providers"
)

// Config is the fully resolved monitor configuration.
type Config struct {
	Target          TargetConfig
	IntervalSeconds int
	Providers       []domain.ProviderSpec
	DecoderCommand  string
	AttachTimeout   time.Duration
	StopTimeout     time.Duration
	Observability   ObservabilityConfig
	Broadcast       BroadcastConfig
	Console         ConsoleConfig

	// aliases holds, per entry of Providers, the bare name it was resolved
	// from, or "" for an explicit spec.
	aliases []string
}

// TargetConfig selects what to monitor: a live process or a pipe file.
type TargetConfig struct {
	PID      int
	PipeFile string
	System   string
}

type ObservabilityConfig struct {
	ListenAddress  string
	MetricsEnabled bool
	HealthzEnabled bool
}

// BroadcastConfig enables the websocket fan-out when ListenAddress is set.
type BroadcastConfig struct {
	ListenAddress string
	MaxClients    int
}

type ConsoleConfig struct {
	Enabled bool
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		IntervalSeconds: domain.DefaultIntervalSeconds,
		AttachTimeout:   time.Duration(domain.DefaultAttachTimeoutSeconds) * time.Second,
		StopTimeout:     time.Duration(domain.DefaultStopTimeoutSeconds) * time.Second,
		Target: TargetConfig{
			System: domain.DefaultSystemName,
		},
		Observability: ObservabilityConfig{
			ListenAddress: domain.DefaultObservabilityListenAddress,
		},
		Broadcast: BroadcastConfig{
			MaxClients: domain.DefaultBroadcastMaxClients,
		},
		Console: ConsoleConfig{
			Enabled: true,
		},
	}
}

// UsesPipe reports whether the target is a pipe file rather than a pid.
func (c Config) UsesPipe() bool {
	return c.Target.PipeFile != ""
}

// SetProviderNames replaces Providers with the alias expansion of names.
func (c *Config) SetProviderNames(names []string) {
	c.Providers = make([]domain.ProviderSpec, 0, len(names))
	c.aliases = make([]string, 0, len(names))
	for _, name := range names {
		c.Providers = append(c.Providers, providers.ByName(name, c.IntervalSeconds))
		c.aliases = append(c.aliases, name)
	}
}

// SetInterval changes the counter interval and re-resolves every provider
// that came from a bare name so its interval argument follows.
func (c *Config) SetInterval(seconds int) {
	c.IntervalSeconds = seconds
	if len(c.aliases) != len(c.Providers) {
		return
	}
	resolved := make([]domain.ProviderSpec, len(c.Providers))
	copy(resolved, c.Providers)
	for i, name := range c.aliases {
		if name != "" {
			resolved[i] = providers.ByName(name, seconds)
		}
	}
	c.Providers = resolved
}
