package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tracetap/internal/domain"
	"tracetap/internal/infra/providers"
)

const envPrefix = "TRACETAP"

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger.Named("config")}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Every scalar key gets a default so AutomaticEnv can see it on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("target.pid", 0)
	v.SetDefault("target.pipeFile", "")
	v.SetDefault("target.system", domain.DefaultSystemName)
	v.SetDefault("intervalSeconds", domain.DefaultIntervalSeconds)
	v.SetDefault("decoder.command", "")
	v.SetDefault("attachTimeoutSeconds", domain.DefaultAttachTimeoutSeconds)
	v.SetDefault("stopTimeoutSeconds", domain.DefaultStopTimeoutSeconds)
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddress)
	v.SetDefault("observability.metricsEnabled", false)
	v.SetDefault("observability.healthzEnabled", false)
	v.SetDefault("broadcast.listenAddress", "")
	v.SetDefault("broadcast.maxClients", domain.DefaultBroadcastMaxClients)
	v.SetDefault("console.enabled", true)
}

type rawConfig struct {
	Target               rawTarget        `mapstructure:"target"`
	IntervalSeconds      int              `mapstructure:"intervalSeconds"`
	Providers            []rawProvider    `mapstructure:"providers"`
	Decoder              rawDecoder       `mapstructure:"decoder"`
	AttachTimeoutSeconds int              `mapstructure:"attachTimeoutSeconds"`
	StopTimeoutSeconds   int              `mapstructure:"stopTimeoutSeconds"`
	Observability        rawObservability `mapstructure:"observability"`
	Broadcast            rawBroadcast     `mapstructure:"broadcast"`
	Console              rawConsole       `mapstructure:"console"`
}

type rawTarget struct {
	PID      int    `mapstructure:"pid"`
	PipeFile string `mapstructure:"pipeFile"`
	System   string `mapstructure:"system"`
}

type rawProvider struct {
	Name      string        `mapstructure:"name"`
	Level     string        `mapstructure:"level"`
	Keywords  string        `mapstructure:"keywords"`
	Arguments []rawArgument `mapstructure:"arguments"`
}

type rawArgument struct {
	Key   string `mapstructure:"key"`
	Value string `mapstructure:"value"`
}

type rawDecoder struct {
	Command string `mapstructure:"command"`
}

type rawObservability struct {
	ListenAddress  string `mapstructure:"listenAddress"`
	MetricsEnabled bool   `mapstructure:"metricsEnabled"`
	HealthzEnabled bool   `mapstructure:"healthzEnabled"`
}

type rawBroadcast struct {
	ListenAddress string `mapstructure:"listenAddress"`
	MaxClients    int    `mapstructure:"maxClients"`
}

type rawConsole struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads path (yaml, json or toml by extension) layered over defaults
// and TRACETAP_* environment variables. An empty path loads defaults and
// environment only. The result is not validated.
func (l *Loader) Load(ctx context.Context, path string) (Config, error) {
	v := newViper()
	if path != "" {
		if err := l.read(v, path); err != nil {
			return Config{}, err
		}
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, domain.E(domain.CodeInvalidArgument, "config.Load", fmt.Sprintf("decode config: %v", err), domain.ErrInvalidConfig)
	}
	if err := ctx.Err(); err != nil {
		return Config{}, err
	}

	cfg, errs := normalize(raw)
	if len(errs) > 0 {
		return Config{}, invalid("config.Load", errs)
	}
	return cfg, nil
}

func (l *Loader) read(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.E(domain.CodeInvalidArgument, "config.Load", fmt.Sprintf("read config: %v", err), domain.ErrInvalidConfig)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		v.SetConfigType("toml")
	case ".json", ".yaml", ".yml", "":
		if len(bytes.TrimSpace(data)) == 0 {
			break
		}
		expanded, missing, err := expandEnv(data)
		if err != nil {
			return domain.E(domain.CodeInvalidArgument, "config.Load", err.Error(), domain.ErrInvalidConfig)
		}
		if len(missing) > 0 {
			l.logger.Warn("missing environment variables in config", zap.String("path", path), zap.Strings("missing", missing))
		}
		data = []byte(expanded)
	default:
		return domain.E(domain.CodeInvalidArgument, "config.Load", fmt.Sprintf("unsupported config format %q", filepath.Ext(path)), domain.ErrInvalidConfig)
	}

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return domain.E(domain.CodeInvalidArgument, "config.Load", fmt.Sprintf("parse config: %v", err), domain.ErrInvalidConfig)
	}
	return nil
}

func normalize(raw rawConfig) (Config, []string) {
	cfg := Config{
		Target: TargetConfig{
			PID:      raw.Target.PID,
			PipeFile: strings.TrimSpace(raw.Target.PipeFile),
			System:   strings.TrimSpace(raw.Target.System),
		},
		IntervalSeconds: raw.IntervalSeconds,
		DecoderCommand:  strings.TrimSpace(raw.Decoder.Command),
		AttachTimeout:   time.Duration(raw.AttachTimeoutSeconds) * time.Second,
		StopTimeout:     time.Duration(raw.StopTimeoutSeconds) * time.Second,
		Observability: ObservabilityConfig{
			ListenAddress:  strings.TrimSpace(raw.Observability.ListenAddress),
			MetricsEnabled: raw.Observability.MetricsEnabled,
			HealthzEnabled: raw.Observability.HealthzEnabled,
		},
		Broadcast: BroadcastConfig{
			ListenAddress: strings.TrimSpace(raw.Broadcast.ListenAddress),
			MaxClients:    raw.Broadcast.MaxClients,
		},
		Console: ConsoleConfig{Enabled: raw.Console.Enabled},
	}

	var errs []string
	for i, p := range raw.Providers {
		spec, alias, err := normalizeProvider(p, cfg.IntervalSeconds)
		if err != nil {
			errs = append(errs, fmt.Sprintf("providers[%d]: %v", i, err))
			continue
		}
		cfg.Providers = append(cfg.Providers, spec)
		cfg.aliases = append(cfg.aliases, alias)
	}
	return cfg, errs
}

// normalizeProvider resolves a bare name through the provider aliases and
// builds anything more specific verbatim.
func normalizeProvider(p rawProvider, intervalSec int) (domain.ProviderSpec, string, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return domain.ProviderSpec{}, "", errors.New("name is required")
	}
	level := strings.TrimSpace(p.Level)
	keywords := strings.TrimSpace(p.Keywords)
	if level == "" && keywords == "" && len(p.Arguments) == 0 {
		return providers.ByName(name, intervalSec), name, nil
	}

	spec := domain.ProviderSpec{
		Name:     name,
		Level:    domain.LevelInformational,
		Keywords: domain.DefaultKeywords,
	}
	if level != "" {
		parsed, err := domain.ParseEventLevel(level)
		if err != nil {
			return domain.ProviderSpec{}, "", err
		}
		spec.Level = parsed
	}
	if keywords != "" {
		parsed, err := strconv.ParseUint(keywords, 0, 64)
		if err != nil {
			return domain.ProviderSpec{}, "", fmt.Errorf("keywords %q: %w", keywords, err)
		}
		spec.Keywords = parsed
	}
	for j, arg := range p.Arguments {
		key := strings.TrimSpace(arg.Key)
		if key == "" {
			return domain.ProviderSpec{}, "", fmt.Errorf("arguments[%d]: key is required", j)
		}
		spec.Arguments = append(spec.Arguments, domain.ProviderArgument{Key: key, Value: arg.Value})
	}
	return spec, "", nil
}
