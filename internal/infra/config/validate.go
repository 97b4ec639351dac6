package config

import (
	"fmt"
	"strings"

	"tracetap/internal/domain"
)

// Validate checks a resolved configuration and reports every problem at
// once.
func Validate(cfg Config) error {
	var errs []string

	switch {
	case cfg.Target.PID != 0 && cfg.Target.PipeFile != "":
		errs = append(errs, "target: pid and pipeFile are mutually exclusive")
	case cfg.Target.PID == 0 && cfg.Target.PipeFile == "":
		errs = append(errs, "target: one of pid or pipeFile is required")
	case cfg.Target.PID < 0:
		errs = append(errs, fmt.Sprintf("target.pid: must be positive, got %d", cfg.Target.PID))
	}
	if cfg.Target.PID > 0 && cfg.DecoderCommand == "" {
		errs = append(errs, "decoder.command: required when attaching by pid")
	}
	if cfg.Target.System == "" {
		errs = append(errs, "target.system: is required")
	}
	if cfg.IntervalSeconds <= 0 {
		errs = append(errs, fmt.Sprintf("intervalSeconds: must be > 0, got %d", cfg.IntervalSeconds))
	}
	if cfg.AttachTimeout < 0 {
		errs = append(errs, "attachTimeoutSeconds: must be >= 0")
	}
	if cfg.StopTimeout < 0 {
		errs = append(errs, "stopTimeoutSeconds: must be >= 0")
	}
	if cfg.Observability.MetricsEnabled || cfg.Observability.HealthzEnabled {
		if cfg.Observability.ListenAddress == "" {
			errs = append(errs, "observability.listenAddress: required when metrics or healthz is enabled")
		}
	}
	if cfg.Broadcast.ListenAddress != "" && cfg.Broadcast.MaxClients <= 0 {
		errs = append(errs, fmt.Sprintf("broadcast.maxClients: must be > 0, got %d", cfg.Broadcast.MaxClients))
	}

	seen := make(map[string]struct{}, len(cfg.Providers))
	for i, spec := range cfg.Providers {
		if spec.Name == "" {
			errs = append(errs, fmt.Sprintf("providers[%d]: name is required", i))
			continue
		}
		if _, dup := seen[spec.Name]; dup {
			errs = append(errs, fmt.Sprintf("providers[%d]: duplicate provider %q", i, spec.Name))
			continue
		}
		seen[spec.Name] = struct{}{}
	}

	if len(errs) > 0 {
		return invalid("config.Validate", errs)
	}
	return nil
}

func invalid(op string, errs []string) error {
	return domain.E(domain.CodeInvalidArgument, op, strings.Join(errs, "; "), domain.ErrInvalidConfig)
}
