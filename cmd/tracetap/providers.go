package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tracetap/internal/app"
	"tracetap/internal/domain"
)

func newProvidersCmd(root *rootOptions) *cobra.Command {
	var (
		interval int
		output   string
	)

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Print the provider set a monitor session would enable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(root.logger)
			cfg, err := application.LoadConfig(cmd.Context(), root.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				if interval <= 0 {
					return fmt.Errorf("interval must be > 0, got %d", interval)
				}
				cfg.SetInterval(interval)
			}
			return writeProviders(cmd.OutOrStdout(), app.ProviderSet(cfg), output)
		},
	}

	onceIntVarP(cmd.Flags(), &interval, "interval", "i", domain.DefaultIntervalSeconds, "counter interval in seconds")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml or json")
	return cmd
}

func writeProviders(w io.Writer, specs []domain.ProviderSpec, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(specs); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(specs)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
