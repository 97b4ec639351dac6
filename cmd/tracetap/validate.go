package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tracetap/internal/app"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file without attaching",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if root.configPath == "" {
				return errors.New("--config is required")
			}
			application := app.New(root.logger)
			if _, err := application.ValidateConfig(cmd.Context(), root.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", root.configPath)
			return nil
		},
	}
}
