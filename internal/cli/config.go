package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nainya/entitystore/internal/config"
	"github.com/nainya/entitystore/internal/logger"
)

// NewConfigCommand groups config helpers
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and check configuration files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Write(args[0], config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the --config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Print(
				map[string]any{"valid": true, "backend": cfg.Storage.Backend, "compression": cfg.Storage.Compression},
				func(w io.Writer) {
					fmt.Fprintf(w, "config ok: %s backend, %s compression\n", cfg.Storage.Backend, cfg.Storage.Compression)
				})
		},
	})

	return cmd
}

// newCommandLogger installs the configured logger as the global one so that
// zerolog's package logger writes to the same place
func newCommandLogger(cfg config.Config, w io.Writer) *logger.Logger {
	logger.InitGlobalLogger(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: w})
	return logger.GetGlobalLogger()
}
