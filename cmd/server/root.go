package main

import (
	"github.com/spf13/cobra"

	"github.com/themeflow/server/internal/config"
	"github.com/themeflow/server/internal/observability"
)

type rootFlags struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "themeflow",
		Short:         "Themeflow compiles theme documents to CSS and resolves store-bound layouts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Config file (defaults to $THEMEFLOW_CONFIG)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newCompileCmd(flags))
	cmd.AddCommand(newRenderCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig reads the configuration and installs the default logger
func loadConfig(flags *rootFlags) (*config.Config, *observability.Logger, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	logger := observability.NewLoggerWithWriter(logOutput, "themeflow", observability.ParseLevel(cfg.Log.Level), cfg.Log.Human)
	observability.SetDefault(logger)
	return cfg, logger, nil
}
