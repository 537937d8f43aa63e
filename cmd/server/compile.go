package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/themeflow/server/internal/config"
	"github.com/themeflow/server/internal/observability"
)

type compileOptions struct {
	scope string
}

func newCompileCmd(flags *rootFlags) *cobra.Command {
	opts := &compileOptions{}

	cmd := &cobra.Command{
		Use:   "compile <theme>",
		Short: "Print the compiled CSS of a theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return runCompile(cmd.Context(), cmd.OutOrStdout(), cfg, logger, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.scope, "scope", "", "Class used as selector scope (defaults to the theme name)")

	return cmd
}

func runCompile(ctx context.Context, out io.Writer, cfg *config.Config, logger *observability.Logger, theme string, opts *compileOptions) error {
	e, err := newEngine(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	doc, err := e.processor.Ensure(ctx, theme)
	if err != nil {
		return fmt.Errorf("load theme %s: %w", theme, err)
	}

	scope := opts.scope
	if scope == "" {
		scope = theme
	}
	_, err = fmt.Fprintln(out, e.processor.Compile(ctx, doc, scope))
	return err
}
