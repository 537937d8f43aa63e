package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/themeflow/server/internal/config"
	"github.com/themeflow/server/internal/observability"
	"github.com/themeflow/server/internal/services"
)

type renderOptions struct {
	view       string
	jsonOutput bool
}

func newRenderCmd(flags *rootFlags) *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render <theme>",
		Short: "Resolve a layout of a theme and print it as an HTML page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return runRender(cmd.Context(), cmd.OutOrStdout(), cfg, logger, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.view, "view", "", "Layout to resolve (defaults to the store's current view)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the render result as JSON")

	return cmd
}

func runRender(ctx context.Context, out io.Writer, cfg *config.Config, logger *observability.Logger, theme string, opts *renderOptions) error {
	e, err := newEngine(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	if !e.processor.ApplyTheme(ctx, theme) {
		return fmt.Errorf("theme %s could not be applied", theme)
	}
	doc, _ := e.processor.GetTheme(theme)

	result := e.resolver.Resolve(ctx, doc)
	if opts.view != "" {
		result = e.resolver.ResolveView(ctx, doc, opts.view)
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return services.NewHTMLRenderer().RenderPage(out, result, cfg.Server.StylesheetHref)
}
