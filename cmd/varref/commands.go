package main

import (
	"fmt"
	"strings"

	varref "github.com/goliatone/go-varref"
	"github.com/goliatone/go-varref/pkg/catalog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newResolveCmd(a *app) *cobra.Command {
	var trace bool
	cmd := &cobra.Command{
		Use:   "resolve [text]",
		Short: "Replace identifiers with their current values",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			out, tr := varref.NewResolver(a.reg, a.opts...).ResolveWithTrace(cmd.Context(), text)
			if !trace {
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}
			payload, err := tr.ToJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "print the resolution trace as JSON")
	return cmd
}

func newSystemCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "system [text]",
		Short: "Rewrite identifiers into storage form (@gv_<id>_<field>)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), varref.NewTranslator(a.reg, a.opts...).ToSystemForm(cmd.Context(), text))
			return nil
		},
	}
}

func newDisplayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "display [text]",
		Short: "Rewrite identifiers into display form (@source.field#short)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), varref.NewTranslator(a.reg, a.opts...).ToDisplayForm(cmd.Context(), text))
			return nil
		},
	}
}

func newRenderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "render [text]",
		Short: "Render raw text as editor HTML with variable tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), varref.NewConverter(a.reg, a.opts...).RenderHTML(cmd.Context(), text))
			return nil
		},
	}
}

func newExtractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [html]",
		Short: "Extract raw identifier text from editor HTML",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), varref.NewConverter(a.reg, a.opts...).ExtractRaw(text))
			return nil
		},
	}
}

func newPlainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plain [html]",
		Short: "Extract readable text, using tag labels, from editor HTML",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), varref.NewConverter(a.reg, a.opts...).ToPlainText(text))
			return nil
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "List catalog variables matching a fuzzy query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := a.reg.Snapshot(cmd.Context())
			short := a.cfg.ShortIDLength
			for _, rec := range snap.Search(strings.Join(args, " "), limit) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n",
					rec.DisplayIdentifier(short), rec.Type, rec.Value)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results (0 for all)")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload a file catalog whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, ok := a.catalog.(*catalog.FileCatalog)
			if !ok {
				return fmt.Errorf("watch needs a file catalog, got %s", a.catalogLabel())
			}
			ctx := cmd.Context()
			report := func() {
				records := a.reg.Load(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "%d variables loaded from %s\n", len(records), file.Path())
			}
			report()
			return file.Watch(ctx, func() {
				a.logger.Info("catalog changed", zap.String("path", file.Path()))
				a.reg.ClearCache()
				report()
			})
		},
	}
}
