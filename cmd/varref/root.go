package main

import (
	"fmt"
	"io"
	"strings"

	varref "github.com/goliatone/go-varref"
	"github.com/goliatone/go-varref/pkg/zaplog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds the state shared by subcommands once flags are parsed.
type app struct {
	configPath    string
	catalogSource string
	logLevel      string
	verbose       bool
	shortIDLength int

	cfg     varref.Config
	logger  *zap.Logger
	catalog varref.Catalog
	opts    []varref.Option
	reg     *varref.Registry
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "varref",
		Short: "Resolve and convert variable references",
		Long: `varref works with texts that reference catalog variables as
@source.field, @source.field#abc1 or @gv_<id>_<field>.

The catalog is read from --catalog (a JSON/YAML file or an http(s) URL) or
from the catalog section of --config. Text is taken from the arguments, or
from stdin when none are given.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML config file")
	flags.StringVar(&a.catalogSource, "catalog", "", "catalog file path or URL")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "shorthand for --log-level debug")
	flags.IntVar(&a.shortIDLength, "short-id-length", 0, "short id length written in display form (4-6)")

	root.AddCommand(
		newResolveCmd(a),
		newSystemCmd(a),
		newDisplayCmd(a),
		newRenderCmd(a),
		newExtractCmd(a),
		newPlainCmd(a),
		newSearchCmd(a),
		newWatchCmd(a),
	)
	return root
}

// setup loads the config, builds the logger and the registry. A logger set
// before execution is kept.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.cfg = varref.DefaultConfig()
	if a.configPath != "" {
		cfg, err := varref.LoadConfigFile(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.shortIDLength != 0 {
		a.cfg.ShortIDLength = a.shortIDLength
		if err := a.cfg.Validate(); err != nil {
			return err
		}
	}
	switch {
	case a.verbose:
		a.cfg.Logging.Level = "debug"
	case a.logLevel != "":
		a.cfg.Logging.Level = a.logLevel
	}

	if a.logger == nil {
		logger, err := zaplog.New(a.cfg.Logging)
		if err != nil {
			return err
		}
		a.logger = logger
	}

	if a.catalogSource != "" {
		a.cfg.Catalog.URL, a.cfg.Catalog.File = "", ""
		if isURL(a.catalogSource) {
			a.cfg.Catalog.URL = a.catalogSource
		} else {
			a.cfg.Catalog.File = a.catalogSource
		}
	}
	a.catalog = a.cfg.Catalog.NewCatalog()
	a.opts = []varref.Option{
		varref.WithConfig(a.cfg),
		varref.WithLogger(zaplog.Wrap(a.logger)),
	}
	a.reg = varref.NewRegistry(a.catalog, a.opts...)
	a.logger.Debug("varref ready",
		zap.String("command", cmd.Name()),
		zap.String("catalog", a.catalogLabel()))
	return nil
}

func (a *app) catalogLabel() string {
	switch {
	case a.cfg.Catalog.URL != "":
		return a.cfg.Catalog.URL
	case a.cfg.Catalog.File != "":
		return a.cfg.Catalog.File
	default:
		return "none"
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// inputText joins the arguments, or reads stdin when there are none or the
// only argument is "-".
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
