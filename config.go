package varref

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-varref/grammar"
	"github.com/goliatone/go-varref/layering"
	"github.com/goliatone/go-varref/pkg/activity"
	"github.com/goliatone/go-varref/pkg/catalog"
	"gopkg.in/yaml.v3"
)

// Config is the file form of the engine settings. Zero fields fall back to
// DefaultConfig when loaded through LoadConfigFile.
type Config struct {
	ShortIDLength  int              `json:"short_id_length" yaml:"short_id_length"`
	DebounceWindow time.Duration    `json:"debounce_window" yaml:"debounce_window"`
	Catalog        CatalogConfig    `json:"catalog" yaml:"catalog"`
	Markup         MarkupConfig     `json:"markup" yaml:"markup"`
	TypeRules      []TypeRuleConfig `json:"type_rules" yaml:"type_rules"`
	Logging        LoggingConfig    `json:"logging" yaml:"logging"`
	Activity       activity.Config  `json:"activity" yaml:"activity"`
}

// CatalogConfig locates the variable catalog. URL takes precedence over
// File.
type CatalogConfig struct {
	URL     string            `json:"url" yaml:"url"`
	File    string            `json:"file" yaml:"file"`
	Timeout time.Duration     `json:"timeout" yaml:"timeout"`
	Headers map[string]string `json:"headers" yaml:"headers"`
}

// TypeRuleConfig declares a type rule. Exactly one of Contains or Expr is
// expected; Expr wins when both are set. Engine selects the expression
// language: expr (default), cel or js.
type TypeRuleConfig struct {
	Name     string   `json:"name" yaml:"name"`
	Type     string   `json:"type" yaml:"type"`
	Contains []string `json:"contains" yaml:"contains"`
	Expr     string   `json:"expr" yaml:"expr"`
	Engine   string   `json:"engine" yaml:"engine"`
}

// LoggingConfig selects the structured logging backend settings.
type LoggingConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development" yaml:"development"`
	Encoding    string `json:"encoding" yaml:"encoding"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		ShortIDLength:  DefaultShortIDLength,
		DebounceWindow: DefaultDebounceWindow,
		Catalog:        CatalogConfig{Timeout: catalog.DefaultTimeout},
		Markup:         DefaultMarkupConfig(),
		Logging:        LoggingConfig{Level: "info", Encoding: "console"},
		Activity:       activity.Config{Channel: activity.DefaultChannel},
	}
}

// LoadConfigFile reads a YAML (or JSON) config file and overlays it on
// DefaultConfig. Unknown keys are rejected.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("varref: read config: %w", err)
	}
	file, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("varref: config %s: %w", path, err)
	}
	cfg := layering.NewStack(
		layering.Layer[Config]{Source: layering.SourceFile, Name: path, Value: file},
		layering.Layer[Config]{Source: layering.SourceDefaults, Value: DefaultConfig()},
	).Resolve()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("varref: config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a config document without applying defaults. An empty
// document yields the zero Config.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.ShortIDLength != 0 && (c.ShortIDLength < grammar.MinShortIDLength || c.ShortIDLength > grammar.MaxShortIDLength) {
		errs = append(errs, fmt.Errorf("short_id_length must be between %d and %d, got %d",
			grammar.MinShortIDLength, grammar.MaxShortIDLength, c.ShortIDLength))
	}
	if c.DebounceWindow < 0 {
		errs = append(errs, fmt.Errorf("debounce_window must not be negative"))
	}
	if c.Catalog.Timeout < 0 {
		errs = append(errs, fmt.Errorf("catalog.timeout must not be negative"))
	}
	for i, rule := range c.TypeRules {
		if ParseVariableType(rule.Type) == TypeUnknown && !strings.EqualFold(strings.TrimSpace(rule.Type), string(TypeUnknown)) {
			errs = append(errs, fmt.Errorf("type_rules[%d] (%s): invalid type %q", i, rule.Name, rule.Type))
		}
		if strings.TrimSpace(rule.Expr) == "" && len(rule.Contains) == 0 {
			errs = append(errs, fmt.Errorf("type_rules[%d] (%s): needs contains or expr", i, rule.Name))
		}
	}
	return errors.Join(errs...)
}

// WithConfig applies file settings. Logging and the catalog location are
// consumed by the caller that builds the logger and catalog.
func WithConfig(c Config) Option {
	return func(cfg *settings) {
		if c.ShortIDLength != 0 {
			WithShortIDLength(c.ShortIDLength)(cfg)
		}
		WithDebounceWindow(c.DebounceWindow)(cfg)
		cfg.markup = c.Markup.withDefaults()
		cfg.typeRuleSpecs = append([]TypeRuleConfig(nil), c.TypeRules...)
		cfg.activityConfig = c.Activity
	}
}

// NewCatalog builds the catalog the config points at: an HTTP client for
// URL, a file catalog for File, nil when neither is set.
func (c CatalogConfig) NewCatalog() Catalog {
	switch {
	case strings.TrimSpace(c.URL) != "":
		opts := []catalog.HTTPOption{catalog.WithTimeout(c.Timeout)}
		for key, value := range c.Headers {
			opts = append(opts, catalog.WithHeader(key, value))
		}
		return catalog.NewHTTPClient(c.URL, opts...)
	case strings.TrimSpace(c.File) != "":
		return catalog.NewFileCatalog(c.File)
	default:
		return nil
	}
}
