// Package config handles loading srcmap configuration from files.
//
// Configuration can be written as JSON (srcmap.json, .srcmaprc,
// .srcmaprc.json), TOML (srcmap.toml) or YAML (srcmap.yaml, srcmap.yml).
// The config file is searched for in the start directory and its parents.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/HugoDaniel/srcmap/internal/diagnostic"
	"github.com/HugoDaniel/srcmap/internal/sourcemap"
)

// Config represents the configuration file structure.
// All fields are optional and will use default values if not specified.
type Config struct {
	// File overrides the "file" field of written maps
	File *string `json:"file,omitempty" toml:"file" yaml:"file"`

	// SourceRoot overrides the "sourceRoot" field of written maps
	SourceRoot *string `json:"sourceRoot,omitempty" toml:"sourceRoot" yaml:"sourceRoot"`

	// SkipRedundant drops segments that add nothing over their predecessor
	SkipRedundant *bool `json:"skipRedundant,omitempty" toml:"skipRedundant" yaml:"skipRedundant"`

	// CoverLinesWithoutMappings maps column 0 of empty lines between mapped lines
	CoverLinesWithoutMappings *bool `json:"coverLinesWithoutMappings,omitempty" toml:"coverLinesWithoutMappings" yaml:"coverLinesWithoutMappings"`

	// ExcludeSourcesContent strips sourcesContent from written maps
	ExcludeSourcesContent *bool `json:"excludeSourcesContent,omitempty" toml:"excludeSourcesContent" yaml:"excludeSourcesContent"`

	// Workers bounds parallel validation (default: number of CPUs)
	Workers *int `json:"workers,omitempty" toml:"workers" yaml:"workers"`

	// Debounce is the quiet period of the watcher, as a Go duration ("250ms")
	Debounce *string `json:"debounce,omitempty" toml:"debounce" yaml:"debounce"`

	// DisabledRules lists validation rule codes to skip
	DisabledRules []string `json:"disabledRules,omitempty" toml:"disabledRules" yaml:"disabledRules"`

	// Rules re-levels validation rules, e.g. {"SM005": "error"}
	Rules map[string]string `json:"rules,omitempty" toml:"rules" yaml:"rules"`
}

// ConfigFileNames are the names searched for config files, in order of preference.
var ConfigFileNames = []string{
	"srcmap.json",
	".srcmaprc",
	".srcmaprc.json",
	"srcmap.toml",
	"srcmap.yaml",
	"srcmap.yml",
}

// DefaultDebounce is the watcher quiet period when none is configured.
const DefaultDebounce = 100 * time.Millisecond

// Load searches for a config file starting from the given directory
// and walking up to parent directories. Returns nil if no config file is found.
func Load(startDir string) (*Config, string, error) {
	dir := startDir
	for {
		for _, name := range ConfigFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := LoadFile(path)
				return cfg, path, err
			}
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, no config found
			return nil, "", nil
		}
		dir = parent
	}
}

// LoadFile loads configuration from a specific file path. The format
// follows the extension; files without a known extension are JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Format is a configuration file syntax.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes and validates configuration data.
func Parse(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, err
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document decodes to io.EOF and means "no settings"
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values that the decoders cannot.
func (c *Config) Validate() error {
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", *c.Workers)
	}
	if c.Debounce != nil {
		d, err := time.ParseDuration(*c.Debounce)
		if err != nil {
			return fmt.Errorf("debounce: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("debounce must not be negative, got %s", d)
		}
	}
	for _, code := range c.DisabledRules {
		if !knownRule(code) {
			return fmt.Errorf("disabledRules: unknown rule %q", code)
		}
	}
	for code, sev := range c.Rules {
		if !knownRule(code) {
			return fmt.Errorf("rules: unknown rule %q", code)
		}
		if _, ok := diagnostic.ParseSeverity(sev); !ok {
			return fmt.Errorf("rules: %s: unknown severity %q", code, sev)
		}
	}
	return nil
}

func knownRule(code string) bool {
	for _, c := range diagnostic.Codes() {
		if string(c) == code {
			return true
		}
	}
	return false
}

// Options are the resolved settings used by the commands.
type Options struct {
	Table                 sourcemap.Options
	ExcludeSourcesContent bool
	Workers               int
	Debounce              time.Duration
	Filter                *diagnostic.Filter
}

// DefaultOptions returns the settings used without a config file.
func DefaultOptions() Options {
	return Options{
		Table:    sourcemap.DefaultOptions(),
		Workers:  runtime.NumCPU(),
		Debounce: DefaultDebounce,
		Filter:   diagnostic.NewFilter(),
	}
}

// ToOptions converts a Config to Options, using defaults for unset fields.
// A nil Config yields the defaults.
func (c *Config) ToOptions() Options {
	opts := DefaultOptions()
	if c == nil {
		return opts
	}

	if c.File != nil {
		opts.Table.File = *c.File
	}
	if c.SourceRoot != nil {
		opts.Table.SourceRoot = *c.SourceRoot
	}
	if c.SkipRedundant != nil {
		opts.Table.SkipRedundant = *c.SkipRedundant
	}
	if c.CoverLinesWithoutMappings != nil {
		opts.Table.CoverLinesWithoutMappings = *c.CoverLinesWithoutMappings
	}
	if c.ExcludeSourcesContent != nil {
		opts.ExcludeSourcesContent = *c.ExcludeSourcesContent
	}
	if c.Workers != nil && *c.Workers > 0 {
		opts.Workers = *c.Workers
	}
	if c.Debounce != nil {
		// Validated on load
		if d, err := time.ParseDuration(*c.Debounce); err == nil {
			opts.Debounce = d
		}
	}
	for code, name := range c.Rules {
		if sev, ok := diagnostic.ParseSeverity(name); ok {
			opts.Filter.SetRule(diagnostic.Code(code), sev)
		}
	}
	for _, code := range c.DisabledRules {
		opts.Filter.DisableRule(diagnostic.Code(code))
	}

	return opts
}

// MergeOptions holds command-line settings.
// CLI options take precedence over config file options.
type MergeOptions struct {
	// CLI flags (nil means not specified on CLI)
	File                      *string
	SourceRoot                *string
	SkipRedundant             *bool
	CoverLinesWithoutMappings *bool
	ExcludeSourcesContent     *bool
	Workers                   int           // 0 means not specified
	Debounce                  time.Duration // 0 means not specified
	DisabledRules             []string
}

// Merge merges CLI options with config file options.
// CLI options override config file options when specified.
func (c *Config) Merge(cli MergeOptions) Options {
	opts := c.ToOptions()

	// CLI overrides
	if cli.File != nil {
		opts.Table.File = *cli.File
	}
	if cli.SourceRoot != nil {
		opts.Table.SourceRoot = *cli.SourceRoot
	}
	if cli.SkipRedundant != nil {
		opts.Table.SkipRedundant = *cli.SkipRedundant
	}
	if cli.CoverLinesWithoutMappings != nil {
		opts.Table.CoverLinesWithoutMappings = *cli.CoverLinesWithoutMappings
	}
	if cli.ExcludeSourcesContent != nil {
		opts.ExcludeSourcesContent = *cli.ExcludeSourcesContent
	}
	if cli.Workers > 0 {
		opts.Workers = cli.Workers
	}
	if cli.Debounce > 0 {
		opts.Debounce = cli.Debounce
	}
	// CLI rules add to the config's rules
	for _, code := range cli.DisabledRules {
		opts.Filter.DisableRule(diagnostic.Code(code))
	}

	return opts
}
