package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/HugoDaniel/srcmap/internal/config"
	"github.com/HugoDaniel/srcmap/internal/sourcemap"
)

var (
	version = "dev" // semantic version (e.g., "v1.2.3")
	commit  string  // git commit SHA
	date    string  // build timestamp
)

// SetVersion sets the version information displayed by --version. It is
// called by the main package with values injected via ldflags.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// errFailed marks a command that already reported its failure; Execute
// exits non-zero without logging it again.
var errFailed = errors.New("failed")

// Execute runs the srcmap CLI.
func Execute(ctx context.Context) error {
	root, g := newRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errFailed) {
		logger := g.logger
		if logger == nil {
			logger = newLogger(os.Stderr, charmlog.InfoLevel)
		}
		logger.Error(err.Error())
	}
	return err
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	noConfig   bool
	output     string
	verbose    bool

	// Config overrides
	file                  string
	sourceRoot            string
	skipRedundant         bool
	coverLines            bool
	excludeSourcesContent bool
	workers               int
	debounce              time.Duration
	disabledRules         []string

	logger *charmlog.Logger
}

func newRootCmd() (*cobra.Command, *globalOptions) {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "srcmap",
		Short: "srcmap encodes, queries, composes and validates source maps",
		Long: `srcmap works with Source Map v3 files: it converts between the encoded and
decoded JSON shapes, maps generated positions to original ones and back,
flattens sectioned maps, composes the maps of chained transforms and
validates maps for structural faults.

Settings are read from srcmap.json, .srcmaprc, .srcmaprc.json, srcmap.toml,
srcmap.yaml or srcmap.yml in the input's directory or its parents. Flags
override config file settings.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if g.verbose {
				level = charmlog.DebugLevel
			}
			g.logger = newLogger(cmd.ErrOrStderr(), level)
			cmd.SetContext(withLogger(cmd.Context(), g.logger))
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("srcmap %s\ncommit: %s\nbuilt: %s\n", version, commit, date))

	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "use a specific config `file`")
	pf.BoolVar(&g.noConfig, "no-config", false, "ignore config files")
	pf.StringVarP(&g.output, "output", "o", "", "write output to `file` (default: stdout)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose logging")

	pf.StringVar(&g.file, "file", "", "set the \"file\" field of written maps")
	pf.StringVar(&g.sourceRoot, "source-root", "", "set the \"sourceRoot\" field of written maps")
	pf.BoolVar(&g.skipRedundant, "skip-redundant", false, "drop segments that add nothing over their predecessor")
	pf.BoolVar(&g.coverLines, "cover-lines", false, "map column 0 of empty lines between mapped lines")
	pf.BoolVar(&g.excludeSourcesContent, "exclude-sources-content", false, "strip sourcesContent from written maps")
	pf.IntVar(&g.workers, "workers", 0, "parallel validations (default: number of CPUs)")
	pf.DurationVar(&g.debounce, "debounce", 0, "quiet period before watch re-validates (default 100ms)")
	pf.StringSliceVar(&g.disabledRules, "disable", nil, "validation rule `codes` to skip, e.g. SM005")

	root.AddCommand(newEncodeCmd(g))
	root.AddCommand(newDecodeCmd(g))
	root.AddCommand(newFlattenCmd(g))
	root.AddCommand(newComposeCmd(g))
	root.AddCommand(newLookupCmd(g))
	root.AddCommand(newReverseCmd(g))
	root.AddCommand(newValidateCmd(g))
	root.AddCommand(newWatchCmd(g))
	root.AddCommand(newVLQCmd(g))

	return root, g
}

// mergeOptions collects the config overrides given on the command line.
func (g *globalOptions) mergeOptions(cmd *cobra.Command) config.MergeOptions {
	var m config.MergeOptions
	flags := cmd.Flags()
	if flags.Changed("file") {
		m.File = &g.file
	}
	if flags.Changed("source-root") {
		m.SourceRoot = &g.sourceRoot
	}
	if flags.Changed("skip-redundant") {
		m.SkipRedundant = &g.skipRedundant
	}
	if flags.Changed("cover-lines") {
		m.CoverLinesWithoutMappings = &g.coverLines
	}
	if flags.Changed("exclude-sources-content") {
		m.ExcludeSourcesContent = &g.excludeSourcesContent
	}
	m.Workers = g.workers
	m.Debounce = g.debounce
	m.DisabledRules = g.disabledRules
	return m
}

// resolve loads the config file for input (or the one given by --config)
// and merges the command-line overrides into it. The search starts in input
// when it is a directory and in its parent otherwise.
func (g *globalOptions) resolve(cmd *cobra.Command, input string) (config.Options, error) {
	logger := loggerFromContext(cmd.Context())

	var cfg *config.Config
	if !g.noConfig {
		var err error
		if g.configFile != "" {
			cfg, err = config.LoadFile(g.configFile)
			if err != nil {
				return config.Options{}, fmt.Errorf("loading config file: %w", err)
			}
			logger.Debug("using config", "path", g.configFile)
		} else {
			startDir := "."
			if input != "" && input != "-" {
				startDir = input
				if info, err := os.Stat(input); err != nil || !info.IsDir() {
					startDir = filepath.Dir(input)
				}
			}
			if abs, err := filepath.Abs(startDir); err == nil {
				startDir = abs
			}
			var path string
			cfg, path, err = config.Load(startDir)
			if err != nil {
				return config.Options{}, fmt.Errorf("loading config: %w", err)
			}
			if path != "" {
				logger.Debug("using config", "path", path)
			}
		}
	}
	return cfg.Merge(g.mergeOptions(cmd)), nil
}

// readInput reads a file, or stdin for "" and "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return data, nil
}

// writeOutput writes the command result to --output or stdout.
func (g *globalOptions) writeOutput(cmd *cobra.Command, data string) error {
	if g.output == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), data)
		return err
	}
	if err := os.WriteFile(g.output, []byte(data+"\n"), 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	printFile(cmd.ErrOrStderr(), g.output)
	return nil
}

// finishTable applies the resolved output settings to a table before it is
// written.
func finishTable(t *sourcemap.Table, opts config.Options) error {
	if err := t.Configure(opts.Table); err != nil {
		return err
	}
	if opts.ExcludeSourcesContent {
		t.StripSourcesContent()
	}
	return nil
}

// inputArg returns args[i], or "" to read stdin.
func inputArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
