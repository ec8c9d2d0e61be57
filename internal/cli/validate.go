package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/HugoDaniel/srcmap/internal/config"
	"github.com/HugoDaniel/srcmap/internal/diagnostic"
	"github.com/HugoDaniel/srcmap/internal/validator"
	"github.com/HugoDaniel/srcmap/internal/watcher"
)

// fileReport is the validation outcome of one map.
type fileReport struct {
	Path string
	List *diagnostic.List
	Err  error // read failure
}

// validateFiles validates maps in parallel, at most opts.Workers at a time.
// Reports are returned in input order.
func validateFiles(ctx context.Context, paths []string, opts config.Options, limit int) ([]fileReport, error) {
	reports := make([]fileReport, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				reports[i] = fileReport{Path: path, Err: err}
				return nil
			}
			reports[i] = fileReport{
				Path: path,
				List: validator.Validate(data, validator.Options{File: path, Filter: opts.Filter, Limit: limit}),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// expandPaths replaces directories by the map files below them.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && watcher.IsMapFile(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// summary counts the outcome of a validation run.
type summary struct {
	files, failed, errors, warnings int
}

// printReports writes the diagnostics of each report and returns the
// totals.
func printReports(w io.Writer, reports []fileReport, quiet bool) summary {
	var s summary
	for _, r := range reports {
		s.files++
		if r.Err != nil {
			s.failed++
			printError(w, "%s: %v", r.Path, r.Err)
			continue
		}
		s.errors += r.List.ErrorCount()
		s.warnings += len(r.List.Warnings())
		if r.List.HasErrors() {
			s.failed++
		}

		switch {
		case r.List.HasErrors():
			printError(w, "%s", r.Path)
		case r.List.Count() > 0:
			if quiet {
				continue
			}
			printWarning(w, "%s", r.Path)
		default:
			if !quiet {
				printSuccess(w, "%s", r.Path)
			}
			continue
		}
		for _, d := range r.List.Diagnostics() {
			if quiet && d.Severity != diagnostic.Error {
				continue
			}
			fmt.Fprint(w, indent(r.List.FormatDiagnostic(&d)))
		}
		if n := r.List.Suppressed(); n > 0 {
			printDetail(w, "%d more diagnostics suppressed", n)
		}
	}
	return s
}

// indent prefixes every line of s with two spaces.
func indent(s string) string {
	out := make([]byte, 0, len(s)+16)
	start := true
	for i := 0; i < len(s); i++ {
		if start {
			out = append(out, ' ', ' ')
		}
		out = append(out, s[i])
		start = s[i] == '\n'
	}
	return string(out)
}

// jsonReport is the --json shape of one file's diagnostics.
type jsonReport struct {
	Path        string           `json:"path"`
	Error       string           `json:"error,omitempty"`
	Valid       bool             `json:"valid"`
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
}

type jsonDiagnostic struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

func toJSONReports(reports []fileReport) []jsonReport {
	out := make([]jsonReport, len(reports))
	for i, r := range reports {
		jr := jsonReport{Path: r.Path, Diagnostics: []jsonDiagnostic{}}
		if r.Err != nil {
			jr.Error = r.Err.Error()
			out[i] = jr
			continue
		}
		jr.Valid = !r.List.HasErrors()
		for _, d := range r.List.Diagnostics() {
			jd := jsonDiagnostic{
				Severity: d.Severity.String(),
				Code:     string(d.Code),
				Message:  d.Message,
			}
			if d.Generated != nil {
				jd.Line, jd.Column = d.Generated.Line, d.Generated.Column
			}
			if d.Offset >= 0 {
				jd.Offset = d.Offset
			}
			jr.Diagnostics = append(jr.Diagnostics, jd)
		}
		out[i] = jr
	}
	return out
}

func newValidateCmd(g *globalOptions) *cobra.Command {
	var (
		limit  int
		quiet  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "validate <maps or directories...>",
		Short: "Check source maps for structural faults",
		Long: `Validate checks maps for faults a decoder would reject or silently
misread: invalid JSON, bad VLQ data, out-of-range source and name indices,
unsorted columns, original positions beyond the embedded source content and
malformed sections. Directories are searched for *.map files.

Maps are validated in parallel. The command exits non-zero when any map has
an error-level diagnostic. Rules can be disabled with --disable or in the
config file.`,
		Example: `  srcmap validate dist/
  srcmap validate --disable SM005,SM010 app.js.map`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			opts, err := g.resolve(cmd, inputArg(args, 0))
			if err != nil {
				return err
			}

			var reports []fileReport
			if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
				data, err := readInput(cmd, "-")
				if err != nil {
					return err
				}
				reports = []fileReport{{
					Path: "<stdin>",
					List: validator.Validate(data, validator.Options{File: "<stdin>", Filter: opts.Filter, Limit: limit}),
				}}
			} else {
				paths, err := expandPaths(args)
				if err != nil {
					return err
				}
				logger.Debug("validating", "maps", len(paths), "workers", opts.Workers)
				prog := newProgress(logger)
				reports, err = validateFiles(cmd.Context(), paths, opts, limit)
				if err != nil {
					return err
				}
				prog.done(fmt.Sprintf("Validated %d maps", len(paths)))
			}

			var s summary
			if asJSON {
				data, err := json.MarshalIndent(toJSONReports(reports), "", "  ")
				if err != nil {
					return err
				}
				if err := g.writeOutput(cmd, string(data)); err != nil {
					return err
				}
				for _, r := range reports {
					if r.Err != nil || r.List.HasErrors() {
						s.failed++
					}
				}
			} else {
				s = printReports(cmd.OutOrStdout(), reports, quiet)
				logger.Debug("summary", "files", s.files, "errors", s.errors, "warnings", s.warnings)
			}

			if s.failed > 0 {
				printError(cmd.ErrOrStderr(), "%d of %d maps failed validation", s.failed, len(reports))
				return errFailed
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "report at most `n` diagnostics per rule and map (0: all)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only report errors")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the diagnostics as JSON")
	return cmd
}

func newWatchCmd(g *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Re-validate maps whenever they change",
		Long: `Watch validates every *.map file below a directory, then re-validates maps
as they are written. Changes are batched until the directory has been quiet
for the debounce period (--debounce or "debounce" in the config file).
Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			dir := args[0]
			opts, err := g.resolve(cmd, dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			check := func(ctx context.Context, paths []string) {
				var present []string
				for _, p := range paths {
					if _, err := os.Stat(p); err != nil {
						logger.Info("removed", "path", p)
						continue
					}
					present = append(present, p)
				}
				reports, err := validateFiles(ctx, present, opts, limit)
				if err != nil {
					return
				}
				s := printReports(out, reports, false)
				logger.Info("validated", "maps", s.files, "failed", s.failed)
			}

			initial, err := expandPaths([]string{dir})
			if err != nil {
				return err
			}
			check(cmd.Context(), initial)

			w, err := watcher.New(dir, check, watcher.Options{
				Debounce: opts.Debounce,
				OnError: func(err error) {
					logger.Warn("watch error", "err", err)
				},
			})
			if err != nil {
				return err
			}
			if err := w.Start(cmd.Context()); err != nil {
				w.Stop()
				return err
			}
			defer w.Stop()
			logger.Info("watching", "dir", dir, "debounce", opts.Debounce)

			<-w.Done()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "report at most `n` diagnostics per rule and map (0: all)")
	return cmd
}
