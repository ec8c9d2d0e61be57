package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HugoDaniel/srcmap/internal/sourcemap"
	"github.com/HugoDaniel/srcmap/internal/tracemap"
)

// parsePosition parses "line:column" with a 1-based line and 0-based column.
func parsePosition(s string) (sourcemap.Position, error) {
	lineStr, colStr, ok := strings.Cut(s, ":")
	if !ok {
		return sourcemap.Position{}, fmt.Errorf("position %q: want line:column", s)
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil || line < 1 {
		return sourcemap.Position{}, fmt.Errorf("position %q: line must be a positive integer", s)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil || col < 0 {
		return sourcemap.Position{}, fmt.Errorf("position %q: column must be a non-negative integer", s)
	}
	return sourcemap.Position{Line: line, Column: col}, nil
}

func newLookupCmd(g *globalOptions) *cobra.Command {
	var (
		biasName string
		asJSON   bool
		showLine bool
	)

	cmd := &cobra.Command{
		Use:   "lookup <map> <line:column>",
		Short: "Find the original position of a generated position",
		Long: `Lookup maps a generated position to its original source position. Lines are
1-based and columns 0-based UTF-16 offsets. With the default glb bias the
closest mapping at or before the column is used, with lub the closest at or
after it.`,
		Example: `  srcmap lookup bundle.js.map 1:1042
  srcmap lookup --bias lub bundle.js.map 3:0`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bias, ok := tracemap.ParseBias(biasName)
			if !ok {
				return fmt.Errorf("unknown bias %q (want glb or lub)", biasName)
			}
			pos, err := parsePosition(args[1])
			if err != nil {
				return err
			}
			m, err := loadMap(cmd, args[0])
			if err != nil {
				return fmt.Errorf("lookup: %w", err)
			}

			orig := m.OriginalPositionForBias(pos, bias)
			if orig == nil {
				printWarning(cmd.ErrOrStderr(), "nothing maps to %d:%d", pos.Line, pos.Column)
				return errFailed
			}

			if asJSON {
				data, err := json.Marshal(orig)
				if err != nil {
					return err
				}
				return g.writeOutput(cmd, string(data))
			}

			w := cmd.OutOrStdout()
			printPosition(w, "generated", m.File(), pos.Line, pos.Column)
			printPosition(w, "original", orig.Source, orig.Line, orig.Column)
			if orig.Name != "" {
				printKeyValue(w, "name", orig.Name)
			}
			if showLine {
				if content, ok := m.SourceContentFor(orig.Source); ok {
					idx := sourcemap.NewLineIndex(content)
					if orig.Line-1 < idx.LineCount() {
						printDetail(w, "%s", idx.Line(orig.Line-1))
					}
				}
			}
			if m.IsIgnored(orig.Source) {
				printDetail(w, "%s is on the ignore list", orig.Source)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&biasName, "bias", "glb", "column bias: glb or lub")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&showLine, "context", false, "print the original source line when embedded")
	return cmd
}

func newReverseCmd(g *globalOptions) *cobra.Command {
	var (
		all    bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "reverse <map> <source> <line:column>",
		Short: "Find the generated positions of an original position",
		Long: `Reverse maps an original source position to the generated position that
maps exactly to it. With --all every generated position for the original
line and column is printed; when no mapping has that exact column, the
positions of the next mapped column on the line are printed instead.

The source may be given as written in the map or joined with its sourceRoot.`,
		Example: `  srcmap reverse bundle.js.map src/app.ts 42:4
  srcmap reverse --all bundle.js.map src/app.ts 42:0`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[2])
			if err != nil {
				return err
			}
			m, err := loadMap(cmd, args[0])
			if err != nil {
				return fmt.Errorf("reverse: %w", err)
			}

			orig := tracemap.OriginalPosition{Source: args[1], Line: pos.Line, Column: pos.Column}
			var found []sourcemap.Position
			if all {
				found = m.AllGeneratedPositionsFor(orig)
			} else if p := m.GeneratedPositionFor(orig); p != nil {
				found = []sourcemap.Position{*p}
			}
			if len(found) == 0 {
				printWarning(cmd.ErrOrStderr(), "%s:%d:%d is not mapped", args[1], pos.Line, pos.Column)
				return errFailed
			}

			if asJSON {
				data, err := json.Marshal(found)
				if err != nil {
					return err
				}
				return g.writeOutput(cmd, string(data))
			}
			w := cmd.OutOrStdout()
			for _, p := range found {
				printPosition(w, "generated", m.File(), p.Line, p.Column)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "print every matching generated position")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
