package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HugoDaniel/srcmap/internal/remap"
	"github.com/HugoDaniel/srcmap/internal/sourcemap"
	"github.com/HugoDaniel/srcmap/internal/tracemap"
)

func newEncodeCmd(g *globalOptions) *cobra.Command {
	var comment bool

	cmd := &cobra.Command{
		Use:   "encode [decoded.json]",
		Short: "Encode a decoded map into a Source Map v3 file",
		Long: `Encode reads a map whose mappings are structured JSON segments, one array
per generated line, and writes the VLQ-encoded Source Map v3 form.`,
		Example: `  srcmap encode decoded.json -o out.js.map
  srcmap decode out.js.map | srcmap encode --skip-redundant`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := inputArg(args, 0)
			opts, err := g.resolve(cmd, input)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, input)
			if err != nil {
				return err
			}

			t, err := sourcemap.ParseDecoded(data)
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			if err := finishTable(t, opts); err != nil {
				return err
			}
			enc := t.ToEncodedMap()
			loggerFromContext(cmd.Context()).Debug("encoded",
				"sources", len(enc.Sources), "names", len(enc.Names), "segments", t.SegmentCount())
			if comment {
				return g.writeOutput(cmd, enc.ToComment(true))
			}
			return g.writeOutput(cmd, enc.ToJSON())
		},
	}
	cmd.Flags().BoolVar(&comment, "comment", false, "write an inline sourceMappingURL comment instead of JSON")
	return cmd
}

func newDecodeCmd(g *globalOptions) *cobra.Command {
	var indent bool

	cmd := &cobra.Command{
		Use:   "decode [map.json]",
		Short: "Decode a source map into structured mappings",
		Long: `Decode reads a Source Map v3 file, flat or sectioned, and writes it with
the mappings expanded into JSON segments, one array per generated line.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := inputArg(args, 0)
			opts, err := g.resolve(cmd, input)
			if err != nil {
				return err
			}
			t, err := loadTable(cmd, input)
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			if err := finishTable(t, opts); err != nil {
				return err
			}

			var out []byte
			if indent {
				out, err = json.MarshalIndent(t.ToDecodedMap(), "", "  ")
			} else {
				out, err = json.Marshal(t.ToDecodedMap())
			}
			if err != nil {
				return err
			}
			return g.writeOutput(cmd, string(out))
		},
	}
	cmd.Flags().BoolVar(&indent, "indent", false, "indent the JSON output")
	return cmd
}

func newFlattenCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flatten [sectioned.json]",
		Short: "Flatten a sectioned map into a single map",
		Long: `Flatten merges the sections of an index map into one flat map. Each
section's mappings are shifted by its offset and clipped where the next
section starts. Flat maps are re-encoded unchanged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := inputArg(args, 0)
			opts, err := g.resolve(cmd, input)
			if err != nil {
				return err
			}
			t, err := loadTable(cmd, input)
			if err != nil {
				return fmt.Errorf("flatten: %w", err)
			}
			if err := finishTable(t, opts); err != nil {
				return err
			}
			return g.writeOutput(cmd, t.ToEncodedMap().ToJSON())
		},
	}
}

func newComposeCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose <outer.map> [inner maps...]",
		Short: "Compose the maps of chained transforms",
		Long: `Compose traces every mapping of the outer map through the maps of the
intermediate files it points at, producing one map from the final output to
the earliest sources.

An intermediate source is matched against the "file" field of the given
inner maps, or their file name without ".map". Sources with no matching
inner map are looked up on disk as "<source>.map" next to the outer map.`,
		Example: `  srcmap compose bundle.min.js.map bundle.js.map
  srcmap compose app.min.js.map -o app.composed.map`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := g.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			logger := loggerFromContext(cmd.Context())
			prog := newProgress(logger)

			outer, err := loadMap(cmd, args[0])
			if err != nil {
				return fmt.Errorf("outer map: %w", err)
			}
			loader, err := newMapLoader(cmd, filepath.Dir(args[0]), args[1:])
			if err != nil {
				return err
			}

			t, err := remap.Compose(outer, loader.load)
			if err != nil {
				return fmt.Errorf("compose: %w", err)
			}
			if err := finishTable(t, opts); err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Composed %d maps", loader.used+1))
			return g.writeOutput(cmd, t.ToEncodedMap().ToJSON())
		},
	}
	return cmd
}

// mapLoader resolves intermediate sources to their maps for compose.
type mapLoader struct {
	cmd    *cobra.Command
	dir    string
	byName map[string]*tracemap.Map
	disk   map[string]*tracemap.Map // nil entries record misses
	used   int
}

func newMapLoader(cmd *cobra.Command, dir string, paths []string) (*mapLoader, error) {
	l := &mapLoader{
		cmd:    cmd,
		dir:    dir,
		byName: make(map[string]*tracemap.Map),
		disk:   make(map[string]*tracemap.Map),
	}
	for _, p := range paths {
		m, err := loadMap(cmd, p)
		if err != nil {
			return nil, fmt.Errorf("inner map %s: %w", p, err)
		}
		name := m.File()
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(p), ".map")
		}
		l.byName[name] = m
	}
	return l, nil
}

func (l *mapLoader) load(source string) (*tracemap.Map, bool) {
	logger := loggerFromContext(l.cmd.Context())
	for _, name := range []string{source, path.Base(source)} {
		if m, ok := l.byName[name]; ok {
			l.used++
			logger.Debug("tracing through", "source", source, "map", name)
			return m, true
		}
	}

	if m, seen := l.disk[source]; seen {
		return m, m != nil
	}
	file := filepath.Join(l.dir, filepath.FromSlash(source)) + ".map"
	m, err := loadMap(l.cmd, file)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("skipping intermediate map", "path", file, "err", err)
		}
		l.disk[source] = nil
		return nil, false
	}
	l.disk[source] = m
	l.used++
	logger.Debug("tracing through", "source", source, "map", file)
	return m, true
}

// loadMap parses a flat or sectioned map from a file or stdin.
func loadMap(cmd *cobra.Command, path string) (*tracemap.Map, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = readInput(cmd, path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return tracemap.Parse(data)
}

// loadTable parses a flat or sectioned map into a mutable table.
func loadTable(cmd *cobra.Command, path string) (*sourcemap.Table, error) {
	m, err := loadMap(cmd, path)
	if err != nil {
		return nil, err
	}
	return m.Table()
}
