// Package remap composes source maps of chained transforms into one map
// that points from the final output straight to the earliest sources.
package remap

import (
	"errors"
	"fmt"

	"github.com/HugoDaniel/srcmap/internal/sourcemap"
	"github.com/HugoDaniel/srcmap/internal/tracemap"
)

// Loader returns the map of an intermediate source, or false when the
// source is original.
type Loader func(source string) (*tracemap.Map, bool)

// ErrNoMaps is returned by Chain when called without maps.
var ErrNoMaps = errors.New("remap: no maps to chain")

// Compose traces every segment of outer through the maps returned by load,
// recursively, and records the deepest original position. Segments that
// cannot be traced through an intermediate map are dropped. Names prefer the
// innermost non-empty name, and source contents and ignore flags come from
// the map that lists the original source.
func Compose(outer *tracemap.Map, load Loader) (*sourcemap.Table, error) {
	return compose(outer, func(_ int, source string) (*tracemap.Map, bool) {
		return load(source)
	})
}

// Chain composes a linear list of maps, last transform first: maps[0] maps
// the final output, maps[1] maps the sources of maps[0], and so on.
func Chain(maps ...*tracemap.Map) (*sourcemap.Table, error) {
	if len(maps) == 0 {
		return nil, ErrNoMaps
	}
	return compose(maps[0], func(depth int, _ string) (*tracemap.Map, bool) {
		if depth+1 < len(maps) {
			return maps[depth+1], true
		}
		return nil, false
	})
}

// levelLoader returns the map for a source referenced by a map at the given
// depth, the outer map being depth 0.
type levelLoader func(depth int, source string) (*tracemap.Map, bool)

type origin struct {
	source string
	line   int
	column int
	name   string
	owner  *tracemap.Map // map that lists source as an original
}

func compose(outer *tracemap.Map, load levelLoader) (*sourcemap.Table, error) {
	out, err := sourcemap.NewTable(sourcemap.Options{File: outer.File()})
	if err != nil {
		return nil, err
	}

	var firstErr error
	outer.EachMapping(func(item tracemap.MappingItem) {
		if firstErr != nil {
			return
		}
		if item.Original == nil {
			if _, err := out.MaybeAddMapping(sourcemap.Mapping{Generated: item.Generated}); err != nil {
				firstErr = err
			}
			return
		}

		o, ok := trace(outer, load, origin{
			source: item.Source,
			line:   item.Original.Line,
			column: item.Original.Column,
			name:   item.Name,
			owner:  outer,
		})
		if !ok {
			return
		}

		src := out.AddSource(o.source, nil)
		if content, ok := o.owner.SourceContentFor(o.source); ok {
			if _, has := out.SourceContent(o.source); !has {
				out.SetSourceContent(o.source, content)
			}
		}
		if o.owner.IsIgnored(o.source) {
			out.SetIgnore(o.source, true)
		}

		// Segments go in by index so that "" stays a usable source name.
		seg := sourcemap.SourceSegment(item.Generated.Column, src, o.line-1, o.column)
		if o.name != "" {
			seg = sourcemap.NamedSegment(item.Generated.Column, src, o.line-1, o.column, out.AddName(o.name))
		}
		if _, err := out.MaybeAddSegment(item.Generated.Line-1, seg); err != nil {
			firstErr = fmt.Errorf("generated %d:%d: %w", item.Generated.Line, item.Generated.Column, err)
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// trace follows o through intermediate maps until it reaches a source with
// no map. A map already on the path ends the walk, so cyclic loaders
// terminate.
func trace(outer *tracemap.Map, load levelLoader, o origin) (origin, bool) {
	path := []*tracemap.Map{outer}
	for depth := 0; ; depth++ {
		inner, ok := load(depth, o.source)
		if !ok || inner == nil || onPath(path, inner) {
			return o, true
		}

		op := inner.OriginalPositionFor(sourcemap.Position{Line: o.line, Column: o.column})
		if op == nil {
			return origin{}, false
		}
		if op.Name != "" {
			o.name = op.Name
		}
		o.source, o.line, o.column, o.owner = op.Source, op.Line, op.Column, inner
		path = append(path, inner)
	}
}

func onPath(path []*tracemap.Map, m *tracemap.Map) bool {
	for _, p := range path {
		if p == m {
			return true
		}
	}
	return false
}
