// Package tracemap answers position queries against a decoded source map:
// generated to original, original to generated, source content and ignore
// list lookups. A Map is immutable and safe for concurrent use.
package tracemap

import (
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/HugoDaniel/srcmap/internal/sourcemap"
)

// Bias selects the segment used when a column falls between segments.
type Bias int

const (
	// GreatestLowerBound picks the segment at or before the column.
	GreatestLowerBound Bias = iota
	// LeastUpperBound picks the segment at or after the column.
	LeastUpperBound
)

// String returns the bias name.
func (b Bias) String() string {
	switch b {
	case GreatestLowerBound:
		return "glb"
	case LeastUpperBound:
		return "lub"
	default:
		return "unknown"
	}
}

// ParseBias parses "glb" or "lub".
func ParseBias(s string) (Bias, bool) {
	switch strings.ToLower(s) {
	case "", "glb", "greatest-lower-bound":
		return GreatestLowerBound, true
	case "lub", "least-upper-bound":
		return LeastUpperBound, true
	}
	return GreatestLowerBound, false
}

// OriginalPosition is a location in an original source. Line is 1-based,
// Column 0-based.
type OriginalPosition struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Name   string `json:"name,omitempty"`
}

// MappingItem is one mapping as seen by EachMapping. Original is nil for a
// segment without source.
type MappingItem struct {
	Generated sourcemap.Position
	Source    string
	Original  *sourcemap.Position
	Name      string
}

// Map is an immutable snapshot of a source map prepared for queries.
type Map struct {
	file       string
	sourceRoot string
	sources    []string
	resolved   []string
	contents   []*string
	names      []string
	ignored    []bool
	lookup     map[string][]int // raw and resolved source names
	lines      [][]sourcemap.Segment
	encoded    *sourcemap.EncodedMap

	reverseOnce sync.Once
	reverse     [][][]reverseEntry // source -> original line -> entries
}

type reverseEntry struct {
	origColumn int
	genLine    int
	genColumn  int
}

// New snapshots a table. Later changes to the table do not affect the Map.
func New(t *sourcemap.Table) *Map {
	opts := t.Options()
	m := &Map{
		file:       opts.File,
		sourceRoot: opts.SourceRoot,
		sources:    t.Sources(),
		contents:   t.SourcesContent(),
		names:      t.Names(),
		encoded:    t.ToEncodedMap(),
	}

	lines := t.Lines()
	m.lines = make([][]sourcemap.Segment, len(lines))
	for i, line := range lines {
		m.lines[i] = append([]sourcemap.Segment(nil), line...)
	}

	m.ignored = make([]bool, len(m.sources))
	for _, idx := range t.IgnoreList() {
		m.ignored[idx] = true
	}

	m.resolved = make([]string, len(m.sources))
	m.lookup = make(map[string][]int, 2*len(m.sources))
	for i, src := range m.sources {
		m.resolved[i] = ResolveSource(m.sourceRoot, src)
		m.addLookup(src, i)
	}
	for i, src := range m.resolved {
		m.addLookup(src, i)
	}
	return m
}

// addLookup records that name refers to source i. A name listed more than
// once in sources refers to every one of its indices.
func (m *Map) addLookup(name string, i int) {
	if !slices.Contains(m.lookup[name], i) {
		m.lookup[name] = append(m.lookup[name], i)
	}
}

// FromEncoded builds a Map from an encoded flat map.
func FromEncoded(enc *sourcemap.EncodedMap) (*Map, error) {
	t, err := sourcemap.FromEncoded(enc)
	if err != nil {
		return nil, err
	}
	return New(t), nil
}

// Parse builds a Map from JSON. Both flat and sectioned maps are accepted;
// sectioned maps are flattened.
func Parse(data []byte) (*Map, error) {
	if sourcemap.IsSectioned(data) {
		return parseSectioned(data)
	}
	t, err := sourcemap.Parse(data)
	if err != nil {
		return nil, err
	}
	return New(t), nil
}

// ResolveSource joins a source with the map's sourceRoot. Absolute paths
// and URLs are returned unchanged.
func ResolveSource(root, source string) string {
	if root == "" || isAbsolute(source) {
		return source
	}
	if strings.HasSuffix(root, "/") {
		return root + source
	}
	return root + "/" + source
}

func isAbsolute(s string) bool {
	if strings.HasPrefix(s, "/") {
		return true
	}
	u, err := url.Parse(s)
	// A one-letter scheme is a Windows drive, not a URL.
	return err == nil && len(u.Scheme) > 1
}

// ============================================================================
// Generated -> original
// ============================================================================

// OriginalPositionFor returns the original position of a generated position
// using GreatestLowerBound. It returns nil when nothing maps there.
func (m *Map) OriginalPositionFor(pos sourcemap.Position) *OriginalPosition {
	return m.OriginalPositionForBias(pos, GreatestLowerBound)
}

// OriginalPositionForBias is OriginalPositionFor with an explicit bias.
// Among segments with equal columns, GreatestLowerBound picks the last
// inserted and LeastUpperBound the first.
func (m *Map) OriginalPositionForBias(pos sourcemap.Position, bias Bias) *OriginalPosition {
	line := pos.Line - 1
	if line < 0 || line >= len(m.lines) || pos.Column < 0 {
		return nil
	}
	segs := m.lines[line]
	if len(segs) == 0 {
		return nil
	}

	var i int
	if bias == LeastUpperBound {
		i = sort.Search(len(segs), func(i int) bool {
			return segs[i].GenColumn >= pos.Column
		})
		if i == len(segs) {
			return nil
		}
	} else {
		i = sort.Search(len(segs), func(i int) bool {
			return segs[i].GenColumn > pos.Column
		}) - 1
		if i < 0 {
			return nil
		}
	}

	seg := segs[i]
	if !seg.HasSource() {
		return nil
	}
	orig := &OriginalPosition{
		Source: m.resolved[seg.SourceIndex],
		Line:   seg.OrigLine + 1,
		Column: seg.OrigColumn,
	}
	if seg.HasName() {
		orig.Name = m.names[seg.NameIndex]
	}
	return orig
}

// ============================================================================
// Original -> generated
// ============================================================================

func (m *Map) buildReverse() {
	m.reverse = make([][][]reverseEntry, len(m.sources))
	for genLine, segs := range m.lines {
		for _, seg := range segs {
			if !seg.HasSource() {
				continue
			}
			bySource := m.reverse[seg.SourceIndex]
			for len(bySource) <= seg.OrigLine {
				bySource = append(bySource, nil)
			}
			bySource[seg.OrigLine] = append(bySource[seg.OrigLine], reverseEntry{
				origColumn: seg.OrigColumn,
				genLine:    genLine,
				genColumn:  seg.GenColumn,
			})
			m.reverse[seg.SourceIndex] = bySource
		}
	}
	// Lines are walked in generated order, so a stable sort on the original
	// column leaves ties ordered by generated position.
	for _, bySource := range m.reverse {
		for _, entries := range bySource {
			sort.SliceStable(entries, func(i, j int) bool {
				return entries[i].origColumn < entries[j].origColumn
			})
		}
	}
}

// bucket returns the reverse entries of one original line, or nil. When the
// source is listed under several indices their entries are merged.
func (m *Map) bucket(source string, line int) []reverseEntry {
	indices := m.lookup[source]
	if len(indices) == 0 || line < 1 {
		return nil
	}
	m.reverseOnce.Do(m.buildReverse)
	if len(indices) == 1 {
		return m.lineOf(indices[0], line)
	}
	var merged []reverseEntry
	for _, idx := range indices {
		merged = append(merged, m.lineOf(idx, line)...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.origColumn != b.origColumn {
			return a.origColumn < b.origColumn
		}
		if a.genLine != b.genLine {
			return a.genLine < b.genLine
		}
		return a.genColumn < b.genColumn
	})
	return merged
}

func (m *Map) lineOf(idx, line int) []reverseEntry {
	bySource := m.reverse[idx]
	if line-1 >= len(bySource) {
		return nil
	}
	return bySource[line-1]
}

// GeneratedPositionFor returns the first generated position, by line then
// column, that maps exactly to the original position. Source may be given
// raw or resolved. It returns nil when there is no exact match.
func (m *Map) GeneratedPositionFor(orig OriginalPosition) *sourcemap.Position {
	entries := m.bucket(orig.Source, orig.Line)
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].origColumn >= orig.Column
	})
	if i == len(entries) || entries[i].origColumn != orig.Column {
		return nil
	}
	return &sourcemap.Position{Line: entries[i].genLine + 1, Column: entries[i].genColumn}
}

// AllGeneratedPositionsFor returns every generated position mapping to the
// original line and column, in generated order. When no segment has that
// exact column, the positions of the next greater column on the line are
// returned instead.
func (m *Map) AllGeneratedPositionsFor(orig OriginalPosition) []sourcemap.Position {
	entries := m.bucket(orig.Source, orig.Line)
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].origColumn >= orig.Column
	})
	if i == len(entries) {
		return nil
	}
	col := entries[i].origColumn
	var out []sourcemap.Position
	for ; i < len(entries) && entries[i].origColumn == col; i++ {
		out = append(out, sourcemap.Position{Line: entries[i].genLine + 1, Column: entries[i].genColumn})
	}
	return out
}

// ============================================================================
// Sources
// ============================================================================

// SourceContentFor returns the content of a source given raw or resolved.
// For a source listed more than once, the first entry with content wins.
func (m *Map) SourceContentFor(source string) (string, bool) {
	for _, idx := range m.lookup[source] {
		if m.contents[idx] != nil {
			return *m.contents[idx], true
		}
	}
	return "", false
}

// IsIgnored reports whether a source, given raw or resolved, is on the
// ignore list under any of its indices.
func (m *Map) IsIgnored(source string) bool {
	for _, idx := range m.lookup[source] {
		if m.ignored[idx] {
			return true
		}
	}
	return false
}

// EachMapping calls fn for every segment in generated order.
func (m *Map) EachMapping(fn func(MappingItem)) {
	for line, segs := range m.lines {
		for _, seg := range segs {
			item := MappingItem{Generated: sourcemap.Position{Line: line + 1, Column: seg.GenColumn}}
			if seg.HasSource() {
				item.Source = m.resolved[seg.SourceIndex]
				item.Original = &sourcemap.Position{Line: seg.OrigLine + 1, Column: seg.OrigColumn}
				if seg.HasName() {
					item.Name = m.names[seg.NameIndex]
				}
			}
			fn(item)
		}
	}
}

// File returns the generated file name.
func (m *Map) File() string { return m.file }

// SourceRoot returns the source root.
func (m *Map) SourceRoot() string { return m.sourceRoot }

// Sources returns the sources as written in the map.
func (m *Map) Sources() []string { return append([]string(nil), m.sources...) }

// ResolvedSources returns the sources joined with the source root.
func (m *Map) ResolvedSources() []string { return append([]string(nil), m.resolved...) }

// Names returns the names table.
func (m *Map) Names() []string { return append([]string(nil), m.names...) }

// Lines returns the segments per 0-based generated line. The result must not
// be modified.
func (m *Map) Lines() [][]sourcemap.Segment { return m.lines }

// Encoded returns the map in its encoded JSON shape.
func (m *Map) Encoded() *sourcemap.EncodedMap {
	enc := *m.encoded
	enc.Sources = append([]string{}, enc.Sources...)
	enc.Names = append([]string{}, enc.Names...)
	if enc.SourcesContent != nil {
		enc.SourcesContent = append([]*string(nil), enc.SourcesContent...)
	}
	if enc.IgnoreList != nil {
		enc.IgnoreList = append([]int(nil), enc.IgnoreList...)
	}
	return &enc
}

// Table rebuilds a mutable table from the map.
func (m *Map) Table() (*sourcemap.Table, error) {
	return sourcemap.FromEncoded(m.Encoded())
}

// Decoded returns the map in its decoded JSON shape. Segment sources are
// given as written in the map.
func (m *Map) Decoded() *sourcemap.DecodedMap {
	enc := m.Encoded()
	mappings := make([][]sourcemap.DecodedSegment, len(m.lines))
	for i, segs := range m.lines {
		mappings[i] = make([]sourcemap.DecodedSegment, len(segs))
		for j, seg := range segs {
			d := sourcemap.DecodedSegment{GeneratedColumn: seg.GenColumn}
			if seg.HasSource() {
				d.Source = m.sources[seg.SourceIndex]
				d.Original = &sourcemap.Position{Line: seg.OrigLine + 1, Column: seg.OrigColumn}
				if seg.HasName() {
					d.Name = m.names[seg.NameIndex]
				}
			}
			mappings[i][j] = d
		}
	}
	return &sourcemap.DecodedMap{
		Version:        3,
		File:           enc.File,
		SourceRoot:     enc.SourceRoot,
		Sources:        enc.Sources,
		SourcesContent: enc.SourcesContent,
		Names:          enc.Names,
		Mappings:       mappings,
		IgnoreList:     enc.IgnoreList,
	}
}
