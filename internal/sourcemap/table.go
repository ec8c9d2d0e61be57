package sourcemap

import (
	"sort"
)

// Position is a location in generated or original text. Lines are 1-based,
// columns are 0-based UTF-16 offsets.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// MaxLines bounds the number of generated lines a table accepts.
const MaxLines = 1 << 24

// Mapping describes one generated position and what it maps to.
type Mapping struct {
	Generated Position
	Source    string    // Original source, "" for a mapping without source
	Original  *Position // Required when Source is set
	Name      string    // Original identifier name, "" if none
}

// Options configures a Table. The zero value is valid.
type Options struct {
	// Version is the source map version; 0 means 3, the only supported value.
	Version int

	// File is the name of the generated file.
	File string

	// SourceRoot is prepended to sources by consumers.
	SourceRoot string

	// SkipRedundant makes AddMapping drop segments that add no information
	// (see MaybeAddMapping).
	SkipRedundant bool

	// CoverLinesWithoutMappings adds a mapping at column 0 for empty lines
	// between mapped lines when encoding, repeating the last original
	// position. Mozilla's source-map library returns null for lines without
	// a mapping at column 0.
	CoverLinesWithoutMappings bool
}

// DefaultOptions returns the default table options.
func DefaultOptions() Options {
	return Options{Version: 3}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Version != 0 && o.Version != 3 {
		return newError(CodeMalformedMapping, -1, "unsupported source map version %d", o.Version)
	}
	return nil
}

// Table is a mutable, incrementally built source map. It is not safe for
// concurrent use.
type Table struct {
	opts Options

	sources        []string
	sourceIndex    map[string]int
	sourcesContent []*string
	names          []string
	nameIndex      map[string]int
	ignored        map[int]bool

	lines    [][]Segment
	unsorted map[int]bool // lines that received an out-of-order column

	lineIndexes map[int]*LineIndex // per source, built on demand
}

// NewTable creates an empty table.
func NewTable(opts Options) (*Table, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.Version = 3
	return &Table{
		opts:        opts,
		sourceIndex: make(map[string]int),
		nameIndex:   make(map[string]int),
		ignored:     make(map[int]bool),
		unsorted:    make(map[int]bool),
		lineIndexes: make(map[int]*LineIndex),
	}, nil
}

// Options returns the table options.
func (t *Table) Options() Options {
	return t.opts
}

// SetFile sets the generated file name.
func (t *Table) SetFile(file string) {
	t.opts.File = file
}

// SetSourceRoot sets the source root.
func (t *Table) SetSourceRoot(root string) {
	t.opts.SourceRoot = root
}

// Configure applies output options to a table that may already hold
// mappings. An empty File or SourceRoot keeps the current value. With
// SkipRedundant, segments recorded so far are simplified too.
func (t *Table) Configure(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if opts.File != "" {
		t.opts.File = opts.File
	}
	if opts.SourceRoot != "" {
		t.opts.SourceRoot = opts.SourceRoot
	}
	t.opts.SkipRedundant = opts.SkipRedundant
	t.opts.CoverLinesWithoutMappings = opts.CoverLinesWithoutMappings
	if opts.SkipRedundant {
		t.Simplify()
	}
	return nil
}

// StripSourcesContent drops the content of every source.
func (t *Table) StripSourcesContent() {
	for i := range t.sourcesContent {
		t.sourcesContent[i] = nil
	}
	clear(t.lineIndexes)
}

// AddSource registers a source with optional content and returns its index.
// An already registered source keeps its index; its content is replaced
// when content is non-nil.
func (t *Table) AddSource(source string, content *string) int {
	idx := t.internSource(source)
	if content != nil {
		t.setContent(idx, *content)
	}
	return idx
}

func (t *Table) internSource(source string) int {
	if idx, ok := t.sourceIndex[source]; ok {
		return idx
	}
	return t.appendSource(source, nil)
}

// appendSource adds a source entry without deduplication. The index map
// keeps the first occurrence.
func (t *Table) appendSource(source string, content *string) int {
	idx := len(t.sources)
	t.sources = append(t.sources, source)
	t.sourcesContent = append(t.sourcesContent, content)
	if _, ok := t.sourceIndex[source]; !ok {
		t.sourceIndex[source] = idx
	}
	return idx
}

// AddName registers a name and returns its index. An already registered
// name keeps its index.
func (t *Table) AddName(name string) int {
	return t.internName(name)
}

func (t *Table) internName(name string) int {
	if idx, ok := t.nameIndex[name]; ok {
		return idx
	}
	return t.appendName(name)
}

func (t *Table) appendName(name string) int {
	idx := len(t.names)
	t.names = append(t.names, name)
	if _, ok := t.nameIndex[name]; !ok {
		t.nameIndex[name] = idx
	}
	return idx
}

// SourceIndex returns the index of a registered source.
func (t *Table) SourceIndex(source string) (int, bool) {
	idx, ok := t.sourceIndex[source]
	return idx, ok
}

// segmentFor validates m, interns its source and name, and returns the
// 0-based generated line and the segment.
func (t *Table) segmentFor(m Mapping) (int, Segment, error) {
	line := m.Generated.Line - 1
	if err := checkGenerated(line, m.Generated.Column); err != nil {
		return 0, Segment{}, err
	}

	if m.Source == "" {
		switch {
		case m.Original != nil:
			return 0, Segment{}, newError(CodeMissingSource, -1,
				"original position %d:%d given without a source", m.Original.Line, m.Original.Column)
		case m.Name != "":
			return 0, Segment{}, newError(CodeMissingSource, -1, "name %q given without a source", m.Name)
		}
		return line, GeneratedSegment(m.Generated.Column), nil
	}

	if m.Original == nil {
		return 0, Segment{}, newError(CodeMalformedMapping, -1, "source %q given without an original position", m.Source)
	}
	if m.Original.Line < 1 || m.Original.Column < 0 {
		return 0, Segment{}, newError(CodeIndexOutOfRange, -1,
			"invalid original position %d:%d", m.Original.Line, m.Original.Column)
	}

	src := t.internSource(m.Source)
	if m.Name == "" {
		return line, SourceSegment(m.Generated.Column, src, m.Original.Line-1, m.Original.Column), nil
	}
	return line, NamedSegment(m.Generated.Column, src, m.Original.Line-1, m.Original.Column, t.internName(m.Name)), nil
}

// AddMapping records a mapping. Source and name strings are interned by
// value. With Options.SkipRedundant it behaves like MaybeAddMapping.
func (t *Table) AddMapping(m Mapping) error {
	line, seg, err := t.segmentFor(m)
	if err != nil {
		return err
	}
	if t.opts.SkipRedundant && t.redundant(line, seg) {
		return nil
	}
	t.insert(line, seg)
	return nil
}

// MaybeAddMapping records a mapping unless it adds nothing over its
// predecessor on the same line: a sourceless segment at the start of a line
// or after another sourceless segment, or a segment repeating the previous
// segment's source position and name. It reports whether the mapping was
// recorded.
func (t *Table) MaybeAddMapping(m Mapping) (bool, error) {
	line, seg, err := t.segmentFor(m)
	if err != nil {
		return false, err
	}
	if t.redundant(line, seg) {
		return false, nil
	}
	t.insert(line, seg)
	return true, nil
}

// AddSegment records an already indexed segment on a 0-based generated line.
// Unlike AddMapping it addresses sources by index, so any registered source
// name can be used, the empty string included.
func (t *Table) AddSegment(line int, seg Segment) error {
	if err := t.checkSegment(line, seg); err != nil {
		return err
	}
	t.insert(line, seg)
	return nil
}

// MaybeAddSegment is the indexed form of MaybeAddMapping.
func (t *Table) MaybeAddSegment(line int, seg Segment) (bool, error) {
	if err := t.checkSegment(line, seg); err != nil {
		return false, err
	}
	if t.redundant(line, seg) {
		return false, nil
	}
	t.insert(line, seg)
	return true, nil
}

// checkGenerated bounds a 0-based generated position. Lines are stored
// densely, so the line count is capped at MaxLines.
func checkGenerated(line, column int) error {
	if line < 0 || column < 0 {
		return newError(CodeIndexOutOfRange, -1, "invalid generated position %d:%d", line+1, column)
	}
	if line >= MaxLines {
		return newError(CodeIndexOutOfRange, -1, "generated line %d exceeds the limit of %d lines", line+1, MaxLines)
	}
	return nil
}

func (t *Table) checkSegment(line int, seg Segment) error {
	if err := checkGenerated(line, seg.GenColumn); err != nil {
		return err
	}
	if !seg.HasSource() {
		return nil
	}
	if seg.SourceIndex >= len(t.sources) {
		return newError(CodeIndexOutOfRange, -1, "source index %d out of range (%d sources)", seg.SourceIndex, len(t.sources))
	}
	if seg.OrigLine < 0 || seg.OrigColumn < 0 {
		return newError(CodeIndexOutOfRange, -1, "invalid original position %d:%d", seg.OrigLine, seg.OrigColumn)
	}
	if seg.NameIndex >= len(t.names) {
		return newError(CodeIndexOutOfRange, -1, "name index %d out of range (%d names)", seg.NameIndex, len(t.names))
	}
	return nil
}

// AddMappingAtOffset records a mapping whose original position is a byte
// offset into the registered content of source.
func (t *Table) AddMappingAtOffset(generated Position, source string, offset int, name string) error {
	idx, ok := t.sourceIndex[source]
	if !ok || t.sourcesContent[idx] == nil {
		return newError(CodeMissingSource, -1, "no content registered for source %q", source)
	}
	li, ok := t.lineIndexes[idx]
	if !ok {
		li = NewLineIndex(*t.sourcesContent[idx])
		t.lineIndexes[idx] = li
	}
	line, col := li.Locate(offset)
	return t.AddMapping(Mapping{
		Generated: generated,
		Source:    source,
		Original:  &Position{Line: line + 1, Column: col},
		Name:      name,
	})
}

func (t *Table) ensureLine(line int) {
	for len(t.lines) <= line {
		t.lines = append(t.lines, nil)
	}
}

func (t *Table) insert(line int, seg Segment) {
	t.ensureLine(line)
	segs := t.lines[line]
	if n := len(segs); n > 0 && seg.GenColumn < segs[n-1].GenColumn {
		t.unsorted[line] = true
	}
	t.lines[line] = append(segs, seg)
}

// redundant implements the MaybeAddMapping rule.
func (t *Table) redundant(line int, seg Segment) bool {
	if line >= len(t.lines) {
		return !seg.HasSource()
	}
	t.sortLine(line)
	segs := t.lines[line]
	// Position after all segments with a column <= seg's.
	i := sort.Search(len(segs), func(i int) bool {
		return segs[i].GenColumn > seg.GenColumn
	})
	if i == 0 {
		return redundantAfter(nil, seg)
	}
	return redundantAfter(&segs[i-1], seg)
}

// redundantAfter reports whether seg adds nothing when it follows prev on
// the same line. A nil prev means seg starts the line.
func redundantAfter(prev *Segment, seg Segment) bool {
	if prev == nil {
		return !seg.HasSource()
	}
	if !seg.HasSource() {
		return !prev.HasSource()
	}
	if !prev.HasSource() {
		return false
	}
	return prev.SourceIndex == seg.SourceIndex &&
		prev.OrigLine == seg.OrigLine &&
		prev.OrigColumn == seg.OrigColumn &&
		prev.NameIndex == seg.NameIndex
}

// Simplify removes recorded segments that add nothing over their
// predecessor, by the MaybeAddMapping rule, and returns how many it removed.
func (t *Table) Simplify() int {
	removed := 0
	for i, segs := range t.Lines() {
		kept := segs[:0]
		for _, seg := range segs {
			var prev *Segment
			if len(kept) > 0 {
				prev = &kept[len(kept)-1]
			}
			if redundantAfter(prev, seg) {
				removed++
				continue
			}
			kept = append(kept, seg)
		}
		t.lines[i] = kept
	}
	return removed
}

func (t *Table) sortLine(line int) {
	if !t.unsorted[line] {
		return
	}
	segs := t.lines[line]
	sort.SliceStable(segs, func(i, j int) bool {
		return segs[i].GenColumn < segs[j].GenColumn
	})
	delete(t.unsorted, line)
}

// normalize sorts every line that received out-of-order columns. Sorting is
// stable, so equal columns keep insertion order.
func (t *Table) normalize() {
	for line := range t.unsorted {
		t.sortLine(line)
	}
}

// SetSourceContent sets the content of a registered source. Unknown sources
// are ignored.
func (t *Table) SetSourceContent(source, content string) {
	idx, ok := t.sourceIndex[source]
	if !ok {
		return
	}
	t.setContent(idx, content)
}

func (t *Table) setContent(idx int, content string) {
	t.sourcesContent[idx] = &content
	delete(t.lineIndexes, idx)
}

// SetIgnore adds or removes a registered source from the ignore list.
// Unknown sources are ignored.
func (t *Table) SetIgnore(source string, ignore bool) {
	idx, ok := t.sourceIndex[source]
	if !ok {
		return
	}
	if ignore {
		t.ignored[idx] = true
	} else {
		delete(t.ignored, idx)
	}
}

// IsIgnored reports whether source is on the ignore list.
func (t *Table) IsIgnored(source string) bool {
	idx, ok := t.sourceIndex[source]
	return ok && t.ignored[idx]
}

// SourceContent returns the content of source, if known and set.
func (t *Table) SourceContent(source string) (string, bool) {
	idx, ok := t.sourceIndex[source]
	if !ok || t.sourcesContent[idx] == nil {
		return "", false
	}
	return *t.sourcesContent[idx], true
}

// Sources returns the registered sources in index order.
func (t *Table) Sources() []string {
	return append([]string(nil), t.sources...)
}

// SourcesContent returns the contents parallel to Sources; nil entries have
// no content.
func (t *Table) SourcesContent() []*string {
	return append([]*string(nil), t.sourcesContent...)
}

// Names returns the registered names in index order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// IgnoreList returns the ignored source indices in ascending order.
func (t *Table) IgnoreList() []int {
	list := make([]int, 0, len(t.ignored))
	for idx := range t.ignored {
		list = append(list, idx)
	}
	sort.Ints(list)
	return list
}

// LineCount returns the number of generated lines holding or preceding
// segments.
func (t *Table) LineCount() int {
	return len(t.lines)
}

// Lines returns the segments per 0-based generated line, each sorted by
// generated column. The result shares storage with the table and must not
// be modified.
func (t *Table) Lines() [][]Segment {
	t.normalize()
	return t.lines
}

// SegmentCount returns the total number of segments.
func (t *Table) SegmentCount() int {
	n := 0
	for _, line := range t.lines {
		n += len(line)
	}
	return n
}

// encodeMappings encodes all lines, applying the line coverage workaround
// when enabled.
func (t *Table) encodeMappings() string {
	lines := t.Lines()
	if !t.opts.CoverLinesWithoutMappings {
		return EncodeMappings(lines)
	}

	lastMapped := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			lastMapped = i
			break
		}
	}

	covered := make([][]Segment, len(lines))
	var last *Segment
	for i, line := range lines {
		covered[i] = line
		if len(line) == 0 && last != nil && i < lastMapped {
			covered[i] = []Segment{SourceSegment(0, last.SourceIndex, last.OrigLine, last.OrigColumn)}
			continue
		}
		for j := range line {
			if line[j].HasSource() {
				last = &line[j]
			}
		}
	}
	return EncodeMappings(covered)
}
