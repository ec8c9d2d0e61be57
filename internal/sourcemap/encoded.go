package sourcemap

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// EncodedMap is a Source Map v3 document with VLQ-encoded mappings.
type EncodedMap struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
	IgnoreList     []int     `json:"ignoreList,omitempty"`
}

// UnmarshalJSON accepts the legacy x_google_ignoreList field as an alias
// for ignoreList.
func (m *EncodedMap) UnmarshalJSON(data []byte) error {
	type plain EncodedMap
	var aux struct {
		plain
		XGoogleIgnoreList []int `json:"x_google_ignoreList"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = EncodedMap(aux.plain)
	if m.IgnoreList == nil && aux.XGoogleIgnoreList != nil {
		m.IgnoreList = aux.XGoogleIgnoreList
	}
	return nil
}

// DecodedSegment is a mapping entry with source and name resolved to strings.
type DecodedSegment struct {
	GeneratedColumn int       `json:"generatedColumn"`
	Source          string    `json:"source,omitempty"`
	Original        *Position `json:"original,omitempty"`
	Name            string    `json:"name,omitempty"`
}

// DecodedMap is a Source Map v3 document with structured mappings, one
// slice per generated line.
type DecodedMap struct {
	Version        int                `json:"version"`
	File           string             `json:"file,omitempty"`
	SourceRoot     string             `json:"sourceRoot,omitempty"`
	Sources        []string           `json:"sources"`
	SourcesContent []*string          `json:"sourcesContent,omitempty"`
	Names          []string           `json:"names"`
	Mappings       [][]DecodedSegment `json:"mappings"`
	IgnoreList     []int              `json:"ignoreList,omitempty"`
}

// ToEncodedMap serializes the table.
func (t *Table) ToEncodedMap() *EncodedMap {
	return &EncodedMap{
		Version:        3,
		File:           t.opts.File,
		SourceRoot:     t.opts.SourceRoot,
		Sources:        nonNil(t.Sources()),
		SourcesContent: t.contentOrNil(),
		Names:          nonNil(t.Names()),
		Mappings:       t.encodeMappings(),
		IgnoreList:     t.ignoreListOrNil(),
	}
}

// ToDecodedMap serializes the table with structured mappings.
func (t *Table) ToDecodedMap() *DecodedMap {
	lines := t.Lines()
	mappings := make([][]DecodedSegment, len(lines))
	for i, line := range lines {
		mappings[i] = make([]DecodedSegment, len(line))
		for j, seg := range line {
			mappings[i][j] = t.resolve(seg)
		}
	}
	return &DecodedMap{
		Version:        3,
		File:           t.opts.File,
		SourceRoot:     t.opts.SourceRoot,
		Sources:        nonNil(t.Sources()),
		SourcesContent: t.contentOrNil(),
		Names:          nonNil(t.Names()),
		Mappings:       mappings,
		IgnoreList:     t.ignoreListOrNil(),
	}
}

func (t *Table) resolve(seg Segment) DecodedSegment {
	d := DecodedSegment{GeneratedColumn: seg.GenColumn}
	if !seg.HasSource() {
		return d
	}
	d.Source = t.sources[seg.SourceIndex]
	d.Original = &Position{Line: seg.OrigLine + 1, Column: seg.OrigColumn}
	if seg.HasName() {
		d.Name = t.names[seg.NameIndex]
	}
	return d
}

// contentOrNil returns nil when no source has content, so the field is
// omitted from JSON.
func (t *Table) contentOrNil() []*string {
	for _, c := range t.sourcesContent {
		if c != nil {
			return t.SourcesContent()
		}
	}
	return nil
}

func (t *Table) ignoreListOrNil() []int {
	if len(t.ignored) == 0 {
		return nil
	}
	return t.IgnoreList()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// FromEncoded builds a table from an encoded map. Source and name order is
// preserved as is, duplicates included, so encoded indices stay valid.
func FromEncoded(m *EncodedMap) (*Table, error) {
	if m.Version != 3 {
		return nil, newError(CodeMalformedMapping, -1, "unsupported source map version %d", m.Version)
	}
	t, err := NewTable(Options{File: m.File, SourceRoot: m.SourceRoot})
	if err != nil {
		return nil, err
	}

	if len(m.SourcesContent) > len(m.Sources) {
		return nil, newError(CodeIndexOutOfRange, -1,
			"sourcesContent has %d entries for %d sources", len(m.SourcesContent), len(m.Sources))
	}
	for i, src := range m.Sources {
		var content *string
		if i < len(m.SourcesContent) {
			content = m.SourcesContent[i]
		}
		t.appendSource(src, content)
	}
	for _, name := range m.Names {
		t.appendName(name)
	}
	for _, idx := range m.IgnoreList {
		if idx < 0 || idx >= len(t.sources) {
			return nil, newError(CodeIndexOutOfRange, -1, "ignoreList index %d out of range (%d sources)", idx, len(t.sources))
		}
		t.ignored[idx] = true
	}

	lines, err := DecodeMappings(m.Mappings)
	if err != nil {
		return nil, err
	}
	for i, line := range lines {
		for _, seg := range line {
			if err := t.AddSegment(i, seg); err != nil {
				return nil, err
			}
		}
		t.ensureLine(i)
	}
	return t, nil
}

// FromDecoded builds a table from a decoded map.
func FromDecoded(d *DecodedMap) (*Table, error) {
	if d.Version != 0 && d.Version != 3 {
		return nil, newError(CodeMalformedMapping, -1, "unsupported source map version %d", d.Version)
	}
	t, err := NewTable(Options{File: d.File, SourceRoot: d.SourceRoot})
	if err != nil {
		return nil, err
	}
	for i, src := range d.Sources {
		var content *string
		if i < len(d.SourcesContent) {
			content = d.SourcesContent[i]
		}
		t.AddSource(src, content)
	}
	for _, name := range d.Names {
		t.internName(name)
	}
	for i, line := range d.Mappings {
		for _, seg := range line {
			if err := t.addDecoded(i, seg); err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
		}
		t.ensureLine(i)
	}
	for _, idx := range d.IgnoreList {
		if idx < 0 || idx >= len(d.Sources) {
			return nil, newError(CodeIndexOutOfRange, -1, "ignoreList index %d out of range (%d sources)", idx, len(d.Sources))
		}
		t.SetIgnore(d.Sources[idx], true)
	}
	return t, nil
}

// addDecoded records a decoded segment on a 0-based line. The original
// position, not the source string, marks a segment as sourced: "" is a
// valid source when the map lists it.
func (t *Table) addDecoded(line int, d DecodedSegment) error {
	if d.Original == nil {
		return t.AddMapping(Mapping{
			Generated: Position{Line: line + 1, Column: d.GeneratedColumn},
			Source:    d.Source,
			Name:      d.Name,
		})
	}
	src, ok := t.sourceIndex[d.Source]
	if !ok {
		if d.Source == "" {
			return newError(CodeMissingSource, -1,
				"original position %d:%d given without a source", d.Original.Line, d.Original.Column)
		}
		src = t.internSource(d.Source)
	}
	seg := SourceSegment(d.GeneratedColumn, src, d.Original.Line-1, d.Original.Column)
	if d.Name != "" {
		seg = NamedSegment(d.GeneratedColumn, src, d.Original.Line-1, d.Original.Column, t.internName(d.Name))
	}
	return t.AddSegment(line, seg)
}

// IsSectioned reports whether data is a sectioned (index) map.
func IsSectioned(data []byte) bool {
	var probe struct {
		Sections json.RawMessage `json:"sections"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return len(probe.Sections) > 0 && !bytes.Equal(probe.Sections, []byte("null"))
}

// Parse decodes a JSON source map into a table. Sectioned maps are rejected;
// flatten them with the tracemap package.
func Parse(data []byte) (*Table, error) {
	if IsSectioned(data) {
		return nil, newError(CodeMalformedMapping, -1, "sectioned source map cannot be loaded as a single table")
	}
	var m EncodedMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &Error{Code: CodeMalformedMapping, Message: "invalid source map JSON: " + err.Error(), Offset: -1}
	}
	return FromEncoded(&m)
}

// ParseDecoded decodes a JSON decoded map into a table.
func ParseDecoded(data []byte) (*Table, error) {
	var d DecodedMap
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, &Error{Code: CodeMalformedMapping, Message: "invalid decoded map JSON: " + err.Error(), Offset: -1}
	}
	return FromDecoded(&d)
}

// ToJSON returns the source map as a JSON string.
func (m *EncodedMap) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

// ToDataURI returns the source map as a data URI for inline embedding.
func (m *EncodedMap) ToDataURI() string {
	encoded := base64.StdEncoding.EncodeToString([]byte(m.ToJSON()))
	return "data:application/json;charset=utf-8;base64," + encoded
}

// ToComment returns a sourceMappingURL comment for appending to generated
// code, either inline or pointing at File + ".map".
func (m *EncodedMap) ToComment(inline bool) string {
	if inline {
		return "//# sourceMappingURL=" + m.ToDataURI()
	}
	return "//# sourceMappingURL=" + m.File + ".map"
}
