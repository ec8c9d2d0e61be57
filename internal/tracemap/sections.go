package tracemap

import (
	"encoding/json"
	"fmt"

	"github.com/HugoDaniel/srcmap/internal/sourcemap"
)

// Offset is the 0-based generated position where a section starts.
type Offset struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (o Offset) less(p Offset) bool {
	return o.Line < p.Line || (o.Line == p.Line && o.Column < p.Column)
}

// Section is one part of a sectioned map.
type Section struct {
	Offset Offset
	Map    *Map
}

type sectionedJSON struct {
	Version  int           `json:"version"`
	File     string        `json:"file"`
	Sections []sectionJSON `json:"sections"`
}

type sectionJSON struct {
	Offset *Offset         `json:"offset"`
	URL    string          `json:"url"`
	Map    json.RawMessage `json:"map"`
}

func parseSectioned(data []byte) (*Map, error) {
	var doc sectionedJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, sourcemap.NewError(sourcemap.CodeMalformedMapping, "invalid sectioned map JSON: %v", err)
	}
	if doc.Version != 3 {
		return nil, sourcemap.NewError(sourcemap.CodeMalformedMapping, "unsupported source map version %d", doc.Version)
	}

	sections := make([]Section, len(doc.Sections))
	for i, s := range doc.Sections {
		if s.Offset == nil {
			return nil, sourcemap.NewError(sourcemap.CodeMalformedMapping, "section %d has no offset", i)
		}
		if len(s.Map) == 0 || string(s.Map) == "null" {
			if s.URL != "" {
				return nil, sourcemap.NewError(sourcemap.CodeMalformedMapping,
					"section %d references %q by url; only embedded maps are supported", i, s.URL)
			}
			return nil, sourcemap.NewError(sourcemap.CodeMalformedMapping, "section %d has no map", i)
		}
		child, err := Parse(s.Map)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		sections[i] = Section{Offset: *s.Offset, Map: child}
	}
	return FromSections(doc.File, sections)
}

// FromSections flattens sections into one Map. Each section's segments are
// shifted by its offset and clipped at the next section's offset. Sources
// are merged by their resolved names, so the result has no source root.
// Sections must be ordered by offset.
func FromSections(file string, sections []Section) (*Map, error) {
	for i, s := range sections {
		if s.Offset.Line < 0 || s.Offset.Column < 0 {
			return nil, sourcemap.NewError(sourcemap.CodeIndexOutOfRange,
				"section %d has negative offset %d:%d", i, s.Offset.Line, s.Offset.Column)
		}
		if s.Map == nil {
			return nil, sourcemap.NewError(sourcemap.CodeMalformedMapping, "section %d has no map", i)
		}
		if i > 0 && s.Offset.less(sections[i-1].Offset) {
			return nil, sourcemap.NewError(sourcemap.CodeMalformedMapping,
				"section %d at %d:%d starts before section %d at %d:%d",
				i, s.Offset.Line, s.Offset.Column, i-1, sections[i-1].Offset.Line, sections[i-1].Offset.Column)
		}
	}

	out, err := sourcemap.NewTable(sourcemap.Options{File: file})
	if err != nil {
		return nil, err
	}
	for i, s := range sections {
		stop := Offset{Line: -1}
		if i+1 < len(sections) {
			stop = sections[i+1].Offset
		}
		if err := addSection(out, s, stop); err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
	}
	return New(out), nil
}

// addSection copies one section into out. A stop line of -1 means the
// section runs to the end.
func addSection(out *sourcemap.Table, s Section, stop Offset) error {
	child := s.Map
	// Child source indices map to out indices. Sources are addressed by
	// index from here on, so an empty source name survives the copy.
	srcIdx := make([]int, len(child.resolved))
	for i, src := range child.resolved {
		srcIdx[i] = out.AddSource(src, nil)
		if c := child.contents[i]; c != nil {
			if _, ok := out.SourceContent(src); !ok {
				out.SetSourceContent(src, *c)
			}
		}
		if child.ignored[i] {
			out.SetIgnore(src, true)
		}
	}

	for j, segs := range child.lines {
		genLine := s.Offset.Line + j
		if stop.Line >= 0 && genLine > stop.Line {
			return nil
		}
		colOffset := 0
		if j == 0 {
			colOffset = s.Offset.Column
		}
		for _, seg := range segs {
			col := seg.GenColumn + colOffset
			if genLine == stop.Line && col >= stop.Column {
				break
			}
			seg.GenColumn = col
			if seg.HasSource() {
				seg.SourceIndex = srcIdx[seg.SourceIndex]
				if seg.HasName() {
					seg.NameIndex = out.AddName(child.names[seg.NameIndex])
				}
			}
			if err := out.AddSegment(genLine, seg); err != nil {
				return err
			}
		}
	}
	return nil
}
