// Package validator checks source maps for structural faults and suspicious
// mappings.
//
// Unlike the decoders in sourcemap and tracemap, which stop at the first
// fault, the validator keeps going and reports everything it can find as
// diagnostics. Sectioned maps are checked section by section with
// generated positions shifted by the section offsets.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/HugoDaniel/srcmap/internal/diagnostic"
	"github.com/HugoDaniel/srcmap/internal/sourcemap"
)

// Options controls validation behavior.
type Options struct {
	// File names the map in formatted diagnostics.
	File string
	// Filter disables or re-levels rules.
	Filter *diagnostic.Filter
	// Limit caps the diagnostics kept per rule; 0 keeps all.
	Limit int
}

// Validate checks an encoded or sectioned map.
func Validate(data []byte, opts Options) *diagnostic.List {
	list := diagnostic.NewList(opts.File)
	list.SetFilter(opts.Filter)
	list.SetLimit(opts.Limit)

	v := &validator{diags: list}
	v.validate(data, offset{}, "")
	return list
}

// offset is the 0-based generated position a (section) map starts at.
type offset struct {
	line, column int
}

type rawMap struct {
	Version           *int            `json:"version"`
	Sources           []string        `json:"sources"`
	SourcesContent    []*string       `json:"sourcesContent"`
	Names             []string        `json:"names"`
	Mappings          *string         `json:"mappings"`
	IgnoreList        []int           `json:"ignoreList"`
	XGoogleIgnoreList []int           `json:"x_google_ignoreList"`
	Sections          json.RawMessage `json:"sections"`
}

type rawSection struct {
	Offset *struct {
		Line   int `json:"line"`
		Column int `json:"column"`
	} `json:"offset"`
	URL string          `json:"url"`
	Map json.RawMessage `json:"map"`
}

type validator struct {
	diags *diagnostic.List
}

func (v *validator) validate(data []byte, base offset, prefix string) {
	var m rawMap
	if err := json.Unmarshal(data, &m); err != nil {
		v.diags.Report(diagnostic.CodeInvalidJSON, nil, "%sinvalid JSON: %v", prefix, err)
		return
	}
	if m.Version == nil {
		v.diags.Report(diagnostic.CodeInvalidJSON, nil, "%smissing version", prefix)
		return
	}
	if *m.Version != 3 {
		v.diags.Report(diagnostic.CodeInvalidJSON, nil, "%sunsupported version %d", prefix, *m.Version)
		return
	}

	if m.Sections != nil {
		if m.Mappings != nil {
			v.diags.Report(diagnostic.CodeMalformedSections, nil, "%smap has both sections and mappings", prefix)
		}
		v.validateSections(m.Sections, base, prefix)
		return
	}
	v.validateFlat(&m, base, prefix)
}

func (v *validator) validateSections(data json.RawMessage, base offset, prefix string) {
	var sections []rawSection
	if err := json.Unmarshal(data, &sections); err != nil {
		v.diags.Report(diagnostic.CodeMalformedSections, nil, "%ssections: %v", prefix, err)
		return
	}

	prev := offset{line: -1}
	for i, sec := range sections {
		if sec.Offset == nil {
			v.diags.Report(diagnostic.CodeMalformedSections, nil, "%ssection %d has no offset", prefix, i)
			continue
		}
		off := offset{line: sec.Offset.Line, column: sec.Offset.Column}
		if off.line < 0 || off.column < 0 {
			v.diags.Report(diagnostic.CodeMalformedSections, nil, "%ssection %d has negative offset %d:%d",
				prefix, i, off.line, off.column)
			continue
		}
		if off.line < prev.line || (off.line == prev.line && off.column < prev.column) {
			v.diags.Report(diagnostic.CodeMalformedSections, nil, "%ssection %d at %d:%d precedes the previous section at %d:%d",
				prefix, i, off.line, off.column, prev.line, prev.column)
		}
		prev = off

		if sec.Map == nil || string(sec.Map) == "null" {
			if sec.URL != "" {
				v.diags.Report(diagnostic.CodeMalformedSections, nil, "%ssection %d references %q; url sections are not supported",
					prefix, i, sec.URL)
			} else {
				v.diags.Report(diagnostic.CodeMalformedSections, nil, "%ssection %d has no map", prefix, i)
			}
			continue
		}

		child := offset{line: base.line + off.line, column: off.column}
		if off.line == 0 {
			child.column += base.column
		}
		v.validate(sec.Map, child, fmt.Sprintf("%ssection %d: ", prefix, i))
	}
}

func (v *validator) validateFlat(m *rawMap, base offset, prefix string) {
	sources := m.Sources

	if len(m.SourcesContent) > 0 && len(m.SourcesContent) != len(sources) {
		v.diags.Report(diagnostic.CodeContentLength, nil, "%ssourcesContent has %d entries for %d sources",
			prefix, len(m.SourcesContent), len(sources))
	}

	seen := make(map[string]int, len(sources))
	for i, s := range sources {
		if first, ok := seen[s]; ok {
			v.diags.Report(diagnostic.CodeDuplicateSource, nil, "%ssource %q listed at %d and %d", prefix, s, first, i)
			continue
		}
		seen[s] = i
	}

	ignore := m.IgnoreList
	if ignore == nil {
		ignore = m.XGoogleIgnoreList
	}
	for _, idx := range ignore {
		if idx < 0 || idx >= len(sources) {
			v.diags.Report(diagnostic.CodeIgnoreIndex, nil, "%signoreList index %d out of range (%d sources)",
				prefix, idx, len(sources))
		}
	}

	contents := make([]*sourcemap.LineIndex, len(sources))
	for i := range sources {
		if i < len(m.SourcesContent) && m.SourcesContent[i] != nil {
			contents[i] = sourcemap.NewLineIndex(*m.SourcesContent[i])
			v.diags.SetSourceContent(sources[i], *m.SourcesContent[i])
		}
	}

	if m.Mappings == nil {
		return
	}
	lines, err := sourcemap.DecodeMappings(*m.Mappings)
	if err != nil {
		msg, off := err.Error(), -1
		var se *sourcemap.Error
		if errors.As(err, &se) {
			msg, off = se.Message, se.Offset
		}
		v.diags.ReportOffset(diagnostic.CodeBadMappings, off, "%s%s", prefix, msg)
		return
	}

	for line, segs := range lines {
		prevCol := -1
		for _, seg := range segs {
			gen := &sourcemap.Position{Line: base.line + line + 1, Column: seg.GenColumn}
			if line == 0 {
				gen.Column += base.column
			}

			if seg.GenColumn < prevCol {
				v.diags.Report(diagnostic.CodeUnsortedColumns, gen, "%sgenerated column %d follows column %d",
					prefix, seg.GenColumn, prevCol)
			}
			prevCol = seg.GenColumn

			if !seg.HasSource() {
				continue
			}
			if seg.SourceIndex >= len(sources) {
				v.diags.Report(diagnostic.CodeSourceIndex, gen, "%ssource index %d out of range (%d sources)",
					prefix, seg.SourceIndex, len(sources))
				continue
			}
			if seg.HasName() && seg.NameIndex >= len(m.Names) {
				v.diags.Report(diagnostic.CodeNameIndex, gen, "%sname index %d out of range (%d names)",
					prefix, seg.NameIndex, len(m.Names))
			}

			idx := contents[seg.SourceIndex]
			if idx == nil {
				continue
			}
			source := sources[seg.SourceIndex]
			orig := sourcemap.Position{Line: seg.OrigLine + 1, Column: seg.OrigColumn}
			if seg.OrigLine >= idx.LineCount() {
				v.diags.ReportOriginal(diagnostic.CodeOriginalLine, gen, source, orig,
					"%soriginal line %d beyond the %d lines of %s", prefix, orig.Line, idx.LineCount(), source)
			} else if n := idx.LineLength(seg.OrigLine); seg.OrigColumn > n {
				v.diags.ReportOriginal(diagnostic.CodeOriginalColumn, gen, source, orig,
					"%soriginal column %d beyond the length %d of %s:%d", prefix, orig.Column, n, source, orig.Line)
			}
		}
	}
}
