// Package api provides the public API for the source map toolkit.
//
// Every function takes and returns plain strings and structs so it can be
// exposed unchanged through the WebAssembly and C bindings. Failures are
// reported in the Errors field of the result instead of as Go errors.
// For CLI usage, see cmd/srcmap.
package api

import (
	"encoding/json"
	"path"
	"strconv"

	"github.com/HugoDaniel/srcmap/internal/diagnostic"
	"github.com/HugoDaniel/srcmap/internal/remap"
	"github.com/HugoDaniel/srcmap/internal/sourcemap"
	"github.com/HugoDaniel/srcmap/internal/tracemap"
	"github.com/HugoDaniel/srcmap/internal/validator"
)

// Position is a location in a file. Line is 1-based, Column is a 0-based
// UTF-16 offset.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ----------------------------------------------------------------------------
// Encoding
// ----------------------------------------------------------------------------

// MapResult holds a source map produced by Encode, Flatten or Compose.
type MapResult struct {
	// Map is the encoded source map as JSON.
	Map string `json:"map,omitempty"`

	// DataURI is the map as a data URI for inline embedding.
	DataURI string `json:"dataURI,omitempty"`

	// Errors contains any errors encountered. Map is empty when set.
	Errors []string `json:"errors,omitempty"`
}

// Encode converts a decoded map (structured mappings) to an encoded map.
func Encode(decodedJSON string) MapResult {
	t, err := sourcemap.ParseDecoded([]byte(decodedJSON))
	if err != nil {
		return MapResult{Errors: []string{err.Error()}}
	}
	return mapResult(t.ToEncodedMap())
}

// DecodeResult holds the structured form of a map.
type DecodeResult struct {
	// Map is the decoded source map as JSON.
	Map string `json:"map,omitempty"`

	// Errors contains any errors encountered.
	Errors []string `json:"errors,omitempty"`
}

// Decode converts an encoded map, flat or sectioned, to its decoded form.
func Decode(mapJSON string) DecodeResult {
	m, err := tracemap.Parse([]byte(mapJSON))
	if err != nil {
		return DecodeResult{Errors: []string{err.Error()}}
	}
	data, err := json.Marshal(m.Decoded())
	if err != nil {
		return DecodeResult{Errors: []string{err.Error()}}
	}
	return DecodeResult{Map: string(data)}
}

// Flatten turns a sectioned map into a flat one. Flat maps are returned
// re-encoded.
func Flatten(mapJSON string) MapResult {
	m, err := tracemap.Parse([]byte(mapJSON))
	if err != nil {
		return MapResult{Errors: []string{err.Error()}}
	}
	return mapResult(m.Encoded())
}

// Compose combines the map of the last transform with the maps of earlier
// transforms into one map pointing at the earliest sources.
//
// When every inner map names its generated file, an outer source is traced
// through the inner map whose file matches it. Otherwise the maps are
// treated as a linear chain: inners[0] maps the sources of outer,
// inners[1] the sources of inners[0], and so on.
func Compose(outer string, inners []string) MapResult {
	out, err := tracemap.Parse([]byte(outer))
	if err != nil {
		return MapResult{Errors: []string{"outer: " + err.Error()}}
	}

	maps := make([]*tracemap.Map, len(inners))
	byFile := make(map[string]*tracemap.Map, len(inners))
	for i, data := range inners {
		m, err := tracemap.Parse([]byte(data))
		if err != nil {
			return MapResult{Errors: []string{"inner " + strconv.Itoa(i) + ": " + err.Error()}}
		}
		maps[i] = m
		if m.File() != "" {
			byFile[m.File()] = m
		}
	}

	var t *sourcemap.Table
	if len(inners) > 0 && len(byFile) == len(inners) {
		t, err = remap.Compose(out, func(source string) (*tracemap.Map, bool) {
			if m, ok := byFile[source]; ok {
				return m, true
			}
			m, ok := byFile[path.Base(source)]
			return m, ok
		})
	} else {
		t, err = remap.Chain(append([]*tracemap.Map{out}, maps...)...)
	}
	if err != nil {
		return MapResult{Errors: []string{err.Error()}}
	}
	return mapResult(t.ToEncodedMap())
}

func mapResult(enc *sourcemap.EncodedMap) MapResult {
	return MapResult{Map: enc.ToJSON(), DataURI: enc.ToDataURI()}
}

// ----------------------------------------------------------------------------
// Queries
// ----------------------------------------------------------------------------

// LookupResult is the original position of a generated position.
type LookupResult struct {
	// Found is false when nothing maps to the position.
	Found  bool   `json:"found"`
	Source string `json:"source,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Name   string `json:"name,omitempty"`

	// Errors contains any errors encountered.
	Errors []string `json:"errors,omitempty"`
}

// Lookup finds the original position of a generated position, taking the
// closest mapping at or before the column.
func Lookup(mapJSON string, line, column int) LookupResult {
	return LookupWithBias(mapJSON, line, column, "glb")
}

// LookupWithBias is Lookup with an explicit bias: "glb" picks the mapping at
// or before the column, "lub" the mapping at or after it.
func LookupWithBias(mapJSON string, line, column int, bias string) LookupResult {
	b, ok := tracemap.ParseBias(bias)
	if !ok {
		return LookupResult{Errors: []string{"unknown bias " + bias}}
	}
	m, err := tracemap.Parse([]byte(mapJSON))
	if err != nil {
		return LookupResult{Errors: []string{err.Error()}}
	}
	op := m.OriginalPositionForBias(sourcemap.Position{Line: line, Column: column}, b)
	if op == nil {
		return LookupResult{}
	}
	return LookupResult{Found: true, Source: op.Source, Line: op.Line, Column: op.Column, Name: op.Name}
}

// ReverseResult holds the generated positions of an original position.
type ReverseResult struct {
	// Found is false when no mapping matches.
	Found bool `json:"found"`

	// Position is the first exact match, by generated line then column.
	Position *Position `json:"position,omitempty"`

	// All lists every generated position on the original line at the
	// requested column, or at the next mapped column after it.
	All []Position `json:"all,omitempty"`

	// Errors contains any errors encountered.
	Errors []string `json:"errors,omitempty"`
}

// Reverse finds the generated positions of an original position. The source
// may be given as written in the map or joined with its sourceRoot.
func Reverse(mapJSON, source string, line, column int) ReverseResult {
	m, err := tracemap.Parse([]byte(mapJSON))
	if err != nil {
		return ReverseResult{Errors: []string{err.Error()}}
	}

	orig := tracemap.OriginalPosition{Source: source, Line: line, Column: column}
	var res ReverseResult
	if p := m.GeneratedPositionFor(orig); p != nil {
		res.Position = &Position{Line: p.Line, Column: p.Column}
	}
	for _, p := range m.AllGeneratedPositionsFor(orig) {
		res.All = append(res.All, Position{Line: p.Line, Column: p.Column})
	}
	res.Found = res.Position != nil || len(res.All) > 0
	return res
}

// ----------------------------------------------------------------------------
// Validation
// ----------------------------------------------------------------------------

// Diagnostic is one validation finding.
type Diagnostic struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`

	// Generated is the generated position the finding refers to, if any.
	Generated *Position `json:"generated,omitempty"`

	// Offset is the byte offset into the mappings string, -1 if not known.
	Offset int `json:"offset"`
}

// ValidateResult holds the findings of Validate.
type ValidateResult struct {
	// Valid is true when no error-level diagnostic was found.
	Valid bool `json:"valid"`

	Diagnostics []Diagnostic `json:"diagnostics"`

	// Errors contains the messages of the error-level diagnostics.
	Errors []string `json:"errors,omitempty"`
}

// Validate checks a map and reports every structural fault found.
func Validate(mapJSON string) ValidateResult {
	list := validator.Validate([]byte(mapJSON), validator.Options{})
	return convertList(list)
}

func convertList(list *diagnostic.List) ValidateResult {
	res := ValidateResult{
		Valid:       !list.HasErrors(),
		Diagnostics: make([]Diagnostic, 0, list.Count()),
	}
	for _, d := range list.Diagnostics() {
		out := Diagnostic{
			Severity: d.Severity.String(),
			Code:     string(d.Code),
			Message:  d.Message,
			Offset:   d.Offset,
		}
		if d.Generated != nil {
			out.Generated = &Position{Line: d.Generated.Line, Column: d.Generated.Column}
		}
		res.Diagnostics = append(res.Diagnostics, out)
		if d.Severity == diagnostic.Error {
			res.Errors = append(res.Errors, d.Error())
		}
	}
	return res
}

// ----------------------------------------------------------------------------
// VLQ
// ----------------------------------------------------------------------------

// VLQResult holds the output of the VLQ helpers.
type VLQResult struct {
	Encoded string `json:"encoded,omitempty"`
	Values  []int  `json:"values,omitempty"`

	// Errors contains any errors encountered.
	Errors []string `json:"errors,omitempty"`
}

// EncodeVLQ encodes integers as a Base64 VLQ string. Values outside the
// 32-bit VLQ range are reported in Errors and nothing is encoded.
func EncodeVLQ(values []int) VLQResult {
	for _, v := range values {
		if err := sourcemap.CheckVLQ(v); err != nil {
			return VLQResult{Errors: []string{err.Error()}}
		}
	}
	return VLQResult{Encoded: sourcemap.EncodeVLQSequence(values), Values: values}
}

// DecodeVLQ decodes every value of a Base64 VLQ string.
func DecodeVLQ(s string) VLQResult {
	var values []int
	for i := 0; i < len(s); {
		v, next, err := sourcemap.DecodeVLQ(s, i)
		if err != nil {
			return VLQResult{Errors: []string{err.Error()}}
		}
		values = append(values, v)
		i = next
	}
	return VLQResult{Encoded: s, Values: values}
}
