package sourcemap

import "strings"

// Segment is one decoded mapping entry. All values are absolute and 0-based.
// A segment without a source has SourceIndex -1 and is a 1-field segment;
// a segment without a name has NameIndex -1.
type Segment struct {
	GenColumn   int
	SourceIndex int
	OrigLine    int
	OrigColumn  int
	NameIndex   int
}

// GeneratedSegment returns a 1-field segment.
func GeneratedSegment(genColumn int) Segment {
	return Segment{GenColumn: genColumn, SourceIndex: -1, NameIndex: -1}
}

// SourceSegment returns a 4-field segment.
func SourceSegment(genColumn, sourceIndex, origLine, origColumn int) Segment {
	return Segment{
		GenColumn:   genColumn,
		SourceIndex: sourceIndex,
		OrigLine:    origLine,
		OrigColumn:  origColumn,
		NameIndex:   -1,
	}
}

// NamedSegment returns a 5-field segment.
func NamedSegment(genColumn, sourceIndex, origLine, origColumn, nameIndex int) Segment {
	return Segment{
		GenColumn:   genColumn,
		SourceIndex: sourceIndex,
		OrigLine:    origLine,
		OrigColumn:  origColumn,
		NameIndex:   nameIndex,
	}
}

// HasSource reports whether the segment points into an original source.
func (s Segment) HasSource() bool {
	return s.SourceIndex >= 0
}

// HasName reports whether the segment carries a name.
func (s Segment) HasName() bool {
	return s.SourceIndex >= 0 && s.NameIndex >= 0
}

// Len returns the number of encoded fields: 1, 4 or 5.
func (s Segment) Len() int {
	switch {
	case !s.HasSource():
		return 1
	case !s.HasName():
		return 4
	default:
		return 5
	}
}

// Fields returns the segment in its tuple form.
func (s Segment) Fields() []int {
	switch s.Len() {
	case 1:
		return []int{s.GenColumn}
	case 4:
		return []int{s.GenColumn, s.SourceIndex, s.OrigLine, s.OrigColumn}
	default:
		return []int{s.GenColumn, s.SourceIndex, s.OrigLine, s.OrigColumn, s.NameIndex}
	}
}

// State is the running delta state of the segment codec.
//
// GenColumn restarts at 0 on every line. The other four fields run across the
// whole map: a line's first segment is a delta against the last segment of the
// previous non-empty line.
type State struct {
	GenColumn   int
	SourceIndex int
	OrigLine    int
	OrigColumn  int
	NameIndex   int
}

// EncodeLine encodes one line of segments, advancing state.
func EncodeLine(segments []Segment, state *State) string {
	return string(appendLine(nil, segments, state))
}

func appendLine(dst []byte, segments []Segment, state *State) []byte {
	state.GenColumn = 0
	for i, seg := range segments {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendSegment(dst, seg, state)
	}
	return dst
}

func appendSegment(dst []byte, seg Segment, state *State) []byte {
	// Field 1: Generated column (delta from previous on this line)
	dst = AppendVLQ(dst, seg.GenColumn-state.GenColumn)
	state.GenColumn = seg.GenColumn

	if !seg.HasSource() {
		return dst
	}

	// Fields 2-4: source index, original line, original column (map-wide deltas)
	dst = AppendVLQ(dst, seg.SourceIndex-state.SourceIndex)
	state.SourceIndex = seg.SourceIndex
	dst = AppendVLQ(dst, seg.OrigLine-state.OrigLine)
	state.OrigLine = seg.OrigLine
	dst = AppendVLQ(dst, seg.OrigColumn-state.OrigColumn)
	state.OrigColumn = seg.OrigColumn

	// Field 5: name index (map-wide delta, only if present)
	if seg.NameIndex >= 0 {
		dst = AppendVLQ(dst, seg.NameIndex-state.NameIndex)
		state.NameIndex = seg.NameIndex
	}
	return dst
}

// DecodeLine decodes one line of comma-separated segments, advancing state.
// Error offsets are relative to encoded.
func DecodeLine(encoded string, state *State) ([]Segment, error) {
	return decodeLine(encoded, 0, state, nil)
}

func decodeLine(s string, base int, state *State, dst []Segment) ([]Segment, error) {
	state.GenColumn = 0
	if s == "" {
		return dst, nil
	}

	pos := 0
	for {
		segStart := pos
		var fields [5]int
		n := 0
		for pos < len(s) && s[pos] != ',' {
			if n == len(fields) {
				return nil, newError(CodeMalformedMapping, base+segStart, "segment has more than 5 fields")
			}
			v, next, err := DecodeVLQ(s, pos)
			if err != nil {
				return nil, rebase(err, base)
			}
			fields[n] = v
			n++
			pos = next
		}

		switch n {
		case 0:
			return nil, newError(CodeMalformedMapping, base+segStart, "empty segment")
		case 1, 4, 5:
		default:
			return nil, newError(CodeMalformedMapping, base+segStart, "segment has %d fields, want 1, 4 or 5", n)
		}

		seg, err := applyDeltas(fields[:n], state)
		if err != nil {
			return nil, rebase(err, base+segStart)
		}
		dst = append(dst, seg)

		if pos == len(s) {
			return dst, nil
		}
		pos++ // ','
		if pos == len(s) {
			return nil, newError(CodeMalformedMapping, base+pos, "trailing comma")
		}
	}
}

func applyDeltas(fields []int, state *State) (Segment, error) {
	state.GenColumn += fields[0]
	if state.GenColumn < 0 {
		return Segment{}, newError(CodeMalformedMapping, 0, "negative generated column %d", state.GenColumn)
	}
	if len(fields) == 1 {
		return GeneratedSegment(state.GenColumn), nil
	}

	state.SourceIndex += fields[1]
	state.OrigLine += fields[2]
	state.OrigColumn += fields[3]
	if state.SourceIndex < 0 || state.OrigLine < 0 || state.OrigColumn < 0 {
		return Segment{}, newError(CodeMalformedMapping, 0, "negative source position (%d, %d, %d)",
			state.SourceIndex, state.OrigLine, state.OrigColumn)
	}
	if len(fields) == 4 {
		return SourceSegment(state.GenColumn, state.SourceIndex, state.OrigLine, state.OrigColumn), nil
	}

	state.NameIndex += fields[4]
	if state.NameIndex < 0 {
		return Segment{}, newError(CodeMalformedMapping, 0, "negative name index %d", state.NameIndex)
	}
	return NamedSegment(state.GenColumn, state.SourceIndex, state.OrigLine, state.OrigColumn, state.NameIndex), nil
}

// rebase shifts the offset of a codec error by base.
func rebase(err error, base int) error {
	if e, ok := err.(*Error); ok && e.Offset >= 0 {
		e.Offset += base
	}
	return err
}

// EncodeMappings encodes all lines into a mappings string.
func EncodeMappings(lines [][]Segment) string {
	var state State
	var buf []byte
	for i, line := range lines {
		if i > 0 {
			buf = append(buf, ';')
		}
		buf = appendLine(buf, line, &state)
	}
	return string(buf)
}

// DecodeMappings decodes a mappings string into lines of absolute segments.
// An empty string decodes to no lines.
func DecodeMappings(mappings string) ([][]Segment, error) {
	if mappings == "" {
		return nil, nil
	}

	lines := make([][]Segment, 0, strings.Count(mappings, ";")+1)
	var state State
	start := 0
	for {
		end := strings.IndexByte(mappings[start:], ';')
		if end < 0 {
			end = len(mappings)
		} else {
			end += start
		}

		line, err := decodeLine(mappings[start:end], start, &state, nil)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)

		if end == len(mappings) {
			return lines, nil
		}
		start = end + 1
	}
}
