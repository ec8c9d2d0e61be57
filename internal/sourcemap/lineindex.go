package sourcemap

import (
	"sort"
	"unicode/utf8"
)

// LineIndex converts between byte offsets and line/column positions of a
// text. Lines are 0-based. Columns are UTF-16 code units, as source maps
// require, unless a method says otherwise. "\n", "\r\n" and a lone "\r" all
// end a line.
type LineIndex struct {
	source     string
	lineStarts []int // byte offset of each line start
	lineEnds   []int // byte offset of each line end, terminator excluded
}

// NewLineIndex creates a LineIndex for the given source.
func NewLineIndex(source string) *LineIndex {
	idx := &LineIndex{
		source:     source,
		lineStarts: []int{0},
	}

	for i := 0; i < len(source); i++ {
		switch source[i] {
		case '\n':
			idx.lineEnds = append(idx.lineEnds, i)
			idx.lineStarts = append(idx.lineStarts, i+1)
		case '\r':
			idx.lineEnds = append(idx.lineEnds, i)
			if i+1 < len(source) && source[i+1] == '\n' {
				i++
			}
			idx.lineStarts = append(idx.lineStarts, i+1)
		}
	}
	idx.lineEnds = append(idx.lineEnds, len(source))

	return idx
}

// Source returns the indexed text.
func (idx *LineIndex) Source() string {
	return idx.source
}

// LineCount returns the number of lines. A trailing line break opens a
// final empty line.
func (idx *LineIndex) LineCount() int {
	return len(idx.lineStarts)
}

// Line returns the text of a 0-based line without its terminator, or "" if
// the line does not exist.
func (idx *LineIndex) Line(line int) string {
	if line < 0 || line >= len(idx.lineStarts) {
		return ""
	}
	return idx.source[idx.lineStarts[line]:idx.lineEnds[line]]
}

// LineLength returns the length of a 0-based line in UTF-16 code units, or
// -1 if the line does not exist.
func (idx *LineIndex) LineLength(line int) int {
	if line < 0 || line >= len(idx.lineStarts) {
		return -1
	}
	text := idx.Line(line)
	return utf8ToUTF16Column(text, len(text))
}

// lineFor finds the line containing a clamped byte offset.
func (idx *LineIndex) lineFor(offset int) int {
	line := sort.Search(len(idx.lineStarts), func(i int) bool {
		return idx.lineStarts[i] > offset
	}) - 1
	if line < 0 {
		line = 0
	}
	return line
}

func (idx *LineIndex) clamp(offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > len(idx.source) {
		return len(idx.source)
	}
	return offset
}

// Locate converts a byte offset to a 0-based line and UTF-16 column.
// Offsets outside the text are clamped.
func (idx *LineIndex) Locate(offset int) (line, col int) {
	offset = idx.clamp(offset)
	line = idx.lineFor(offset)
	lineStart := idx.lineStarts[line]
	col = utf8ToUTF16Column(idx.source[lineStart:], offset-lineStart)
	return line, col
}

// LocateBytes converts a byte offset to a 0-based line and byte column.
func (idx *LineIndex) LocateBytes(offset int) (line, col int) {
	offset = idx.clamp(offset)
	line = idx.lineFor(offset)
	return line, offset - idx.lineStarts[line]
}

// Offset converts a 0-based line and UTF-16 column back to a byte offset.
// The line is clamped to the text and the column to the line's length.
func (idx *LineIndex) Offset(line, col int) int {
	if line < 0 {
		line = 0
	}
	if line >= len(idx.lineStarts) {
		line = len(idx.lineStarts) - 1
	}
	start, end := idx.lineStarts[line], idx.lineEnds[line]
	if col <= 0 {
		return start
	}

	units := 0
	for i := start; i < end; {
		if units >= col {
			return i
		}
		r, size := utf8.DecodeRuneInString(idx.source[i:end])
		units += utf16Len(r, size)
		i += size
	}
	return end
}

// utf8ToUTF16Column converts a byte offset within s to a UTF-16 column.
func utf8ToUTF16Column(s string, byteOffset int) int {
	if byteOffset <= 0 {
		return 0
	}
	if byteOffset > len(s) {
		byteOffset = len(s)
	}

	col := 0
	for i := 0; i < byteOffset; {
		r, size := utf8.DecodeRuneInString(s[i:])
		col += utf16Len(r, size)
		i += size
	}
	return col
}

// utf16Len counts the UTF-16 code units of a decoded rune. Invalid UTF-8
// bytes count as one unit each.
func utf16Len(r rune, size int) int {
	if r == utf8.RuneError && size == 1 {
		return 1
	}
	if r >= 0x10000 {
		// Supplementary plane - surrogate pair
		return 2
	}
	return 1
}

// UTF16Length returns the length of s in UTF-16 code units.
func UTF16Length(s string) int {
	return utf8ToUTF16Column(s, len(s))
}
