// Package rewrite edits a source text by byte ranges of the original and
// produces the edited output together with a source map back to the
// original.
//
// Edits never move: every index refers to the original text, no matter how
// many edits came before. Inserts come in two flavors. "Left" inserts stick
// to the character before the index and "right" inserts to the character
// after it; at the same index all left text is output before all right
// text.
package rewrite

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/HugoDaniel/srcmap/internal/lexer"
	"github.com/HugoDaniel/srcmap/internal/sourcemap"
)

// Errors returned by Editor methods. Indexes outside the original text are
// reported as sourcemap.ErrIndexOutOfRange.
var (
	ErrOverlap    = errors.New("rewrite: overlapping edit")
	ErrEmptyRange = errors.New("rewrite: empty range")
)

// Options configures an Editor.
type Options struct {
	// Source is the original file name recorded in the map.
	Source string

	// IncludeContent embeds the original text in sourcesContent.
	IncludeContent bool

	// Hires maps every non-whitespace token of retained text instead of
	// only the start of each chunk and line.
	Hires bool

	// NameTokens records the original identifier as the mapping name when
	// a mapping starts at a word token.
	NameTokens bool
}

type edit struct {
	start, end int
	text       string
}

type insert struct {
	left, right string
}

// Editor accumulates edits of an original text. It is not safe for
// concurrent use.
type Editor struct {
	original string
	opts     Options

	intro, outro string
	edits        []edit // sorted by start, never overlapping
	inserts      map[int]*insert

	tokens []lexer.Token // tokens of original, built on first use
}

// New creates an editor for original.
func New(original string, opts Options) *Editor {
	return &Editor{
		original: original,
		opts:     opts,
		inserts:  make(map[int]*insert),
	}
}

// Original returns the unedited text.
func (e *Editor) Original() string {
	return e.original
}

// HasChanged reports whether any edit or insert was made.
func (e *Editor) HasChanged() bool {
	return e.intro != "" || e.outro != "" || len(e.edits) > 0 || len(e.inserts) > 0
}

// ----------------------------------------------------------------------------
// Edits
// ----------------------------------------------------------------------------

// Overwrite replaces the original range [start, end) with text. Overwriting
// exactly the same range again replaces the previous text; any other
// overlap with an earlier edit is an error.
func (e *Editor) Overwrite(start, end int, text string) error {
	if err := e.checkRange(start, end); err != nil {
		return err
	}
	if start == end {
		return fmt.Errorf("%w: cannot overwrite [%d, %d), use an insert", ErrEmptyRange, start, end)
	}
	return e.addEdit(edit{start: start, end: end, text: text})
}

// Remove deletes the original range [start, end). Removing an empty range
// does nothing.
func (e *Editor) Remove(start, end int) error {
	if err := e.checkRange(start, end); err != nil {
		return err
	}
	if start == end {
		return nil
	}
	return e.addEdit(edit{start: start, end: end})
}

func (e *Editor) addEdit(ed edit) error {
	i := sort.Search(len(e.edits), func(i int) bool {
		return e.edits[i].end > ed.start
	})
	if i < len(e.edits) && e.edits[i].start < ed.end {
		prev := e.edits[i]
		if prev.start == ed.start && prev.end == ed.end {
			e.edits[i].text = ed.text
			return nil
		}
		return fmt.Errorf("%w: [%d, %d) overlaps [%d, %d)", ErrOverlap, ed.start, ed.end, prev.start, prev.end)
	}
	e.edits = slices.Insert(e.edits, i, ed)
	return nil
}

// PrependLeft inserts text at index, before any left text already there.
func (e *Editor) PrependLeft(index int, text string) error {
	ins, err := e.insertAt(index)
	if err != nil {
		return err
	}
	ins.left = text + ins.left
	return nil
}

// AppendLeft inserts text at index, after any left text already there.
func (e *Editor) AppendLeft(index int, text string) error {
	ins, err := e.insertAt(index)
	if err != nil {
		return err
	}
	ins.left += text
	return nil
}

// PrependRight inserts text at index, before any right text already there.
func (e *Editor) PrependRight(index int, text string) error {
	ins, err := e.insertAt(index)
	if err != nil {
		return err
	}
	ins.right = text + ins.right
	return nil
}

// AppendRight inserts text at index, after any right text already there.
func (e *Editor) AppendRight(index int, text string) error {
	ins, err := e.insertAt(index)
	if err != nil {
		return err
	}
	ins.right += text
	return nil
}

// Prepend adds text before all other output.
func (e *Editor) Prepend(text string) {
	e.intro = text + e.intro
}

// Append adds text after all other output.
func (e *Editor) Append(text string) {
	e.outro += text
}

func (e *Editor) insertAt(index int) (*insert, error) {
	if index < 0 || index > len(e.original) {
		return nil, sourcemap.NewError(sourcemap.CodeIndexOutOfRange,
			"rewrite: index %d outside [0, %d]", index, len(e.original))
	}
	ins := e.inserts[index]
	if ins == nil {
		ins = &insert{}
		e.inserts[index] = ins
	}
	return ins, nil
}

func (e *Editor) checkRange(start, end int) error {
	if start < 0 || end > len(e.original) || start > end {
		return sourcemap.NewError(sourcemap.CodeIndexOutOfRange,
			"rewrite: range [%d, %d) outside [0, %d]", start, end, len(e.original))
	}
	return nil
}

// ----------------------------------------------------------------------------
// Output
// ----------------------------------------------------------------------------

type pieceKind uint8

const (
	pieceInserted pieceKind = iota
	pieceRetained
	pieceOverwritten
)

// piece is a run of output text. Retained and overwritten pieces cover the
// original range [start, end).
type piece struct {
	kind       pieceKind
	text       string
	start, end int
}

// walk calls fn for every piece of output in order. Text inserted inside a
// removed or overwritten range is kept and follows the replacement.
func (e *Editor) walk(fn func(piece)) {
	if e.intro != "" {
		fn(piece{kind: pieceInserted, text: e.intro})
	}

	bounds := make([]int, 0, 2+2*len(e.edits)+len(e.inserts))
	bounds = append(bounds, 0, len(e.original))
	for _, ed := range e.edits {
		bounds = append(bounds, ed.start, ed.end)
	}
	for index := range e.inserts {
		bounds = append(bounds, index)
	}
	sort.Ints(bounds)
	bounds = slices.Compact(bounds)

	ei := 0
	for bi, b := range bounds {
		if ins := e.inserts[b]; ins != nil {
			if ins.left != "" {
				fn(piece{kind: pieceInserted, text: ins.left})
			}
			if ins.right != "" {
				fn(piece{kind: pieceInserted, text: ins.right})
			}
		}
		if b == len(e.original) {
			break
		}
		next := bounds[bi+1]

		for ei < len(e.edits) && e.edits[ei].end <= b {
			ei++
		}
		if ei < len(e.edits) && e.edits[ei].start <= b {
			ed := e.edits[ei]
			if ed.start == b && ed.text != "" {
				fn(piece{kind: pieceOverwritten, text: ed.text, start: ed.start, end: ed.end})
			}
			continue
		}
		fn(piece{kind: pieceRetained, text: e.original[b:next], start: b, end: next})
	}

	if e.outro != "" {
		fn(piece{kind: pieceInserted, text: e.outro})
	}
}

// String returns the edited text.
func (e *Editor) String() string {
	var sb strings.Builder
	sb.Grow(len(e.original) + len(e.intro) + len(e.outro))
	e.walk(func(p piece) {
		sb.WriteString(p.text)
	})
	return sb.String()
}

// Map returns a source map from the edited text to the original. Retained
// text is mapped at the start of every chunk and every line, and at every
// token when Hires is set. Overwritten text is mapped at its start to the
// start of the range it replaced. Inserted text is not mapped.
func (e *Editor) Map(file string) (*sourcemap.Table, error) {
	if e.opts.Source == "" {
		return nil, sourcemap.NewError(sourcemap.CodeMissingSource, "rewrite: no source name set")
	}
	tbl, err := sourcemap.NewTable(sourcemap.Options{File: file})
	if err != nil {
		return nil, err
	}

	var content *string
	if e.opts.IncludeContent {
		content = &e.original
	}
	tbl.AddSource(e.opts.Source, content)

	orig := sourcemap.NewLineIndex(e.original)
	var gen cursor
	var firstErr error
	add := func(offset int, name string) {
		if firstErr != nil {
			return
		}
		line, col := orig.Locate(offset)
		firstErr = tbl.AddMapping(sourcemap.Mapping{
			Generated: sourcemap.Position{Line: gen.line + 1, Column: gen.col},
			Source:    e.opts.Source,
			Original:  &sourcemap.Position{Line: line + 1, Column: col},
			Name:      name,
		})
	}

	e.walk(func(p piece) {
		switch p.kind {
		case pieceInserted:
			gen.advance(p.text)
		case pieceOverwritten:
			add(p.start, e.overwrittenName(p.start, p.end))
			gen.advance(p.text)
		case pieceRetained:
			prev := p.start
			for _, m := range e.marks(p.start, p.end) {
				gen.advance(e.original[prev:m.offset])
				add(m.offset, m.name)
				prev = m.offset
			}
			gen.advance(e.original[prev:p.end])
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return tbl, nil
}

type mark struct {
	offset int
	name   string
}

// marks returns the offsets in the retained range [start, end) that get a
// mapping, in ascending order.
func (e *Editor) marks(start, end int) []mark {
	marks := []mark{{offset: start, name: e.wordName(start, end)}}

	for i := start; i < end; i++ {
		switch e.original[i] {
		case '\n':
		case '\r':
			if i+1 < len(e.original) && e.original[i+1] == '\n' {
				continue
			}
		default:
			continue
		}
		if i+1 < end {
			marks = append(marks, mark{offset: i + 1, name: e.wordName(i+1, end)})
		}
	}

	if e.opts.Hires {
		tokens := e.tokenize()
		first := sort.Search(len(tokens), func(i int) bool { return tokens[i].Start > start })
		for _, tok := range tokens[first:] {
			if tok.Start >= end {
				break
			}
			if tok.Kind.Mappable() {
				marks = append(marks, mark{offset: tok.Start, name: e.wordName(tok.Start, end)})
			}
		}
	}

	sort.SliceStable(marks, func(i, j int) bool { return marks[i].offset < marks[j].offset })
	return slices.CompactFunc(marks, func(a, b mark) bool { return a.offset == b.offset })
}

// wordName returns the word token starting at offset if it ends by limit
// and names are enabled.
func (e *Editor) wordName(offset, limit int) string {
	if !e.opts.NameTokens {
		return ""
	}
	tok, ok := e.tokenAt(offset)
	if !ok || tok.Kind != lexer.TokWord || tok.End > limit {
		return ""
	}
	return tok.Text(e.original)
}

// overwrittenName returns the original identifier replaced by an overwrite
// of exactly one word token.
func (e *Editor) overwrittenName(start, end int) string {
	if !e.opts.NameTokens {
		return ""
	}
	tok, ok := e.tokenAt(start)
	if !ok || tok.Kind != lexer.TokWord || tok.End != end {
		return ""
	}
	return tok.Text(e.original)
}

func (e *Editor) tokenAt(offset int) (lexer.Token, bool) {
	tokens := e.tokenize()
	i := sort.Search(len(tokens), func(i int) bool { return tokens[i].Start >= offset })
	if i < len(tokens) && tokens[i].Start == offset {
		return tokens[i], true
	}
	return lexer.Token{}, false
}

func (e *Editor) tokenize() []lexer.Token {
	if e.tokens == nil {
		e.tokens = lexer.Tokenize(e.original)
	}
	return e.tokens
}

// cursor tracks a 0-based line and UTF-16 column while output is written.
// Line breaks follow sourcemap.LineIndex: "\n", "\r\n" and a lone "\r",
// including a "\r\n" pair split across two writes.
type cursor struct {
	line, col int
	afterCR   bool
}

func (c *cursor) advance(s string) {
	for i := 0; i < len(s); {
		switch s[i] {
		case '\n':
			if !c.afterCR {
				c.line++
			}
			c.col = 0
			c.afterCR = false
			i++
		case '\r':
			c.line++
			c.col = 0
			c.afterCR = true
			i++
		default:
			r, size := utf8.DecodeRuneInString(s[i:])
			if r >= 0x10000 {
				c.col += 2
			} else {
				c.col++
			}
			c.afterCR = false
			i += size
		}
	}
}
