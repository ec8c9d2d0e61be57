// Package lexer splits source text into coarse tokens for placing
// fine-grained mappings.
//
// The scanner is language-agnostic and lossless: every byte of the input
// belongs to exactly one token, so concatenating the token texts gives the
// input back. It recognizes:
// - Words (identifiers and keywords, including Unicode letters)
// - Numbers (decimal, hex, floats with exponents, digit separators)
// - Quoted strings ('...', "...", `...`) with backslash escapes
// - Line and block comments
// - Runs of horizontal whitespace and line breaks
// - Everything else as single-rune punctuation
package lexer

import (
	"unicode"
	"unicode/utf8"
)

// ----------------------------------------------------------------------------
// Token Types
// ----------------------------------------------------------------------------

// TokenKind represents the type of a token.
type TokenKind uint8

const (
	TokEOF TokenKind = iota

	TokWord    // identifier or keyword
	TokNumber  // numeric literal
	TokString  // quoted string
	TokComment // line or block comment
	TokPunct   // any other single rune
	TokSpace   // spaces and tabs
	TokNewline // \n, \r\n or \r
)

// String returns the string representation of a token kind.
func (k TokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return "unknown"
}

var tokenNames = [...]string{
	TokEOF:     "EOF",
	TokWord:    "word",
	TokNumber:  "number",
	TokString:  "string",
	TokComment: "comment",
	TokPunct:   "punct",
	TokSpace:   "space",
	TokNewline: "newline",
}

// Mappable reports whether tokens of this kind start a mapping in hi-res
// mode. Whitespace and line breaks never do.
func (k TokenKind) Mappable() bool {
	switch k {
	case TokWord, TokNumber, TokString, TokComment, TokPunct:
		return true
	}
	return false
}

// ----------------------------------------------------------------------------
// Token
// ----------------------------------------------------------------------------

// Token represents a lexical token.
type Token struct {
	Kind  TokenKind
	Start int // Byte offset in source
	End   int // Byte offset of end (exclusive)
}

// Text returns the source text of the token.
func (t Token) Text(source string) string {
	if t.Start >= 0 && t.Start <= t.End && t.End <= len(source) {
		return source[t.Start:t.End]
	}
	return ""
}

// Len returns the token length in bytes.
func (t Token) Len() int {
	return t.End - t.Start
}

// ----------------------------------------------------------------------------
// Lexer
// ----------------------------------------------------------------------------

// Lexer tokenizes source text.
type Lexer struct {
	source string
	pos    int
	start  int
}

// New creates a new lexer for the given source.
func New(source string) *Lexer {
	return &Lexer{source: source}
}

// Tokenize returns all tokens of source, without the EOF token.
func Tokenize(source string) []Token {
	l := New(source)
	tokens := make([]Token, 0, len(source)/3) // Estimate
	for {
		tok := l.Next()
		if tok.Kind == TokEOF {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

// Next returns the next token, or a TokEOF token at the end of input.
func (l *Lexer) Next() Token {
	if l.pos >= len(l.source) {
		return Token{Kind: TokEOF, Start: l.pos, End: l.pos}
	}

	l.start = l.pos
	ch := l.source[l.pos]

	switch {
	case ch == '\n':
		l.pos++
		return l.token(TokNewline)
	case ch == '\r':
		l.pos++
		if l.pos < len(l.source) && l.source[l.pos] == '\n' {
			l.pos++
		}
		return l.token(TokNewline)
	case charClass[ch]&classSpace != 0:
		return l.scanSpace()
	case ch == '/' && l.peek(1) == '/':
		return l.scanLineComment()
	case ch == '/' && l.peek(1) == '*':
		return l.scanBlockComment()
	case ch == '"' || ch == '\'' || ch == '`':
		return l.scanString(ch)
	case charClass[ch]&classDigit != 0 || (ch == '.' && charClass[l.peek(1)]&classDigit != 0):
		return l.scanNumber()
	case charClass[ch]&classWordStart != 0:
		return l.scanWord()
	case ch >= utf8.RuneSelf:
		r, size := utf8.DecodeRuneInString(l.source[l.pos:])
		if isWordStartSlow(r) {
			return l.scanWord()
		}
		if r != utf8.RuneError && unicode.IsSpace(r) && r != '\u2028' && r != '\u2029' {
			return l.scanSpace()
		}
		l.pos += size
		return l.token(TokPunct)
	default:
		l.pos++
		return l.token(TokPunct)
	}
}

func (l *Lexer) token(kind TokenKind) Token {
	return Token{Kind: kind, Start: l.start, End: l.pos}
}

func (l *Lexer) peek(n int) byte {
	if l.pos+n < len(l.source) {
		return l.source[l.pos+n]
	}
	return 0
}

// ----------------------------------------------------------------------------
// Scanning Helpers
// ----------------------------------------------------------------------------

func (l *Lexer) scanSpace() Token {
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		if charClass[ch]&classSpace != 0 {
			l.pos++
			continue
		}
		if ch < utf8.RuneSelf {
			break
		}
		r, size := utf8.DecodeRuneInString(l.source[l.pos:])
		if r == utf8.RuneError || !unicode.IsSpace(r) || r == '\u2028' || r == '\u2029' {
			break
		}
		l.pos += size
	}
	return l.token(TokSpace)
}

func (l *Lexer) scanLineComment() Token {
	l.pos += 2
	// Fast scan to end of line - most comment chars are ASCII
	for l.pos < len(l.source) && l.source[l.pos] != '\n' && l.source[l.pos] != '\r' {
		l.pos++
	}
	return l.token(TokComment)
}

func (l *Lexer) scanBlockComment() Token {
	l.pos += 2
	for l.pos < len(l.source) {
		if l.source[l.pos] == '*' && l.peek(1) == '/' {
			l.pos += 2
			return l.token(TokComment)
		}
		l.pos++
	}
	// Unterminated: runs to the end of input.
	return l.token(TokComment)
}

// scanString scans a quoted string. Single and double quoted strings end at
// an unescaped line break; backtick strings may span lines.
func (l *Lexer) scanString(quote byte) Token {
	l.pos++
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		switch {
		case ch == '\\':
			l.pos += 2
			if l.pos > len(l.source) {
				l.pos = len(l.source)
			}
			continue
		case ch == quote:
			l.pos++
			return l.token(TokString)
		case (ch == '\n' || ch == '\r') && quote != '`':
			return l.token(TokString)
		}
		l.pos++
	}
	return l.token(TokString)
}

func (l *Lexer) scanNumber() Token {
	// Hex, octal and binary prefixes
	if l.source[l.pos] == '0' && (l.peek(1)|0x20 == 'x' || l.peek(1)|0x20 == 'o' || l.peek(1)|0x20 == 'b') {
		l.pos += 2
		for l.pos < len(l.source) && (charClass[l.source[l.pos]]&classHexDigit != 0 || l.source[l.pos] == '_') {
			l.pos++
		}
		return l.scanNumberSuffix()
	}

	seenDot := false
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		switch {
		case charClass[ch]&classDigit != 0 || ch == '_':
			l.pos++
		case ch == '.' && !seenDot:
			seenDot = true
			l.pos++
		case ch|0x20 == 'e':
			next := l.peek(1)
			if next == '+' || next == '-' {
				if charClass[l.peek(2)]&classDigit == 0 {
					return l.scanNumberSuffix()
				}
				l.pos += 2
			} else if charClass[next]&classDigit != 0 {
				l.pos++
			} else {
				return l.scanNumberSuffix()
			}
			for l.pos < len(l.source) && charClass[l.source[l.pos]]&classDigit != 0 {
				l.pos++
			}
			return l.scanNumberSuffix()
		default:
			return l.scanNumberSuffix()
		}
	}
	return l.token(TokNumber)
}

// scanNumberSuffix consumes a trailing type suffix such as n, f or u32.
func (l *Lexer) scanNumberSuffix() Token {
	for l.pos < len(l.source) && charClass[l.source[l.pos]]&(classWordStart|classDigit) != 0 {
		l.pos++
	}
	return l.token(TokNumber)
}

func (l *Lexer) scanWord() Token {
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		if charClass[ch]&(classWordStart|classDigit) != 0 {
			l.pos++
			continue
		}
		if ch < utf8.RuneSelf {
			break
		}
		r, size := utf8.DecodeRuneInString(l.source[l.pos:])
		if !isWordContinueSlow(r) {
			break
		}
		l.pos += size
	}
	return l.token(TokWord)
}

// ----------------------------------------------------------------------------
// Character Classes
// ----------------------------------------------------------------------------

const (
	classSpace uint8 = 1 << iota
	classDigit
	classHexDigit
	classWordStart
)

var charClass [256]uint8

func init() {
	for _, ch := range []byte{' ', '\t', '\v', '\f'} {
		charClass[ch] |= classSpace
	}
	for ch := '0'; ch <= '9'; ch++ {
		charClass[ch] |= classDigit | classHexDigit
	}
	for ch := 'a'; ch <= 'f'; ch++ {
		charClass[ch] |= classHexDigit
		charClass[ch-'a'+'A'] |= classHexDigit
	}
	for ch := 'a'; ch <= 'z'; ch++ {
		charClass[ch] |= classWordStart
		charClass[ch-'a'+'A'] |= classWordStart
	}
	charClass['_'] |= classWordStart
	charClass['$'] |= classWordStart
}

func isWordStartSlow(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.Is(unicode.Other_ID_Start, r))
}

func isWordContinueSlow(r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) ||
		unicode.Is(unicode.Pc, r) || r == '\u200c' || r == '\u200d'
}
