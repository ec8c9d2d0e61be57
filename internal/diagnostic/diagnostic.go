// Package diagnostic provides findings reported while checking source maps.
//
// A diagnostic points at a generated position, a byte offset into the
// mappings string, or both, and may carry the original position it refers
// to. When the original source content is known, formatting shows the
// original line with a caret under the column.
package diagnostic

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/HugoDaniel/srcmap/internal/sourcemap"
)

// Severity represents the severity level of a diagnostic.
type Severity uint8

const (
	// Error makes the map unusable or wrong.
	Error Severity = iota
	// Warning is a suspicious but usable construct.
	Warning
	// Info is an informational message.
	Info
	// Note provides additional context for another diagnostic.
	Note

	// Off disables a rule in a Filter.
	Off Severity = 255
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Note:
		return "note"
	case Off:
		return "off"
	default:
		return "unknown"
	}
}

// ParseSeverity parses the name of a severity, including "off".
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return Error, true
	case "warning", "warn":
		return Warning, true
	case "info":
		return Info, true
	case "note":
		return Note, true
	case "off":
		return Off, true
	}
	return 0, false
}

// Code identifies a validation rule.
type Code string

const (
	CodeInvalidJSON       Code = "SM001" // not parseable or wrong version
	CodeBadMappings       Code = "SM002" // mappings string does not decode
	CodeSourceIndex       Code = "SM003" // source index out of range
	CodeNameIndex         Code = "SM004" // name index out of range
	CodeUnsortedColumns   Code = "SM005" // generated columns not ascending
	CodeContentLength     Code = "SM006" // sourcesContent and sources differ in length
	CodeOriginalLine      Code = "SM007" // original line beyond source content
	CodeOriginalColumn    Code = "SM008" // original column beyond line length
	CodeIgnoreIndex       Code = "SM009" // ignoreList index out of range
	CodeDuplicateSource   Code = "SM010" // source listed twice
	CodeMalformedSections Code = "SM011" // sections out of order or malformed
)

var defaultSeverities = map[Code]Severity{
	CodeInvalidJSON:       Error,
	CodeBadMappings:       Error,
	CodeSourceIndex:       Error,
	CodeNameIndex:         Error,
	CodeUnsortedColumns:   Warning,
	CodeContentLength:     Warning,
	CodeOriginalLine:      Warning,
	CodeOriginalColumn:    Warning,
	CodeIgnoreIndex:       Error,
	CodeDuplicateSource:   Info,
	CodeMalformedSections: Error,
}

// Codes returns all rule codes in order.
func Codes() []Code {
	return []Code{
		CodeInvalidJSON, CodeBadMappings, CodeSourceIndex, CodeNameIndex,
		CodeUnsortedColumns, CodeContentLength, CodeOriginalLine, CodeOriginalColumn,
		CodeIgnoreIndex, CodeDuplicateSource, CodeMalformedSections,
	}
}

// DefaultSeverity returns the severity a rule reports with unless a Filter
// changes it. Unknown codes are errors.
func DefaultSeverity(code Code) Severity {
	if sev, ok := defaultSeverities[code]; ok {
		return sev
	}
	return Error
}

// Diagnostic represents a single diagnostic message.
type Diagnostic struct {
	Severity  Severity
	Code      Code
	Message   string
	Generated *sourcemap.Position // nil if not tied to a mapping
	Offset    int                 // Byte offset into the mappings string, -1 if unknown
	Source    string              // Original source of Original
	Original  *sourcemap.Position // nil if none
}

// Error returns a formatted error string.
func (d *Diagnostic) Error() string {
	if d.Generated != nil {
		return fmt.Sprintf("%d:%d: %s %s: %s", d.Generated.Line, d.Generated.Column, d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
}

// ----------------------------------------------------------------------------
// List
// ----------------------------------------------------------------------------

// List collects diagnostics for one map.
type List struct {
	file        string
	diagnostics []Diagnostic
	filter      *Filter
	limit       int
	perCode     map[Code]int
	suppressed  int
	contents    map[string]*sourcemap.LineIndex
	hasErrors   bool
}

// NewList creates a list for diagnostics of the named map file.
func NewList(file string) *List {
	return &List{
		file:        file,
		diagnostics: make([]Diagnostic, 0),
		perCode:     make(map[Code]int),
		contents:    make(map[string]*sourcemap.LineIndex),
	}
}

// File returns the map file name.
func (l *List) File() string {
	return l.file
}

// SetFilter installs a filter applied by Add. A nil filter keeps default
// severities.
func (l *List) SetFilter(f *Filter) {
	l.filter = f
}

// SetLimit caps the number of diagnostics kept per code; 0 means no cap.
// Dropped diagnostics are counted by Suppressed.
func (l *List) SetLimit(n int) {
	l.limit = n
}

// SetSourceContent registers the content of an original source so that
// diagnostics pointing into it show the offending line.
func (l *List) SetSourceContent(source, content string) {
	l.contents[source] = sourcemap.NewLineIndex(content)
}

// Add adds a diagnostic to the list after applying the filter.
func (l *List) Add(d Diagnostic) {
	if l.filter != nil {
		if l.filter.IsDisabled(d.Code) {
			return
		}
		d.Severity = l.filter.SeverityFor(d.Code, d.Severity)
	}
	if l.limit > 0 && l.perCode[d.Code] >= l.limit {
		l.suppressed++
		return
	}
	l.perCode[d.Code]++
	l.diagnostics = append(l.diagnostics, d)
	if d.Severity == Error {
		l.hasErrors = true
	}
}

// Report adds a diagnostic with the rule's default severity.
func (l *List) Report(code Code, generated *sourcemap.Position, format string, args ...any) {
	l.Add(Diagnostic{
		Severity:  DefaultSeverity(code),
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Generated: generated,
		Offset:    -1,
	})
}

// ReportOriginal adds a diagnostic that also points into an original
// source.
func (l *List) ReportOriginal(code Code, generated *sourcemap.Position, source string, original sourcemap.Position, format string, args ...any) {
	l.Add(Diagnostic{
		Severity:  DefaultSeverity(code),
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Generated: generated,
		Offset:    -1,
		Source:    source,
		Original:  &original,
	})
}

// ReportOffset adds a diagnostic at a byte offset of the mappings string.
func (l *List) ReportOffset(code Code, offset int, format string, args ...any) {
	l.Add(Diagnostic{
		Severity: DefaultSeverity(code),
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Offset:   offset,
	})
}

// HasErrors returns true if there are any error-level diagnostics.
func (l *List) HasErrors() bool {
	return l.hasErrors
}

// Diagnostics returns all collected diagnostics.
func (l *List) Diagnostics() []Diagnostic {
	return l.diagnostics
}

// Errors returns only error-level diagnostics.
func (l *List) Errors() []Diagnostic {
	return l.bySeverity(Error)
}

// Warnings returns only warning-level diagnostics.
func (l *List) Warnings() []Diagnostic {
	return l.bySeverity(Warning)
}

func (l *List) bySeverity(sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range l.diagnostics {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the total number of diagnostics.
func (l *List) Count() int {
	return len(l.diagnostics)
}

// ErrorCount returns the number of error-level diagnostics.
func (l *List) ErrorCount() int {
	return len(l.Errors())
}

// Suppressed returns the number of diagnostics dropped by the limit.
func (l *List) Suppressed() int {
	return l.suppressed
}

// HasCode reports whether a diagnostic with the given code was kept.
func (l *List) HasCode(code Code) bool {
	return l.perCode[code] > 0
}

// Format formats all diagnostics as a human-readable string.
func (l *List) Format() string {
	if len(l.diagnostics) == 0 {
		return ""
	}

	var sb strings.Builder
	for i := range l.diagnostics {
		sb.WriteString(l.FormatDiagnostic(&l.diagnostics[i]))
	}
	if l.suppressed > 0 {
		fmt.Fprintf(&sb, "%s: %d more diagnostics suppressed\n", l.file, l.suppressed)
	}
	return sb.String()
}

// FormatDiagnostic formats a single diagnostic with source context.
func (l *List) FormatDiagnostic(d *Diagnostic) string {
	var sb strings.Builder

	// Main line
	sb.WriteString(l.file)
	if d.Generated != nil {
		fmt.Fprintf(&sb, ":%d:%d", d.Generated.Line, d.Generated.Column)
	}
	fmt.Fprintf(&sb, ": %s %s: %s", d.Severity, d.Code, d.Message)
	if d.Offset >= 0 && d.Generated == nil {
		fmt.Fprintf(&sb, " (mappings offset %d)", d.Offset)
	}
	sb.WriteByte('\n')

	if d.Original == nil {
		return sb.String()
	}
	fmt.Fprintf(&sb, "  --> %s:%d:%d\n", d.Source, d.Original.Line, d.Original.Column)

	// Source context
	idx, ok := l.contents[d.Source]
	if !ok {
		return sb.String()
	}
	line := d.Original.Line - 1
	if line < 0 || line >= idx.LineCount() {
		return sb.String()
	}
	text := idx.Line(line)
	fmt.Fprintf(&sb, "    %s\n", text)
	sb.WriteString("    ")
	sb.WriteString(caretPadding(text, idx.Offset(line, d.Original.Column)-idx.Offset(line, 0)))
	sb.WriteString("^\n")

	return sb.String()
}

// caretPadding returns whitespace as wide as text[:n], keeping tabs so the
// caret lines up under the column.
func caretPadding(text string, n int) string {
	if n > len(text) {
		n = len(text)
	}
	var sb strings.Builder
	for i := 0; i < n; {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == '\t' {
			sb.WriteByte('\t')
		} else {
			sb.WriteByte(' ')
		}
		i += size
	}
	return sb.String()
}

// Clear removes all diagnostics.
func (l *List) Clear() {
	l.diagnostics = l.diagnostics[:0]
	clear(l.perCode)
	l.suppressed = 0
	l.hasErrors = false
}

// ----------------------------------------------------------------------------
// Filter
// ----------------------------------------------------------------------------

// Filter controls which diagnostics are reported and at which severity.
type Filter struct {
	// Rules maps rule codes to a severity override. Off disables the rule.
	Rules map[Code]Severity
}

// NewFilter creates a new filter with default settings.
func NewFilter() *Filter {
	return &Filter{
		Rules: make(map[Code]Severity),
	}
}

// SetRule sets the severity for a rule.
func (f *Filter) SetRule(code Code, severity Severity) {
	f.Rules[code] = severity
}

// DisableRule disables a rule.
func (f *Filter) DisableRule(code Code) {
	f.Rules[code] = Off
}

// IsDisabled returns true if the rule is disabled.
func (f *Filter) IsDisabled(code Code) bool {
	sev, ok := f.Rules[code]
	return ok && sev == Off
}

// SeverityFor returns the severity for a rule, or def if not overridden.
func (f *Filter) SeverityFor(code Code, def Severity) Severity {
	if sev, ok := f.Rules[code]; ok && sev != Off {
		return sev
	}
	return def
}
