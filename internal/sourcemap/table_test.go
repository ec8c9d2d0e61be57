package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestTable(t *testing.T, opts Options) *Table {
	t.Helper()
	tbl, err := NewTable(opts)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func pos(line, col int) *Position {
	return &Position{Line: line, Column: col}
}

func strPtr(s string) *string {
	return &s
}

// ============================================================================
// Table Construction Tests
// ============================================================================

func TestNewTableOptions(t *testing.T) {
	tbl := newTestTable(t, Options{})
	if tbl.Options().Version != 3 {
		t.Errorf("Version = %d, want 3", tbl.Options().Version)
	}
	if DefaultOptions().Version != 3 {
		t.Errorf("DefaultOptions().Version = %d, want 3", DefaultOptions().Version)
	}

	if _, err := NewTable(Options{Version: 2}); !errors.Is(err, ErrMalformedMapping) {
		t.Errorf("NewTable(version 2) error = %v, want ErrMalformedMapping", err)
	}
}

func TestTableEmpty(t *testing.T) {
	tbl := newTestTable(t, Options{File: "out.js"})
	m := tbl.ToEncodedMap()

	if m.Version != 3 {
		t.Errorf("Version = %d, want 3", m.Version)
	}
	if m.Mappings != "" {
		t.Errorf("Mappings = %q, want empty", m.Mappings)
	}
	if m.Sources == nil || m.Names == nil {
		t.Error("Sources and Names should be empty arrays, not nil")
	}
	if got := m.ToJSON(); got != `{"version":3,"file":"out.js","sources":[],"names":[],"mappings":""}` {
		t.Errorf("ToJSON() = %s", got)
	}
}

// ============================================================================
// AddMapping Tests
// ============================================================================

func TestAddMappingInterning(t *testing.T) {
	tbl := newTestTable(t, Options{})

	mappings := []Mapping{
		{Generated: Position{Line: 1, Column: 0}, Source: "a.js", Original: pos(1, 0), Name: "x"},
		{Generated: Position{Line: 1, Column: 4}, Source: "b.js", Original: pos(3, 2)},
		{Generated: Position{Line: 2, Column: 0}, Source: "a.js", Original: pos(2, 0), Name: "x"},
		{Generated: Position{Line: 2, Column: 6}, Source: "a.js", Original: pos(2, 6), Name: "y"},
	}
	for _, m := range mappings {
		if err := tbl.AddMapping(m); err != nil {
			t.Fatalf("AddMapping(%+v): %v", m, err)
		}
	}

	if diff := cmp.Diff([]string{"a.js", "b.js"}, tbl.Sources()); diff != "" {
		t.Errorf("Sources mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x", "y"}, tbl.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	if idx := tbl.AddSource("a.js", nil); idx != 0 {
		t.Errorf("AddSource(a.js) = %d, want 0", idx)
	}
	if len(tbl.Sources()) != 2 {
		t.Errorf("re-registering a source grew sources to %d", len(tbl.Sources()))
	}

	want := [][]Segment{
		{NamedSegment(0, 0, 0, 0, 0), SourceSegment(4, 1, 2, 2)},
		{NamedSegment(0, 0, 1, 0, 0), NamedSegment(6, 0, 1, 6, 1)},
	}
	if diff := cmp.Diff(want, tbl.Lines()); diff != "" {
		t.Errorf("Lines mismatch (-want +got):\n%s", diff)
	}
	if tbl.SegmentCount() != 4 {
		t.Errorf("SegmentCount() = %d, want 4", tbl.SegmentCount())
	}
}

func TestAddMappingGeneratedOnly(t *testing.T) {
	tbl := newTestTable(t, Options{})
	if err := tbl.AddMapping(Mapping{Generated: Position{Line: 3, Column: 7}}); err != nil {
		t.Fatal(err)
	}
	if tbl.LineCount() != 3 {
		t.Errorf("LineCount() = %d, want 3", tbl.LineCount())
	}
	if got := tbl.ToEncodedMap().Mappings; got != ";;O" {
		t.Errorf("Mappings = %q, want %q", got, ";;O")
	}
}

func TestAddMappingErrors(t *testing.T) {
	tests := []struct {
		name    string
		mapping Mapping
		target  error
	}{
		{"line_zero", Mapping{Generated: Position{Line: 0, Column: 0}}, ErrIndexOutOfRange},
		{"negative_column", Mapping{Generated: Position{Line: 1, Column: -1}}, ErrIndexOutOfRange},
		{"line_past_limit", Mapping{Generated: Position{Line: 1_000_000_000}}, ErrIndexOutOfRange},
		{"original_without_source", Mapping{Generated: Position{Line: 1}, Original: pos(1, 0)}, ErrMissingSource},
		{"name_without_source", Mapping{Generated: Position{Line: 1}, Name: "x"}, ErrMissingSource},
		{"source_without_original", Mapping{Generated: Position{Line: 1}, Source: "a.js"}, ErrMalformedMapping},
		{"original_line_zero", Mapping{Generated: Position{Line: 1}, Source: "a.js", Original: pos(0, 0)}, ErrIndexOutOfRange},
		{"original_negative_column", Mapping{Generated: Position{Line: 1}, Source: "a.js", Original: pos(1, -2)}, ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := newTestTable(t, Options{})
			err := tbl.AddMapping(tt.mapping)
			if !errors.Is(err, tt.target) {
				t.Fatalf("AddMapping error = %v, want %v", err, tt.target)
			}
			if len(tbl.Sources()) != 0 || tbl.LineCount() != 0 {
				t.Error("failed AddMapping must not modify the table")
			}
		})
	}
}

func TestAddSegmentErrors(t *testing.T) {
	tbl := newTestTable(t, Options{})
	tbl.AddSource("a.js", nil)

	if err := tbl.AddSegment(-1, GeneratedSegment(0)); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("negative line error = %v", err)
	}
	if err := tbl.AddSegment(0, SourceSegment(0, 1, 0, 0)); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("bad source index error = %v", err)
	}
	if err := tbl.AddSegment(0, NamedSegment(0, 0, 0, 0, 0)); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("bad name index error = %v", err)
	}
	if err := tbl.AddSegment(MaxLines, GeneratedSegment(0)); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("line past limit error = %v", err)
	}
	if err := tbl.AddSegment(0, SourceSegment(0, 0, 0, 0)); err != nil {
		t.Errorf("valid segment error = %v", err)
	}
	if tbl.LineCount() != 1 {
		t.Errorf("LineCount() = %d, want 1", tbl.LineCount())
	}
}

func TestAddSegmentEmptySourceName(t *testing.T) {
	tbl := newTestTable(t, Options{})
	src := tbl.AddSource("", strPtr("x"))
	name := tbl.AddName("x")
	if err := tbl.AddSegment(0, NamedSegment(0, src, 0, 0, name)); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}

	want := &EncodedMap{Version: 3, Sources: []string{""}, SourcesContent: []*string{strPtr("x")}, Names: []string{"x"}, Mappings: "AAAAA"}
	if diff := cmp.Diff(want, tbl.ToEncodedMap()); diff != "" {
		t.Errorf("ToEncodedMap mismatch (-want +got):\n%s", diff)
	}
	if again := tbl.AddName("x"); again != name {
		t.Errorf("AddName(x) again = %d, want %d", again, name)
	}
}

// ============================================================================
// Ordering Tests
// ============================================================================

func TestTableSortsLinesStably(t *testing.T) {
	tbl := newTestTable(t, Options{})
	add := func(col, origCol int) {
		t.Helper()
		err := tbl.AddMapping(Mapping{
			Generated: Position{Line: 1, Column: col},
			Source:    "a.js",
			Original:  pos(1, origCol),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	add(10, 10)
	add(2, 2)
	add(10, 11)
	add(5, 5)

	want := []Segment{
		SourceSegment(2, 0, 0, 2),
		SourceSegment(5, 0, 0, 5),
		SourceSegment(10, 0, 0, 10),
		SourceSegment(10, 0, 0, 11),
	}
	if diff := cmp.Diff(want, tbl.Lines()[0]); diff != "" {
		t.Errorf("line 0 mismatch (-want +got):\n%s", diff)
	}
}

// ============================================================================
// Redundancy Tests
// ============================================================================

func TestMaybeAddMapping(t *testing.T) {
	tbl := newTestTable(t, Options{})

	steps := []struct {
		name    string
		mapping Mapping
		added   bool
	}{
		{"sourceless_line_start", Mapping{Generated: Position{Line: 1, Column: 0}}, false},
		{"first_sourced", Mapping{Generated: Position{Line: 1, Column: 0}, Source: "a.js", Original: pos(1, 0)}, true},
		{"same_position", Mapping{Generated: Position{Line: 1, Column: 5}, Source: "a.js", Original: pos(1, 0)}, false},
		{"same_position_new_name", Mapping{Generated: Position{Line: 1, Column: 6}, Source: "a.js", Original: pos(1, 0), Name: "n"}, true},
		{"sourceless_after_sourced", Mapping{Generated: Position{Line: 1, Column: 8}}, true},
		{"sourceless_after_sourceless", Mapping{Generated: Position{Line: 1, Column: 9}}, false},
		{"sourced_after_sourceless", Mapping{Generated: Position{Line: 1, Column: 12}, Source: "a.js", Original: pos(1, 0)}, true},
		{"new_line_sourced", Mapping{Generated: Position{Line: 2, Column: 0}, Source: "a.js", Original: pos(1, 0)}, true},
	}

	for _, step := range steps {
		added, err := tbl.MaybeAddMapping(step.mapping)
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if added != step.added {
			t.Errorf("%s: added = %v, want %v", step.name, added, step.added)
		}
	}

	if tbl.SegmentCount() != 5 {
		t.Errorf("SegmentCount() = %d, want 5", tbl.SegmentCount())
	}
}

func TestMaybeAddSegment(t *testing.T) {
	tbl := newTestTable(t, Options{})
	src := tbl.AddSource("", nil)

	steps := []struct {
		name  string
		line  int
		seg   Segment
		added bool
	}{
		{"sourceless_line_start", 0, GeneratedSegment(0), false},
		{"first_sourced", 0, SourceSegment(0, src, 0, 0), true},
		{"same_position", 0, SourceSegment(3, src, 0, 0), false},
		{"new_position", 0, SourceSegment(6, src, 0, 6), true},
		{"sourceless_after_sourced", 0, GeneratedSegment(9), true},
	}
	for _, step := range steps {
		added, err := tbl.MaybeAddSegment(step.line, step.seg)
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if added != step.added {
			t.Errorf("%s: added = %v, want %v", step.name, added, step.added)
		}
	}
	if tbl.SegmentCount() != 3 {
		t.Errorf("SegmentCount() = %d, want 3", tbl.SegmentCount())
	}

	if _, err := tbl.MaybeAddSegment(0, SourceSegment(0, 1, 0, 0)); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("bad source index error = %v", err)
	}
}

func TestSkipRedundantOption(t *testing.T) {
	tbl := newTestTable(t, Options{SkipRedundant: true})
	for col := 0; col < 4; col++ {
		err := tbl.AddMapping(Mapping{Generated: Position{Line: 1, Column: col}, Source: "a.js", Original: pos(1, 0)})
		if err != nil {
			t.Fatal(err)
		}
	}
	if tbl.SegmentCount() != 1 {
		t.Errorf("SegmentCount() = %d, want 1", tbl.SegmentCount())
	}
}

func TestConfigureSimplifies(t *testing.T) {
	tbl := newTestTable(t, Options{File: "in.js", SourceRoot: "src"})
	for _, m := range []Mapping{
		{Generated: Position{Line: 1, Column: 0}, Source: "a.js", Original: pos(1, 0)},
		{Generated: Position{Line: 1, Column: 2}, Source: "a.js", Original: pos(1, 0)},
		{Generated: Position{Line: 1, Column: 4}},
		{Generated: Position{Line: 1, Column: 6}},
		{Generated: Position{Line: 1, Column: 8}, Source: "a.js", Original: pos(2, 0)},
		{Generated: Position{Line: 2, Column: 0}},
	} {
		if err := tbl.AddMapping(m); err != nil {
			t.Fatal(err)
		}
	}

	if err := tbl.Configure(Options{File: "out.js", SkipRedundant: true}); err != nil {
		t.Fatal(err)
	}
	if got := tbl.SegmentCount(); got != 3 {
		t.Errorf("SegmentCount() = %d, want 3", got)
	}
	if got := tbl.ToEncodedMap().Mappings; got != "AAAA,I,IACA;" {
		t.Errorf("mappings = %q, want %q", got, "AAAA,I,IACA;")
	}
	opts := tbl.Options()
	if opts.File != "out.js" || opts.SourceRoot != "src" || !opts.SkipRedundant {
		t.Errorf("Options() = %+v", opts)
	}

	if err := tbl.Configure(Options{Version: 2}); !errors.Is(err, ErrMalformedMapping) {
		t.Errorf("Configure(version 2) error = %v", err)
	}
}

func TestStripSourcesContent(t *testing.T) {
	tbl := newTestTable(t, Options{})
	tbl.AddSource("a.js", strPtr("one"))
	tbl.StripSourcesContent()
	if _, ok := tbl.SourceContent("a.js"); ok {
		t.Error("content kept after StripSourcesContent")
	}
	if err := tbl.AddMappingAtOffset(Position{Line: 1}, "a.js", 0, ""); !errors.Is(err, ErrMissingSource) {
		t.Errorf("AddMappingAtOffset error = %v, want ErrMissingSource", err)
	}
}

// ============================================================================
// Source Content and Ignore List Tests
// ============================================================================

func TestSourceContent(t *testing.T) {
	tbl := newTestTable(t, Options{})
	tbl.AddSource("a.js", strPtr("one"))
	tbl.AddSource("b.js", nil)

	if got, ok := tbl.SourceContent("a.js"); !ok || got != "one" {
		t.Errorf("SourceContent(a.js) = %q, %v", got, ok)
	}
	if _, ok := tbl.SourceContent("b.js"); ok {
		t.Error("SourceContent(b.js) should be unset")
	}

	tbl.AddSource("a.js", nil)
	if got, _ := tbl.SourceContent("a.js"); got != "one" {
		t.Errorf("AddSource with nil content replaced content: %q", got)
	}

	tbl.SetSourceContent("a.js", "two")
	tbl.SetSourceContent("missing.js", "ignored")
	if got, _ := tbl.SourceContent("a.js"); got != "two" {
		t.Errorf("SourceContent(a.js) = %q, want two", got)
	}
	if len(tbl.Sources()) != 2 {
		t.Errorf("SetSourceContent on unknown source registered it")
	}

	m := tbl.ToEncodedMap()
	want := []*string{strPtr("two"), nil}
	if diff := cmp.Diff(want, m.SourcesContent); diff != "" {
		t.Errorf("SourcesContent mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(m.ToJSON(), `"sourcesContent":["two",null]`) {
		t.Errorf("ToJSON() = %s", m.ToJSON())
	}
}

func TestSourcesContentOmittedWhenEmpty(t *testing.T) {
	tbl := newTestTable(t, Options{})
	tbl.AddSource("a.js", nil)
	if got := tbl.ToEncodedMap().ToJSON(); strings.Contains(got, "sourcesContent") {
		t.Errorf("ToJSON() = %s, want no sourcesContent", got)
	}
}

func TestIgnoreList(t *testing.T) {
	tbl := newTestTable(t, Options{})
	tbl.AddSource("app.js", nil)
	tbl.AddSource("vendor.js", nil)
	tbl.AddSource("lib.js", nil)

	tbl.SetIgnore("lib.js", true)
	tbl.SetIgnore("vendor.js", true)
	tbl.SetIgnore("unknown.js", true)

	if diff := cmp.Diff([]int{1, 2}, tbl.IgnoreList()); diff != "" {
		t.Errorf("IgnoreList mismatch (-want +got):\n%s", diff)
	}
	if !tbl.IsIgnored("vendor.js") || tbl.IsIgnored("app.js") || tbl.IsIgnored("unknown.js") {
		t.Error("IsIgnored gave wrong answers")
	}

	tbl.SetIgnore("vendor.js", false)
	if diff := cmp.Diff([]int{2}, tbl.ToEncodedMap().IgnoreList); diff != "" {
		t.Errorf("encoded IgnoreList mismatch (-want +got):\n%s", diff)
	}
}

// ============================================================================
// Byte Offset Mapping Tests
// ============================================================================

func TestAddMappingAtOffset(t *testing.T) {
	tbl := newTestTable(t, Options{})
	tbl.AddSource("in.js", strPtr("let a = 1;\nlet b = 2;"))

	if err := tbl.AddMappingAtOffset(Position{Line: 1, Column: 0}, "in.js", 15, "b"); err != nil {
		t.Fatal(err)
	}

	d := tbl.ToDecodedMap()
	want := [][]DecodedSegment{{
		{GeneratedColumn: 0, Source: "in.js", Original: pos(2, 4), Name: "b"},
	}}
	if diff := cmp.Diff(want, d.Mappings); diff != "" {
		t.Errorf("Mappings mismatch (-want +got):\n%s", diff)
	}

	// Content changes invalidate the cached line index.
	tbl.SetSourceContent("in.js", "\n\nlet b = 2;")
	if err := tbl.AddMappingAtOffset(Position{Line: 2, Column: 0}, "in.js", 6, ""); err != nil {
		t.Fatal(err)
	}
	if got := tbl.ToDecodedMap().Mappings[1][0].Original; *got != (Position{Line: 3, Column: 4}) {
		t.Errorf("Original = %+v, want 3:4", *got)
	}

	if err := tbl.AddMappingAtOffset(Position{Line: 1}, "missing.js", 0, ""); !errors.Is(err, ErrMissingSource) {
		t.Errorf("unknown source error = %v, want ErrMissingSource", err)
	}
	tbl.AddSource("empty.js", nil)
	if err := tbl.AddMappingAtOffset(Position{Line: 1}, "empty.js", 0, ""); !errors.Is(err, ErrMissingSource) {
		t.Errorf("no content error = %v, want ErrMissingSource", err)
	}
}

// ============================================================================
// Encoding Tests
// ============================================================================

func TestCoverLinesWithoutMappings(t *testing.T) {
	build := func(cover bool) string {
		tbl := newTestTable(t, Options{CoverLinesWithoutMappings: cover})
		for _, m := range []Mapping{
			{Generated: Position{Line: 1, Column: 0}, Source: "a.js", Original: pos(1, 0)},
			{Generated: Position{Line: 3, Column: 0}, Source: "a.js", Original: pos(3, 0)},
		} {
			if err := tbl.AddMapping(m); err != nil {
				t.Fatal(err)
			}
		}
		return tbl.ToEncodedMap().Mappings
	}

	if got := build(false); got != "AAAA;;AAEA" {
		t.Errorf("uncovered mappings = %q, want %q", got, "AAAA;;AAEA")
	}
	if got := build(true); got != "AAAA;AAAA;AAEA" {
		t.Errorf("covered mappings = %q, want %q", got, "AAAA;AAAA;AAEA")
	}
}

func TestEncodedMapJSON(t *testing.T) {
	tbl := newTestTable(t, Options{File: "out.js", SourceRoot: "src/"})
	if err := tbl.AddMapping(Mapping{Generated: Position{Line: 1, Column: 6}, Source: "in.js", Original: pos(1, 6), Name: "x"}); err != nil {
		t.Fatal(err)
	}
	m := tbl.ToEncodedMap()

	var parsed EncodedMap
	if err := json.Unmarshal([]byte(m.ToJSON()), &parsed); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if diff := cmp.Diff(m, &parsed); diff != "" {
		t.Errorf("JSON roundtrip mismatch (-want +got):\n%s", diff)
	}
	if parsed.Mappings != "MAAMA" {
		t.Errorf("Mappings = %q, want %q", parsed.Mappings, "MAAMA")
	}
}

func TestEncodedMapDataURI(t *testing.T) {
	tbl := newTestTable(t, Options{File: "out.js"})
	if err := tbl.AddMapping(Mapping{Generated: Position{Line: 1, Column: 0}, Source: "in.js", Original: pos(1, 0)}); err != nil {
		t.Fatal(err)
	}
	m := tbl.ToEncodedMap()

	dataURI := m.ToDataURI()
	prefix := "data:application/json;charset=utf-8;base64,"
	if !strings.HasPrefix(dataURI, prefix) {
		t.Fatalf("Data URI should start with %q", prefix)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURI, prefix))
	if err != nil {
		t.Fatalf("Invalid base64: %v", err)
	}
	if string(decoded) != m.ToJSON() {
		t.Errorf("Data URI payload = %s, want %s", decoded, m.ToJSON())
	}

	if got := m.ToComment(true); got != "//# sourceMappingURL="+dataURI {
		t.Errorf("ToComment(true) = %q", got)
	}
	if got := m.ToComment(false); got != "//# sourceMappingURL=out.js.map" {
		t.Errorf("ToComment(false) = %q", got)
	}
}

// ============================================================================
// Parse Tests
// ============================================================================

func TestParseAAAA(t *testing.T) {
	tbl, err := Parse([]byte(`{"version":3,"sources":["a.js"],"names":[],"mappings":"AAAA"}`))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([][]Segment{{SourceSegment(0, 0, 0, 0)}}, tbl.Lines()); diff != "" {
		t.Errorf("Lines mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRoundtrip(t *testing.T) {
	input := `{"version":3,"file":"out.js","sources":["a.js","b.js"],"sourcesContent":["A",null],"names":["foo"],"mappings":"AAAA,KCCEA;;AACF","ignoreList":[1]}`
	tbl, err := Parse([]byte(input))
	if err != nil {
		t.Fatal(err)
	}
	if got := tbl.ToEncodedMap().ToJSON(); got != input {
		t.Errorf("roundtrip:\n got %s\nwant %s", got, input)
	}
	if !tbl.IsIgnored("b.js") {
		t.Error("b.js should be ignored")
	}
}

func TestParseKeepsDuplicateSources(t *testing.T) {
	tbl, err := Parse([]byte(`{"version":3,"sources":["a.js","a.js"],"names":[],"mappings":"AAAA,CCAA"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Sources()) != 2 {
		t.Errorf("Sources = %v, want both entries", tbl.Sources())
	}
	if got := tbl.ToEncodedMap().Mappings; got != "AAAA,CCAA" {
		t.Errorf("Mappings = %q, want %q", got, "AAAA,CCAA")
	}
}

func TestParseGoogleIgnoreListAlias(t *testing.T) {
	tbl, err := Parse([]byte(`{"version":3,"sources":["a.js","b.js"],"names":[],"mappings":"","x_google_ignoreList":[1]}`))
	if err != nil {
		t.Fatal(err)
	}
	if !tbl.IsIgnored("b.js") || tbl.IsIgnored("a.js") {
		t.Errorf("IgnoreList = %v, want [1]", tbl.IgnoreList())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		target error
	}{
		{"not_json", `not json`, ErrMalformedMapping},
		{"wrong_version", `{"version":2,"sources":[],"names":[],"mappings":""}`, ErrMalformedMapping},
		{"sectioned", `{"version":3,"sections":[{"offset":{"line":0,"column":0},"map":{"version":3,"sources":[],"names":[],"mappings":""}}]}`, ErrMalformedMapping},
		{"bad_mappings", `{"version":3,"sources":["a.js"],"names":[],"mappings":"AA"}`, ErrMalformedMapping},
		{"bad_vlq", `{"version":3,"sources":["a.js"],"names":[],"mappings":"A*AA"}`, ErrInvalidEncoding},
		{"source_out_of_range", `{"version":3,"sources":["a.js"],"names":[],"mappings":"ACAA"}`, ErrIndexOutOfRange},
		{"name_out_of_range", `{"version":3,"sources":["a.js"],"names":[],"mappings":"AAAAA"}`, ErrIndexOutOfRange},
		{"ignore_out_of_range", `{"version":3,"sources":["a.js"],"names":[],"mappings":"","ignoreList":[3]}`, ErrIndexOutOfRange},
		{"content_too_long", `{"version":3,"sources":["a.js"],"sourcesContent":["a","b"],"names":[],"mappings":""}`, ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if !errors.Is(err, tt.target) {
				t.Errorf("Parse error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestIsSectioned(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{`{"version":3,"sections":[]}`, true},
		{`{"version":3,"sections":null}`, false},
		{`{"version":3,"mappings":""}`, false},
		{`[]`, false},
	}
	for _, tt := range tests {
		if got := IsSectioned([]byte(tt.input)); got != tt.want {
			t.Errorf("IsSectioned(%s) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// ============================================================================
// Decoded Map Tests
// ============================================================================

func TestDecodedRoundtrip(t *testing.T) {
	tbl := newTestTable(t, Options{File: "out.js"})
	tbl.AddSource("a.js", strPtr("let a"))
	for _, m := range []Mapping{
		{Generated: Position{Line: 1, Column: 0}, Source: "a.js", Original: pos(1, 0)},
		{Generated: Position{Line: 1, Column: 4}, Source: "a.js", Original: pos(1, 4), Name: "a"},
		{Generated: Position{Line: 1, Column: 5}},
		{Generated: Position{Line: 3, Column: 2}, Source: "b.js", Original: pos(7, 1)},
	} {
		if err := tbl.AddMapping(m); err != nil {
			t.Fatal(err)
		}
	}
	tbl.SetIgnore("b.js", true)

	decoded := tbl.ToDecodedMap()
	if len(decoded.Mappings) != 3 || len(decoded.Mappings[1]) != 0 {
		t.Fatalf("decoded lines = %v", decoded.Mappings)
	}

	data, err := json.Marshal(decoded)
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseDecoded(data)
	if err != nil {
		t.Fatalf("ParseDecoded: %v", err)
	}
	if diff := cmp.Diff(tbl.ToEncodedMap(), back.ToEncodedMap()); diff != "" {
		t.Errorf("decoded roundtrip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodedRoundtripEmptySource(t *testing.T) {
	tbl, err := Parse([]byte(`{"version":3,"sources":[""],"names":["x"],"mappings":"AAAA,EAAEA;AACA"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	data, err := json.Marshal(tbl.ToDecodedMap())
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseDecoded(data)
	if err != nil {
		t.Fatalf("ParseDecoded(%s): %v", data, err)
	}
	if diff := cmp.Diff(tbl.ToEncodedMap(), back.ToEncodedMap()); diff != "" {
		t.Errorf("decoded roundtrip mismatch (-want +got):\n%s", diff)
	}
}

func TestFromDecodedErrors(t *testing.T) {
	_, err := FromDecoded(&DecodedMap{
		Version:  3,
		Mappings: [][]DecodedSegment{{{GeneratedColumn: 0, Original: pos(1, 0)}}},
	})
	if !errors.Is(err, ErrMissingSource) {
		t.Errorf("error = %v, want ErrMissingSource", err)
	}

	_, err = FromDecoded(&DecodedMap{Version: 3, Sources: []string{"a.js"}, IgnoreList: []int{1}})
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("error = %v, want ErrIndexOutOfRange", err)
	}

	if _, err := FromDecoded(&DecodedMap{Version: 4}); !errors.Is(err, ErrMalformedMapping) {
		t.Errorf("error = %v, want ErrMalformedMapping", err)
	}
}

func BenchmarkTableEncode(b *testing.B) {
	tbl, _ := NewTable(Options{})
	for line := 1; line <= 500; line++ {
		for col := 0; col < 80; col += 4 {
			tbl.AddMapping(Mapping{
				Generated: Position{Line: line, Column: col},
				Source:    "in.js",
				Original:  &Position{Line: line, Column: col},
			})
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tbl.ToEncodedMap()
	}
}
