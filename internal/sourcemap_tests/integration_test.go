package sourcemap_tests

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/HugoDaniel/srcmap/internal/remap"
	"github.com/HugoDaniel/srcmap/internal/rewrite"
	"github.com/HugoDaniel/srcmap/internal/sourcemap"
	"github.com/HugoDaniel/srcmap/internal/tracemap"
	"github.com/HugoDaniel/srcmap/internal/validator"
)

const original = "let answer = 42;\nlog(answer);"

// pipeline runs two transforms over original: a rename producing mid.js and
// a header insert producing out.js. It returns both maps and the output.
func pipeline(t *testing.T) (outer, inner *sourcemap.Table, output string) {
	t.Helper()

	rename := rewrite.New(original, rewrite.Options{Source: "src.ts", NameTokens: true, IncludeContent: true})
	must(t, rename.Overwrite(4, 10, "a"))
	must(t, rename.Overwrite(21, 27, "a"))
	inner, err := rename.Map("mid.js")
	must(t, err)

	mid := rename.String()
	if mid != "let a = 42;\nlog(a);" {
		t.Fatalf("rename output = %q", mid)
	}

	header := rewrite.New(mid, rewrite.Options{Source: "mid.js", Hires: true})
	header.Prepend("\"use strict\";\n")
	outer, err = header.Map("out.js")
	must(t, err)

	return outer, inner, header.String()
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

// roundTrip serializes a table and parses it back, as a consumer would.
func roundTrip(t *testing.T, tbl *sourcemap.Table) (*tracemap.Map, []byte) {
	t.Helper()
	data, err := json.Marshal(tbl.ToEncodedMap())
	must(t, err)
	m, err := tracemap.Parse(data)
	must(t, err)
	return m, data
}

// ============================================================================
// Pipeline Tests
// ============================================================================

func TestComposedPipeline(t *testing.T) {
	outerTbl, innerTbl, output := pipeline(t)
	if output != "\"use strict\";\nlet a = 42;\nlog(a);" {
		t.Fatalf("output = %q", output)
	}

	outer, _ := roundTrip(t, outerTbl)
	inner, _ := roundTrip(t, innerTbl)

	composed, err := remap.Compose(outer, func(source string) (*tracemap.Map, bool) {
		return inner, source == "mid.js"
	})
	must(t, err)
	m, data := roundTrip(t, composed)

	if got := m.File(); got != "out.js" {
		t.Errorf("File() = %q, want out.js", got)
	}
	if diff := cmp.Diff([]string{"src.ts"}, m.Sources()); diff != "" {
		t.Errorf("Sources mismatch (-want +got):\n%s", diff)
	}
	if content, ok := m.SourceContentFor("src.ts"); !ok || content != original {
		t.Errorf("SourceContentFor(src.ts) = %q, %v", content, ok)
	}

	lookups := []struct {
		gen  sourcemap.Position
		want *tracemap.OriginalPosition
	}{
		{sourcemap.Position{Line: 1, Column: 0}, nil},
		{sourcemap.Position{Line: 2, Column: 4}, &tracemap.OriginalPosition{Source: "src.ts", Line: 1, Column: 4, Name: "answer"}},
		{sourcemap.Position{Line: 3, Column: 0}, &tracemap.OriginalPosition{Source: "src.ts", Line: 2, Column: 0, Name: "log"}},
		{sourcemap.Position{Line: 3, Column: 4}, &tracemap.OriginalPosition{Source: "src.ts", Line: 2, Column: 4, Name: "answer"}},
	}
	for _, l := range lookups {
		t.Run(fmt.Sprintf("%d:%d", l.gen.Line, l.gen.Column), func(t *testing.T) {
			if diff := cmp.Diff(l.want, m.OriginalPositionFor(l.gen)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	gen := m.GeneratedPositionFor(tracemap.OriginalPosition{Source: "src.ts", Line: 2, Column: 4})
	if diff := cmp.Diff(&sourcemap.Position{Line: 3, Column: 4}, gen); diff != "" {
		t.Errorf("GeneratedPositionFor mismatch (-want +got):\n%s", diff)
	}

	list := validator.Validate(data, validator.Options{File: "out.js.map"})
	if list.Count() != 0 {
		t.Errorf("composed map has diagnostics:\n%s", list.Format())
	}
}

func TestChainMatchesCompose(t *testing.T) {
	outerTbl, innerTbl, _ := pipeline(t)
	outer, _ := roundTrip(t, outerTbl)
	inner, _ := roundTrip(t, innerTbl)

	byName, err := remap.Compose(outer, func(source string) (*tracemap.Map, bool) {
		return inner, source == "mid.js"
	})
	must(t, err)
	chained, err := remap.Chain(outer, inner)
	must(t, err)

	if diff := cmp.Diff(byName.ToEncodedMap(), chained.ToEncodedMap()); diff != "" {
		t.Errorf("Chain differs from Compose (-compose +chain):\n%s", diff)
	}
}

func TestDecodedRoundTrip(t *testing.T) {
	outerTbl, _, _ := pipeline(t)

	data, err := json.Marshal(outerTbl.ToDecodedMap())
	must(t, err)
	back, err := sourcemap.ParseDecoded(data)
	must(t, err)

	if diff := cmp.Diff(outerTbl.ToEncodedMap(), back.ToEncodedMap()); diff != "" {
		t.Errorf("decoded round trip mismatch (-want +got):\n%s", diff)
	}
}

// ============================================================================
// Sectioned Map Tests
// ============================================================================

func TestSectionedPipeline(t *testing.T) {
	_, innerTbl, _ := pipeline(t)
	section, err := json.Marshal(innerTbl.ToEncodedMap())
	must(t, err)

	// Two bundled copies of mid.js, the second starting on line 3.
	data := []byte(fmt.Sprintf(`{"version":3,"file":"bundle.js","sections":[
		{"offset":{"line":0,"column":0},"map":%s},
		{"offset":{"line":2,"column":0},"map":%s}
	]}`, section, section))

	if list := validator.Validate(data, validator.Options{File: "bundle.js.map"}); list.Count() != 0 {
		t.Fatalf("sectioned map has diagnostics:\n%s", list.Format())
	}

	m, err := tracemap.Parse(data)
	must(t, err)
	want := &tracemap.OriginalPosition{Source: "src.ts", Line: 1, Column: 4, Name: "answer"}
	for _, line := range []int{1, 3} {
		got := m.OriginalPositionFor(sourcemap.Position{Line: line, Column: 4})
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("line %d mismatch (-want +got):\n%s", line, diff)
		}
	}

	flat, data := roundTrip(t, mustTable(t, m))
	if diff := cmp.Diff(m.Decoded().Mappings, flat.Decoded().Mappings); diff != "" {
		t.Errorf("flattened mappings mismatch (-want +got):\n%s", diff)
	}
	if list := validator.Validate(data, validator.Options{File: "flat.js.map"}); list.Count() != 0 {
		t.Errorf("flattened map has diagnostics:\n%s", list.Format())
	}
}

func mustTable(t *testing.T, m *tracemap.Map) *sourcemap.Table {
	t.Helper()
	tbl, err := m.Table()
	must(t, err)
	return tbl
}
