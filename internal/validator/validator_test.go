package validator

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/HugoDaniel/srcmap/internal/diagnostic"
	"github.com/HugoDaniel/srcmap/internal/sourcemap"
)

// ============================================================================
// Fixture Tests
// ============================================================================

func TestFixtures(t *testing.T) {
	runFixtureDir(t, "testdata")
}

// ============================================================================
// Position Tests
// ============================================================================

func TestSectionPositionsShifted(t *testing.T) {
	data := `{
		"version": 3,
		"sections": [
			{"offset": {"line": 3, "column": 7}, "map": {"version": 3, "sources": [], "names": [], "mappings": "CCAA;ACAA"}}
		]
	}`
	list := Validate([]byte(data), Options{File: "bundle.js.map"})

	var got []sourcemap.Position
	for _, d := range list.Diagnostics() {
		if d.Code != diagnostic.CodeSourceIndex {
			t.Errorf("unexpected diagnostic %s", d.Error())
			continue
		}
		got = append(got, *d.Generated)
	}
	// The column offset applies to the section's first line only.
	want := []sourcemap.Position{{Line: 4, Column: 8}, {Line: 5, Column: 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(list.Diagnostics()[0].Message, "section 0: ") {
		t.Errorf("message %q lacks the section prefix", list.Diagnostics()[0].Message)
	}
}

func TestMappingsOffset(t *testing.T) {
	list := Validate([]byte(`{"version":3,"sources":["a.js"],"names":[],"mappings":"AAAA;AA!A"}`), Options{})
	if list.Count() != 1 {
		t.Fatalf("Count() = %d, want 1:\n%s", list.Count(), list.Format())
	}
	d := list.Diagnostics()[0]
	if d.Code != diagnostic.CodeBadMappings || d.Offset != 7 {
		t.Errorf("got %s at offset %d, want SM002 at offset 7", d.Code, d.Offset)
	}
}

// ============================================================================
// Option Tests
// ============================================================================

func TestFilterAndLimit(t *testing.T) {
	data := []byte(`{"version":3,"sources":["a.js","a.js"],"names":[],"mappings":"AAAA,CEAA,CCAA,CCAA"}`)

	list := Validate(data, Options{})
	if got := len(list.Errors()); got != 3 {
		t.Fatalf("Errors() = %d, want 3:\n%s", got, list.Format())
	}

	f := diagnostic.NewFilter()
	f.DisableRule(diagnostic.CodeDuplicateSource)
	f.SetRule(diagnostic.CodeSourceIndex, diagnostic.Warning)
	list = Validate(data, Options{Filter: f, Limit: 2})
	if list.HasErrors() {
		t.Errorf("HasErrors() = true after re-leveling:\n%s", list.Format())
	}
	if list.HasCode(diagnostic.CodeDuplicateSource) {
		t.Error("disabled rule still reported")
	}
	if list.Count() != 2 || list.Suppressed() != 1 {
		t.Errorf("Count/Suppressed = %d/%d, want 2/1", list.Count(), list.Suppressed())
	}
}

func TestFormatShowsOriginalLine(t *testing.T) {
	data := []byte(`{"version":3,"sources":["a.js"],"sourcesContent":["const x = 1;"],"names":[],"mappings":"AAAc"}`)
	list := Validate(data, Options{File: "out.js.map"})

	want := "out.js.map:1:0: warning SM008: original column 14 beyond the length 12 of a.js:1\n" +
		"  --> a.js:1:14\n" +
		"    const x = 1;\n" +
		"                ^\n"
	if got := list.Format(); got != want {
		t.Errorf("Format() =\n%s\nwant\n%s", got, want)
	}
}

func TestXGoogleIgnoreList(t *testing.T) {
	data := []byte(`{"version":3,"sources":["a.js"],"names":[],"mappings":"","x_google_ignoreList":[3]}`)
	list := Validate(data, Options{})
	if !list.HasCode(diagnostic.CodeIgnoreIndex) {
		t.Errorf("x_google_ignoreList not checked:\n%s", list.Format())
	}
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkValidate(b *testing.B) {
	var sb strings.Builder
	sb.WriteString(`{"version":3,"sources":["a.js"],"names":["n"],"mappings":"`)
	for i := 0; i < 2000; i++ {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString("AACAA,EAAEA,EAAEA")
	}
	sb.WriteString(`"}`)
	data := []byte(sb.String())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Validate(data, Options{})
	}
}
