package validator

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/HugoDaniel/srcmap/internal/diagnostic"
)

// fixture is a map under testdata/ with the expectations from its .expect
// sidecar file.
type fixture struct {
	Name     string
	MapPath  string
	Data     []byte
	Valid    bool
	Expected []expectedDiagnostic
}

type expectedDiagnostic struct {
	Severity diagnostic.Severity
	Code     diagnostic.Code
	Pattern  string // substring to match in the message
}

// Annotation patterns for .expect files.
var (
	expectValidRe = regexp.MustCompile(`^@expect-valid\b`)
	expectRe      = regexp.MustCompile(`^@expect-(error|warning|info)\s+(SM\d{3})(?:\s+"([^"]*)")?`)
	testNameRe    = regexp.MustCompile(`^#\s*test:\s*(.+)`)
)

// parseFixture reads a .map file and its .expect sidecar.
func parseFixture(mapPath string) (*fixture, error) {
	data, err := os.ReadFile(mapPath)
	if err != nil {
		return nil, err
	}
	fx := &fixture{
		Name:    filepath.Base(mapPath),
		MapPath: mapPath,
		Data:    data,
	}

	expect, err := os.Open(strings.TrimSuffix(mapPath, ".map") + ".expect")
	if err != nil {
		return nil, err
	}
	defer expect.Close()

	scanner := bufio.NewScanner(expect)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if match := testNameRe.FindStringSubmatch(line); match != nil {
			fx.Name = strings.TrimSpace(match[1])
		}
		if expectValidRe.MatchString(line) {
			fx.Valid = true
		}
		if match := expectRe.FindStringSubmatch(line); match != nil {
			sev, _ := diagnostic.ParseSeverity(match[1])
			fx.Expected = append(fx.Expected, expectedDiagnostic{
				Severity: sev,
				Code:     diagnostic.Code(match[2]),
				Pattern:  match[3],
			})
		}
	}
	return fx, scanner.Err()
}

// runFixture validates a fixture and checks the expected diagnostics.
func runFixture(t *testing.T, fx *fixture) {
	t.Helper()

	list := Validate(fx.Data, Options{File: filepath.Base(fx.MapPath)})

	if fx.Valid && list.HasErrors() {
		t.Errorf("%s: expected a valid map, got %d error(s):\n%s", fx.Name, list.ErrorCount(), list.Format())
	}
	if !fx.Valid && !list.HasErrors() && hasExpectedErrors(fx) {
		t.Errorf("%s: expected errors, but validation passed", fx.Name)
		return
	}

	for _, expected := range fx.Expected {
		found := false
		for _, actual := range list.Diagnostics() {
			if actual.Severity != expected.Severity || actual.Code != expected.Code {
				continue
			}
			if expected.Pattern != "" && !strings.Contains(actual.Message, expected.Pattern) {
				continue
			}
			found = true
			break
		}
		if !found {
			t.Errorf("%s: expected %s not found: code=%s pattern=%q\ngot:\n%s",
				fx.Name, expected.Severity, expected.Code, expected.Pattern, list.Format())
		}
	}
}

func hasExpectedErrors(fx *fixture) bool {
	for _, e := range fx.Expected {
		if e.Severity == diagnostic.Error {
			return true
		}
	}
	return false
}

// runFixtureDir runs all .map fixtures in a directory, recursing into
// subdirectories.
func runFixtureDir(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read fixture directory %s: %v", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			t.Run(entry.Name(), func(t *testing.T) {
				runFixtureDir(t, path)
			})
			continue
		}
		if filepath.Ext(entry.Name()) != ".map" {
			continue
		}
		fx, err := parseFixture(path)
		if err != nil {
			t.Errorf("failed to parse fixture %s: %v", path, err)
			continue
		}
		t.Run(strings.TrimSuffix(entry.Name(), ".map"), func(t *testing.T) {
			runFixture(t, fx)
		})
	}
}
