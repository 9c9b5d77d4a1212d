package resolve

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/tmc-lang/tmc/ast"
	verr "github.com/tmc-lang/tmc/error"
)

// memSource resolves imports against an in-memory fixture keyed by import
// path, so these tests don't touch the filesystem.
type memSource struct {
	files map[string]string
}

func (m memSource) Open(base, importPath string, roots []string) (string, io.Reader, error) {
	src, ok := m.files[importPath]
	if !ok {
		return "", nil, errors.New("no such file: " + importPath)
	}
	return importPath, strings.NewReader(src), nil
}

func TestResolveMergesImportedBindings(t *testing.T) {
	src := memSource{files: map[string]string{
		"util.tmc": "let id = x: x, in id",
	}}
	entry := "import 'util.tmc'\nlet main = id, in main"

	prog, err := Resolve(src, "entry.tmc", strings.NewReader(entry), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := prog.Bindings["id"]; !ok {
		t.Fatalf("expected imported binding %q to be visible, got %v", "id", keys(prog.Bindings))
	}
	if _, ok := prog.Bindings["main"]; !ok {
		t.Fatalf("expected entry binding %q to be visible", "main")
	}
}

func TestResolveEntryBindingShadowsImport(t *testing.T) {
	src := memSource{files: map[string]string{
		"util.tmc": "let id = x: x, in id",
	}}
	entry := "import 'util.tmc'\nlet id = y: y, in id"

	prog, err := Resolve(src, "entry.tmc", strings.NewReader(entry), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got := prog.Bindings["id"]
	if got == nil || got.Value == nil {
		t.Fatalf("expected entry's own 'id' binding to win")
	}
}

func TestResolveRejectsImportCycle(t *testing.T) {
	src := memSource{files: map[string]string{
		"a.tmc": "import 'b.tmc'\nlet a = x: x, in a",
		"b.tmc": "import 'a.tmc'\nlet b = x: x, in b",
	}}
	entry := "import 'a.tmc'\nlet main = a, in main"

	_, err := Resolve(src, "entry.tmc", strings.NewReader(entry), nil)
	if err == nil {
		t.Fatalf("expected an import cycle error")
	}
	var se *verr.SpecError
	if !errors.As(err, &se) {
		t.Fatalf("expected *verr.SpecError, got %T: %v", err, err)
	}
	if !errors.Is(se, verr.ErrImportCycle) {
		t.Fatalf("expected ErrImportCycle, got %v", se.Cause)
	}
	if !strings.Contains(se.Detail, "entry.tmc:1:") {
		t.Errorf("expected Detail to cite the import that first reached a.tmc, from entry.tmc: %q", se.Detail)
	}
	if !strings.Contains(se.Detail, "b.tmc:1:") {
		t.Errorf("expected Detail to cite the import that closes the cycle, from b.tmc: %q", se.Detail)
	}
}

func TestResolveRejectsUnboundIdentifier(t *testing.T) {
	entry := "let main = x: y, in main"

	_, err := Resolve(memSource{}, "entry.tmc", strings.NewReader(entry), nil)
	if err == nil {
		t.Fatalf("expected an unbound identifier error")
	}
	var se *verr.SpecError
	if !errors.As(err, &se) {
		t.Fatalf("expected *verr.SpecError, got %T: %v", err, err)
	}
	if !errors.Is(se, verr.ErrUnboundIdentifier) {
		t.Fatalf("expected ErrUnboundIdentifier, got %v", se.Cause)
	}
	if se.Detail != "y" {
		t.Fatalf("expected the offending name %q in Detail, got %q", "y", se.Detail)
	}
}

func TestResolveAllowsSelfReferenceThroughFixpoint(t *testing.T) {
	entry := "let main = Y f: x: f x, in main"

	_, err := Resolve(memSource{}, "entry.tmc", strings.NewReader(entry), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
}

func keys(m map[string]*ast.Binding) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
