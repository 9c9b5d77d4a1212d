// Package resolve implements the name resolver and import linker
// (spec.md §4.3): it merges an entry file's bindings with those pulled in
// transitively through `import`, rejects cycles, and fails closed on any
// free identifier that is not bound anywhere in scope.
package resolve

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tmc-lang/tmc/ast"
	verr "github.com/tmc-lang/tmc/error"
	"github.com/tmc-lang/tmc/parser"
)

// Source abstracts file access so tests can resolve imports against an
// in-memory fixture instead of the real filesystem; the CLI wires Source
// to OSSource, which is the only part of this package that touches disk.
type Source interface {
	// Open resolves importPath relative to base (the importing file's own
	// path, or "" for the entry file) against the search roots, in the
	// order given, and returns the first match's canonical path and
	// contents.
	Open(base, importPath string, roots []string) (canonicalPath string, content io.Reader, err error)
}

// OSSource resolves imports against the real filesystem.
type OSSource struct{}

func (OSSource) Open(base, importPath string, roots []string) (string, io.Reader, error) {
	candidates := make([]string, 0, len(roots)+1)
	if base != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(base), importPath))
	}
	for _, r := range roots {
		candidates = append(candidates, filepath.Join(r, importPath))
	}
	var firstErr error
	for _, c := range candidates {
		f, err := os.Open(c)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		abs, err := filepath.Abs(c)
		if err != nil {
			abs = c
		}
		return abs, f, nil
	}
	return "", nil, fmt.Errorf("cannot find %q relative to %q or any of %v: %w", importPath, base, roots, firstErr)
}

// Program is the result of resolving an entry file: every binding reachable
// from it (directly or through imports), and the entry file's own body
// expression, which the specializer treats as the program's entry point.
type Program struct {
	// Bindings maps every visible identifier to the binding that defines
	// it. Names bound directly in the entry file shadow same-named
	// bindings pulled in via import; among imports, the binding from the
	// import statement that appears later in the entry file wins (the
	// grammar gives no import-aliasing syntax, so collisions are resolved
	// by simple precedence rather than treated as a distinct error kind —
	// spec.md's fixed error taxonomy has no "duplicate binding" case).
	Bindings map[string]*ast.Binding
	Body     ast.Expr
	Entry    string
}

type fileNode struct {
	path string
	file *ast.File
}

type color int

const (
	white color = iota
	gray
	black
)

// Resolve loads entryContent (already read by the caller) as the entry
// file at entryPath, follows its imports against roots, and returns the
// merged Program or the first *verr.SpecError encountered.
func Resolve(src Source, entryPath string, entryContent io.Reader, roots []string) (*Program, error) {
	l := &linker{
		src:       src,
		roots:     roots,
		files:     map[string]*fileNode{},
		colors:    map[string]color{},
		enteredBy: map[string]importEdge{},
	}

	entryFile, err := parser.Parse(entryContent)
	if err != nil {
		return nil, attachFile(err, entryPath)
	}
	entryNode := &fileNode{path: entryPath, file: entryFile}
	l.files[entryPath] = entryNode

	merged := map[string]*ast.Binding{}
	if err := l.visit(entryNode, "", nil); err != nil {
		return nil, err
	}
	if err := l.collect(entryNode, merged, map[string]bool{}); err != nil {
		return nil, err
	}

	if err := checkUnbound(entryFile.Body, scopeOf(merged)); err != nil {
		return nil, attachFile(err, entryPath)
	}
	for _, b := range merged {
		if b.Value == nil {
			continue
		}
		if err := checkUnbound(b.Value, scopeOf(merged)); err != nil {
			return nil, attachFile(err, entryPath)
		}
	}

	return &Program{Bindings: merged, Body: entryFile.Body, Entry: entryPath}, nil
}

// importEdge is one `import` statement, together with the path of the file
// it appears in — enough to cite a span that belongs to the right file.
type importEdge struct {
	fromPath string
	imp      *ast.Import
}

type linker struct {
	src    Source
	roots  []string
	files  map[string]*fileNode
	colors map[string]color

	// enteredBy records, for every file reached through an import, the
	// edge that first colored it gray. A later cycle detection cites this
	// alongside the edge that revisits the still-gray node, so the
	// diagnostic names both ends of the cycle (spec.md §8 scenario 5).
	enteredBy map[string]importEdge
}

// visit walks the import graph depth-first, detecting cycles (gray node
// revisited) and loading+parsing each file exactly once. fromPath/via
// identify the import statement that led here: fromPath is the path of the
// file containing it, via is the statement itself (both nil/"" for the
// entry file, which no import led to).
func (l *linker) visit(n *fileNode, fromPath string, via *ast.Import) error {
	switch l.colors[n.path] {
	case gray:
		detail := fmt.Sprintf("import cycle involving %q", n.path)
		if entry, ok := l.enteredBy[n.path]; ok && via != nil {
			detail = fmt.Sprintf(
				"%s: first imported at %s:%d:%d, reimported while still resolving at %s:%d:%d",
				detail,
				entry.fromPath, entry.imp.Pos.Row, entry.imp.Pos.Col,
				fromPath, via.Pos.Row, via.Pos.Col,
			)
		}
		return &verr.SpecError{Cause: verr.ErrImportCycle, File: n.path, Detail: detail}
	case black:
		return nil
	}
	if via != nil {
		l.enteredBy[n.path] = importEdge{fromPath: fromPath, imp: via}
	}
	l.colors[n.path] = gray
	defer func() { l.colors[n.path] = black }()

	for _, imp := range n.file.Imports {
		childPath, content, err := l.src.Open(n.path, imp.Path, l.roots)
		if err != nil {
			return &verr.SpecError{Cause: verr.ErrImportCycle, File: n.path, Row: imp.Pos.Row, Col: imp.Pos.Col, Detail: fmt.Sprintf("cannot resolve import %q: %v", imp.Path, err)}
		}
		child, ok := l.files[childPath]
		if !ok {
			childFile, err := parser.Parse(content)
			if err != nil {
				return attachFile(err, childPath)
			}
			child = &fileNode{path: childPath, file: childFile}
			l.files[childPath] = child
		}
		if err := l.visit(child, n.path, imp); err != nil {
			return err
		}
	}
	return nil
}

// collect merges n's bindings (and transitively its imports' bindings)
// into merged, in import order, so later imports and the file's own
// bindings take precedence over earlier ones (see Program.Bindings doc).
func (l *linker) collect(n *fileNode, merged map[string]*ast.Binding, visited map[string]bool) error {
	if visited[n.path] {
		return nil
	}
	visited[n.path] = true

	for _, imp := range n.file.Imports {
		childPath, _, err := l.src.Open(n.path, imp.Path, l.roots)
		if err != nil {
			return &verr.SpecError{Cause: verr.ErrImportCycle, File: n.path, Row: imp.Pos.Row, Col: imp.Pos.Col, Detail: fmt.Sprintf("cannot resolve import %q: %v", imp.Path, err)}
		}
		child := l.files[childPath]
		if err := l.collect(child, merged, visited); err != nil {
			return err
		}
	}
	for _, b := range n.file.Bindings {
		merged[b.Name] = b
	}
	return nil
}

// builtinNames are the tape primitives the specializer recognizes by name
// (spec.md §4.4): they have no binding site of their own, so the resolver
// seeds every program's root scope with them rather than rejecting them as
// unbound.
var builtinNames = []string{"next", "prev", "get", "set"}

type scope struct {
	names  map[string]bool
	parent *scope
}

func scopeOf(bindings map[string]*ast.Binding) *scope {
	s := &scope{names: map[string]bool{}}
	for _, n := range builtinNames {
		s.names[n] = true
	}
	for name := range bindings {
		s.names[name] = true
	}
	return s
}

func (s *scope) has(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.names[name] {
			return true
		}
	}
	return false
}

func (s *scope) child(names ...string) *scope {
	c := &scope{names: map[string]bool{}, parent: s}
	for _, n := range names {
		c.names[n] = true
	}
	return c
}

// checkUnbound walks expr verifying every Ident resolves in s, extended by
// lambda parameters and nested let-group bindings as they come into scope.
// Resolve calls it once over the entry file's body and once more over each
// top-level binding's own value, so a binding that is never referenced is
// still checked (spec.md does not exempt dead code from name resolution).
func checkUnbound(e ast.Expr, s *scope) error {
	switch n := e.(type) {
	case *ast.Ident:
		if !s.has(n.Name) {
			return &verr.SpecError{Cause: verr.ErrUnboundIdentifier, Row: n.Pos.Row, Col: n.Pos.Col, Detail: n.Name}
		}
		return nil
	case *ast.SymbolLit:
		return nil
	case *ast.Union:
		for _, el := range n.Elems {
			if err := checkUnbound(el, s); err != nil {
				return err
			}
		}
		return nil
	case *ast.Lambda:
		return checkUnbound(n.Body, s.child(n.Param))
	case *ast.App:
		if err := checkUnbound(n.Fn, s); err != nil {
			return err
		}
		return checkUnbound(n.Arg, s)
	case *ast.LetGroup:
		names := make([]string, len(n.Bindings))
		for i, b := range n.Bindings {
			names[i] = b.Name
		}
		inner := s.child(names...)
		for _, b := range n.Bindings {
			if b.Value != nil {
				if err := checkUnbound(b.Value, inner); err != nil {
					return err
				}
			}
		}
		return checkUnbound(n.Body, inner)
	case *ast.Match:
		if err := checkUnbound(n.Scrutinee, s); err != nil {
			return err
		}
		for _, arm := range n.Arms {
			for _, el := range arm.Pattern.Elems {
				if err := checkUnbound(el, s); err != nil {
					return err
				}
			}
			if err := checkUnbound(arm.Body, s); err != nil {
				return err
			}
		}
		return nil
	case *ast.Fixpoint:
		return checkUnbound(n.Body, s.child(n.Self))
	default:
		return fmt.Errorf("%w: unknown expression node %T", verr.ErrInternal, e)
	}
}

func attachFile(err error, path string) error {
	se, ok := err.(*verr.SpecError)
	if !ok {
		return err
	}
	return se.WithFile(path)
}
