// Package compiler wires the full pipeline together: lex/parse, resolve
// imports, specialize to tape IR, build the state graph, and emit awmorp —
// the single entry point cmd/tmc and the test suite both call, grounded on
// the orchestration vartan's cmd/vartan/compile.go does inline (read a
// source, build it, write the artifact and its report).
package compiler

import (
	"bytes"
	"io"

	"github.com/tmc-lang/tmc/alphabet"
	"github.com/tmc-lang/tmc/emit"
	"github.com/tmc-lang/tmc/graph"
	"github.com/tmc-lang/tmc/report"
	"github.com/tmc-lang/tmc/resolve"
	"github.com/tmc-lang/tmc/specialize"
)

// Options configures one compile: the alphabet to compile against, the
// import search roots, and whether ambiguous/non-exhaustive matches are
// hard errors (spec.md §9, threaded here from either the CLI flag or
// tmc.toml's strict_match_exhaustiveness).
type Options struct {
	Alphabet []string
	Roots    []string
	Strict   bool
}

// Result is everything a single compile produces: the deduplicated
// graph, its awmorp text, and the sidecar report.
type Result struct {
	Graph  *graph.Graph
	Table  string
	Report *report.Report
}

// Compile runs entryContent (the file at entryPath) through the full
// pipeline and returns the compiled Result, or the first *verr.SpecError
// any pass raised.
func Compile(src resolve.Source, entryPath string, entryContent io.Reader, opts Options) (*Result, error) {
	alpha, err := alphabet.New(opts.Alphabet)
	if err != nil {
		return nil, err
	}

	prog, err := resolve.Resolve(src, entryPath, entryContent, opts.Roots)
	if err != nil {
		return nil, err
	}

	sres, err := specialize.Specialize(prog, alpha, specialize.Options{Strict: opts.Strict})
	if err != nil {
		return nil, err
	}

	g, err := graph.Build(sres.Table, alpha)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := emit.Emit(&buf, g); err != nil {
		return nil, err
	}

	return &Result{
		Graph:  g,
		Table:  buf.String(),
		Report: report.New(g, sres.Warnings),
	}, nil
}
