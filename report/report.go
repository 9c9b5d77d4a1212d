// Package report builds the always-written JSON diagnostics report that
// accompanies a compile, grounded on vartan's own
// compiled-grammar-plus-report.json pattern (cmd/vartan/compile.go's
// writeCompiledGrammarAndReport): one artifact for the thing that was
// built, one sibling report for how building it went.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	verr "github.com/tmc-lang/tmc/error"
	"github.com/tmc-lang/tmc/graph"
)

// Warning is the JSON projection of a *verr.SpecError: flattened to plain
// fields since error's Cause is an interface and doesn't marshal usefully
// on its own.
type Warning struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	File     string `json:"file,omitempty"`
	Row      int    `json:"row,omitempty"`
	Col      int    `json:"col,omitempty"`
}

// Report is the diagnostics artifact written alongside every compiled
// table (SPEC_FULL.md §4.10).
type Report struct {
	RunID           string    `json:"run_id"`
	Warnings        []Warning `json:"warnings"`
	StateCount      int       `json:"state_count"`
	TransitionCount int       `json:"transition_count"`
	DedupMerges     int       `json:"dedup_merges"`
}

// New builds a Report from a compiled graph and the warnings accumulated
// while specializing it, stamping a fresh run ID so two compiles of the
// same source are still distinguishable in a report archive.
func New(g *graph.Graph, warnings []*verr.SpecError) *Report {
	transitions := 0
	for _, st := range g.States {
		transitions += len(st.Trans)
	}
	ws := make([]Warning, len(warnings))
	for i, w := range warnings {
		ws[i] = Warning{Message: w.Error(), Severity: w.Severity.String(), File: w.File, Row: w.Row, Col: w.Col}
	}
	return &Report{
		RunID:           uuid.New().String(),
		Warnings:        ws,
		StateCount:      len(g.States),
		TransitionCount: transitions,
		DedupMerges:     g.DedupMerges,
	}
}

// Write marshals r to w as indented JSON followed by a trailing newline.
func (r *Report) Write(w io.Writer) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

// WriteFile writes r to path, creating or truncating it, the same
// O_WRONLY|O_CREATE|O_TRUNC pattern vartan's writeCompiledGrammarAndReport
// uses for both halves of its output.
func (r *Report) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.Write(f)
}

// SidecarPath returns the report path vartan's naming convention would
// assign an artifact written to artifactPath: the same directory, the same
// base name minus its extension, with "-report.json" appended.
func SidecarPath(artifactPath string) string {
	dir, base := filepath.Split(artifactPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	return filepath.Join(dir, name+"-report.json")
}
