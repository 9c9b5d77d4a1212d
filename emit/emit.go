// Package emit serializes a compiled state graph into the awmorp
// transition-table format (spec.md §4.6) and parses it back, so the CLI's
// inspector and the test suite's round-trip property can both read a table
// tmc itself wrote.
package emit

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/tmc-lang/tmc/alphabet"
	verr "github.com/tmc-lang/tmc/error"
	"github.com/tmc-lang/tmc/graph"
)

const (
	blankGlyph    = "_"
	wildcardGlyph = "*"
)

// Emit writes g as a line-oriented awmorp table: one
// "<state> <read> <write> <move> <next-state>" line per transition,
// grouped by source state (start state "0" first, then ascending numeric
// order), sorted by read symbol within a state, with a blank line between
// states. A state all of whose transitions for some set of symbols share
// one (write, move, next) triple collapses that set to a single trailing
// "*" row, chosen deterministically when more than one triple would
// qualify, so two calls to Emit on the same Graph produce byte-identical
// output (spec.md §8, "specialization is deterministic").
func Emit(w io.Writer, g *graph.Graph) error {
	bw := bufio.NewWriter(w)
	ids := orderedStateIDs(g)
	for i, id := range ids {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		for _, r := range compact(g.States[id]) {
			fmt.Fprintf(bw, "%s %s %s %s %s\n", id, r.read, r.write, r.move, r.next)
		}
	}
	return bw.Flush()
}

func orderedStateIDs(g *graph.Graph) []string {
	ids := make([]string, 0, len(g.States))
	for id := range g.States {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i] == g.Start {
			return true
		}
		if ids[j] == g.Start {
			return false
		}
		ni, ei := strconv.Atoi(ids[i])
		nj, ej := strconv.Atoi(ids[j])
		if ei == nil && ej == nil {
			return ni < nj
		}
		return ids[i] < ids[j]
	})
	return ids
}

type row struct{ read, write, move, next string }

type sig struct {
	write alphabet.Symbol
	move  graph.Move
	next  string
}

// compact picks the largest (write, move, next) group shared by st's
// transitions and replaces it with a single "*" row, breaking ties on
// group size by sorting candidate signatures into a fixed order.
func compact(st *graph.State) []row {
	syms := make([]alphabet.Symbol, 0, len(st.Trans))
	for s := range st.Trans {
		syms = append(syms, s)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })

	counts := map[sig]int{}
	for _, s := range syms {
		tr := st.Trans[s]
		counts[sig{tr.Write, tr.Move, tr.Next}]++
	}

	type candidate struct {
		sig   sig
		count int
	}
	var cands []candidate
	for k, c := range counts {
		cands = append(cands, candidate{k, c})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].count != cands[j].count {
			return cands[i].count > cands[j].count
		}
		a, b := cands[i].sig, cands[j].sig
		if a.write != b.write {
			return a.write < b.write
		}
		if a.move != b.move {
			return a.move < b.move
		}
		return a.next < b.next
	})

	var majority sig
	compactible := len(cands) > 0 && cands[0].count > 1
	if compactible {
		majority = cands[0].sig
	}

	var rows []row
	sawMajority := false
	for _, s := range syms {
		tr := st.Trans[s]
		k := sig{tr.Write, tr.Move, tr.Next}
		if compactible && k == majority {
			sawMajority = true
			continue
		}
		rows = append(rows, row{read: glyph(s), write: glyph(tr.Write), move: tr.Move.String(), next: tr.Next})
	}
	if sawMajority {
		rows = append(rows, row{read: wildcardGlyph, write: glyph(majority.write), move: majority.move.String(), next: majority.next})
	}
	return rows
}

func glyph(s alphabet.Symbol) string {
	if rune(s) == alphabet.Blank {
		return blankGlyph
	}
	return string(rune(s))
}

// Row is one parsed awmorp transition: a literal symbol read, or the
// wildcard "*" meaning "any symbol this state doesn't list explicitly".
type Row struct {
	Read  string
	Write string
	Move  string
	Next  string
}

// Table is a parsed awmorp program: every state's explicit rows plus its
// optional wildcard row, keyed by state name.
type Table struct {
	Start    string
	Accept   string
	Reject   string
	Explicit map[string]map[string]Row
	Wildcard map[string]Row
}

// Lookup returns the transition Table applies for (state, read), checking
// the explicit row for read first and falling back to the state's
// wildcard row, mirroring how the emitted "*" row is meant to be read.
func (t *Table) Lookup(state, read string) (Row, bool) {
	if rows, ok := t.Explicit[state]; ok {
		if r, ok := rows[read]; ok {
			return r, true
		}
	}
	if r, ok := t.Wildcard[state]; ok {
		return r, true
	}
	return Row{}, false
}

// Parse reads an awmorp table written by Emit (or by a human, or by the
// reference web emulator's own dialect of it): blank lines separate
// states, ";" starts a comment to end of line, and each remaining line is
// "<state> <read> <write> <move> <next-state>".
func Parse(r io.Reader) (*Table, error) {
	t := &Table{Start: "0", Accept: "halt", Reject: "halt-reject", Explicit: map[string]map[string]Row{}, Wildcard: map[string]Row{}}
	sc := bufio.NewScanner(r)
	row := 0
	for sc.Scan() {
		row++
		line := sc.Text()
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 5 {
			return nil, &verr.SpecError{Cause: verr.ErrUnexpectedToken, Row: row, Detail: fmt.Sprintf("expected 5 fields, got %d: %q", len(fields), line)}
		}
		state, read, write, move, next := fields[0], fields[1], fields[2], fields[3], fields[4]
		r := Row{Read: read, Write: write, Move: move, Next: next}
		if read == wildcardGlyph {
			t.Wildcard[state] = r
			continue
		}
		if t.Explicit[state] == nil {
			t.Explicit[state] = map[string]Row{}
		}
		t.Explicit[state][read] = r
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}
