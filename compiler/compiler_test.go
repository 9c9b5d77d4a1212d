package compiler

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tmc-lang/tmc/alphabet"
	"github.com/tmc-lang/tmc/emit"
	"github.com/tmc-lang/tmc/simulate"
)

// memSource resolves imports against an in-memory fixture, mirroring
// resolve's own test helper, so these tests never touch the filesystem.
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

// TestCompileNegatesBit covers the full pipeline end to end against the
// boolean-negation program from spec.md §8.
func TestCompileNegatesBit(t *testing.T) {
	src := "let main = x: match get x { '0' > set '1' x, '1' > set '0' x }, in main"

	res, err := Compile(memSource{}, "main.tmc", strings.NewReader(src), Options{Alphabet: []string{"0", "1"}})
	require.NoError(t, err)
	require.NotEmpty(t, res.Table)
	require.Equal(t, len(res.Graph.States), res.Report.StateCount)

	tbl, err := emit.Parse(strings.NewReader(res.Table))
	require.NoError(t, err)

	sim, err := simulate.Run(tbl, "0", rune(alphabet.Blank), 100)
	require.NoError(t, err)
	require.True(t, sim.Accepted)
	require.Equal(t, "1", sim.FinalTape)
}

// TestCompilePropagatesImports covers that Compile threads the resolver's
// Source through the whole pipeline.
func TestCompilePropagatesImports(t *testing.T) {
	src := memSource{files: map[string]string{
		"flip.tmc": "let flip = x: match get x { '0' > set '1' x, '1' > set '0' x }, in flip",
	}}
	entry := "import 'flip.tmc'\nlet main = flip, in main"

	res, err := Compile(src, "main.tmc", strings.NewReader(entry), Options{Alphabet: []string{"0", "1"}})
	require.NoError(t, err)
	require.NotEmpty(t, res.Table)
}

// TestCompileStrictPromotesWarningToError covers Options.Strict rejecting a
// non-exhaustive tape-read match outright instead of warning.
func TestCompileStrictPromotesWarningToError(t *testing.T) {
	src := "let main = x: match get x { '0' > set '1' x }, in main"

	_, err := Compile(memSource{}, "main.tmc", strings.NewReader(src), Options{Alphabet: []string{"0", "1"}, Strict: true})
	require.Error(t, err)
}

// TestCompileRejectsUnknownAlphabetEntry covers the placeholder-collision
// guard surfacing through the whole pipeline.
func TestCompileRejectsUnknownAlphabetEntry(t *testing.T) {
	src := "let main = x: x, in main"
	_, err := Compile(memSource{}, "main.tmc", strings.NewReader(src), Options{Alphabet: []string{"#"}})
	require.Error(t, err)
}

// TestCompileIncrementsBinaryTape covers the Increment scenario (spec.md §8
// scenario 1): seek right to the `#` marker, then carry leftward from the
// last digit, wrapping to all zeros when every digit was already `1`.
//
// seek's own terminal arm calls straight into carry rather than the program
// composing them from the outside (`carry (seek x)`): a Y-bound transformer
// ends in either a tail call back to itself or a halt, so the only place one
// transformer can hand off to another is its own match arm, in tail
// position.
func TestCompileIncrementsBinaryTape(t *testing.T) {
	src := "let " +
		"carry = Y loop: x: match get x { '1' > loop (prev (set '0' x)), '0' > set '1' x, any > next x }, " +
		"seek = Y loop: x: match get x { '#' > carry (prev x), any > loop (next x) }, " +
		"in seek"

	res, err := Compile(memSource{}, "main.tmc", strings.NewReader(src), Options{Alphabet: []string{"0", "1", "#"}})
	require.NoError(t, err)

	tbl, err := emit.Parse(strings.NewReader(res.Table))
	require.NoError(t, err)

	sim, err := simulate.Run(tbl, "101#", rune(alphabet.Blank), 500)
	require.NoError(t, err)
	require.True(t, sim.Accepted)
	require.Equal(t, "110#", sim.FinalTape)

	sim, err = simulate.Run(tbl, "111#", rune(alphabet.Blank), 500)
	require.NoError(t, err)
	require.True(t, sim.Accepted)
	require.Equal(t, "000#", sim.FinalTape)
}

// TestCompileAddsBinaryOperands covers the Add scenario (spec.md §8 scenario
// 2): two `+`-separated binary operands, added by repeated decrement/
// increment (decrement the right operand, increment the left, until the
// right operand reaches zero), then the right operand and the `+` are erased
// and the head parks on the sum's leftmost digit.
//
// Each stage is its own Y, chained by calling the next stage directly from
// its own terminal match arm (the same tail-handoff idiom as carry/seek
// above). The tape never shrinks (simulate.Tape renders from the lowest to
// the highest cell that held an input symbol or had a non-blank symbol
// written to it), so erased cells render as blank runes
// rather than disappearing, and a carry that grows a new leading digit
// extends the rendered range left of the original input.
func TestCompileAddsBinaryOperands(t *testing.T) {
	src := "let " +
		// findALeft scans left through the sum's digits to its leftmost
		// bit and parks the head there.
		"findALeft = Y loop: x: match get x { '0'|'1' > loop (prev x), any > next x }, " +
		// eraseBAndPlus blanks the exhausted right operand and the '+'
		// column, then hands off to findALeft.
		"eraseBAndPlus = Y loop: x: match get x {" +
		"  '0'|'1' > loop (prev (set '' x))," +
		"  '+' > findALeft (prev (set '' x))," +
		"  any > x" +
		"}, " +
		// seekToPlus scans right to '+' and steps onto the right
		// operand's first digit, then starts (or resumes) addLoop.
		"seekToPlus = Y loop: x: match get x { '+' > addLoop (next x), any > loop (next x) }, " +
		// incrementA adds one to the left operand, scanning left from
		// its current digit and growing a new leading '1' on overflow.
		"incrementA = Y loop: x: match get x {" +
		"  '1' > loop (prev (set '0' x))," +
		"  '0' > seekToPlus (set '1' x)," +
		"  any > seekToPlus (set '1' x)" +
		"}, " +
		// seekLeftToPlus scans left from inside the right operand back
		// to '+' and steps onto the left operand's last digit.
		"seekLeftToPlus = Y loop: x: match get x { '+' > incrementA (prev x), any > loop (prev x) }, " +
		// decrementB subtracts one from the right operand, scanning
		// left from its last digit (the operand is only ever entered
		// here when it is nonzero, so the borrow always terminates on
		// a '1' before running off its left edge).
		"decrementB = Y loop: x: match get x {" +
		"  '0' > loop (prev (set '1' x))," +
		"  '1' > seekLeftToPlus (set '0' x)," +
		"  any > seekLeftToPlus x" +
		"}, " +
		// seekToBEnd scans right through the right operand's digits to
		// its last one, then starts a decrement there.
		"seekToBEnd = Y loop: x: match get x { '0'|'1' > loop (next x), any > decrementB (prev x) }, " +
		// addLoop tests the right operand's current digit: a run of
		// '0's just advances, a '1' means it still has work to do (run
		// a full decrement/increment round trip), and running off its
		// end means it's all zero and the sum is done.
		"addLoop = Y loop: x: match get x {" +
		"  '0' > loop (next x)," +
		"  '1' > seekToBEnd x," +
		"  any > eraseBAndPlus (prev x)" +
		"}, " +
		"in seekToPlus"

	res, err := Compile(memSource{}, "main.tmc", strings.NewReader(src), Options{Alphabet: []string{"0", "1", "+"}})
	require.NoError(t, err)

	tbl, err := emit.Parse(strings.NewReader(res.Table))
	require.NoError(t, err)

	blank := string(rune(alphabet.Blank))

	// 101+011 = 5+3 = 8 = 1000. The sum's leading '1' is written one cell
	// left of the original input's start, so the rendered tape grows by
	// one position; the right operand's three digits and the '+' are
	// erased in place rather than removed.
	sim, err := simulate.Run(tbl, "101+011", rune(alphabet.Blank), 5000)
	require.NoError(t, err)
	require.True(t, sim.Accepted)
	require.Equal(t, "1000"+strings.Repeat(blank, 4), sim.FinalTape)

	// 0+0 = 0: the right operand is already zero, so addLoop falls
	// straight through to erasure without ever decrementing/incrementing.
	sim, err = simulate.Run(tbl, "0+0", rune(alphabet.Blank), 5000)
	require.NoError(t, err)
	require.True(t, sim.Accepted)
	require.Equal(t, "0"+strings.Repeat(blank, 2), sim.FinalTape)
}

// TestCompileNonExhaustiveMatchEmitsHaltRejectRow covers the non-exhaustive
// match scenario (spec.md §8): a tape-read match missing a case for part of
// the alphabet, and no 'any' arm, compiles successfully (with a warning) but
// the emitted awmorp table routes the uncovered symbol straight to
// halt-reject, not just to a specializer diagnostic.
func TestCompileNonExhaustiveMatchEmitsHaltRejectRow(t *testing.T) {
	src := "let main = x: match get x { '0' > set '1' x }, in main"

	res, err := Compile(memSource{}, "main.tmc", strings.NewReader(src), Options{Alphabet: []string{"0", "1"}})
	require.NoError(t, err)

	tbl, err := emit.Parse(strings.NewReader(res.Table))
	require.NoError(t, err)

	found := false
	for _, rows := range tbl.Explicit {
		if row, ok := rows["1"]; ok && row.Next == tbl.Reject {
			found = true
		}
	}
	require.True(t, found, "expected some state's row for read \"1\" to target %q", tbl.Reject)

	sim, err := simulate.Run(tbl, "1", rune(alphabet.Blank), 100)
	require.NoError(t, err)
	require.False(t, sim.Accepted)
}
