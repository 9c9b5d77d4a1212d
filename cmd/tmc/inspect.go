package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/tmc-lang/tmc/emit"
)

func init() {
	cmd := &cobra.Command{
		Use:     "inspect",
		Short:   "Explore an already-compiled awmorp table interactively",
		Example: `  tmc inspect prog.awm`,
		Args:    cobra.ExactArgs(1),
		RunE:    runInspect,
	}
	rootCmd.AddCommand(cmd)
}

// runInspect drives a read-only readline REPL over a table tmc itself
// already emitted. It never evaluates the source language — only the
// already-compiled transition table — so it stays out of the excluded
// "runtime interpretation of source programs".
func runInspect(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", args[0], err)
	}
	defer f.Close()

	tbl, err := emit.Parse(f)
	if err != nil {
		return fmt.Errorf("cannot parse %s as an awmorp table: %w", args[0], err)
	}

	rl, err := readline.NewEx(&readline.Config{Prompt: "tmc> "})
	if err != nil {
		return fmt.Errorf("create readline config: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(os.Stderr, `type a state name to print its transitions, "trace <symbols...>" to step the machine, or Ctrl-D to quit`)
	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		handleInspectCommand(tbl, line)
	}
}

func handleInspectCommand(tbl *emit.Table, line string) {
	fields := strings.Fields(line)
	if fields[0] == "trace" {
		trace(tbl, strings.Join(fields[1:], ""))
		return
	}
	printState(tbl, fields[0])
}

func printState(tbl *emit.Table, state string) {
	rows, ok := tbl.Explicit[state]
	wild, hasWild := tbl.Wildcard[state]
	if !ok && !hasWild {
		fmt.Fprintf(os.Stderr, "no such state %q\n", state)
		return
	}
	reads := make([]string, 0, len(rows))
	for r := range rows {
		reads = append(reads, r)
	}
	sort.Strings(reads)
	for _, r := range reads {
		row := rows[r]
		fmt.Printf("%s %s %s %s %s\n", state, row.Read, row.Write, row.Move, row.Next)
	}
	if hasWild {
		fmt.Printf("%s %s %s %s %s\n", state, wild.Read, wild.Write, wild.Move, wild.Next)
	}
}

// trace steps the machine over input symbol by symbol, printing the state
// sequence, without running it to completion — the inspector only ever
// steps an already-compiled table, it never evaluates source.
func trace(tbl *emit.Table, input string) {
	state := tbl.Start
	fmt.Print(state)
	for _, r := range input {
		row, ok := tbl.Lookup(state, string(r))
		if !ok {
			fmt.Printf(" -> (no transition for %q, stopped)\n", r)
			return
		}
		state = row.Next
		fmt.Printf(" -> %s", state)
		if state == tbl.Accept || state == tbl.Reject {
			break
		}
	}
	fmt.Println()
}
