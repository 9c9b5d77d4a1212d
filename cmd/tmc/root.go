package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tmc",
	Short: "Compile a tape-transformer program into an awmorp Turing machine table",
	Long: `tmc compiles a higher-order tape-transformer program into a portable
Turing machine transition table in awmorp format. Invoking tmc directly on a
source file is shorthand for "tmc compile". Each --alphabet flag takes
exactly one symbol, so it is repeated once per symbol; a second bare
argument after the source file is rejected:

  tmc prog.tmc --alphabet 0 --alphabet 1
  tmc compile prog.tmc --alphabet 0 --alphabet 1 -o prog.awm`,
	SilenceErrors: true,
	SilenceUsage:  true,
	Args:          cobra.MaximumNArgs(1),
	RunE:          runCompile,
}

func init() {
	bindCompileFlags(rootCmd)
}

// Execute runs the command tree and returns the error it produced, if any,
// after printing it to stderr. Distinguishing a user error (exit 1) from an
// internal error (exit 2) happens in main, since that's where os.Exit lives.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return err
	}
	return nil
}
