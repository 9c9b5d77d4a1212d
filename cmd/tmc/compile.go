package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tmc-lang/tmc/compiler"
	"github.com/tmc-lang/tmc/config"
	"github.com/tmc-lang/tmc/report"
	"github.com/tmc-lang/tmc/resolve"
)

var compileFlags struct {
	alphabet         []string
	output           string
	strict           bool
	warningsAsErrors bool
	importRoots      []string
}

// bindCompileFlags uses pflag's VarP form directly rather than cobra's
// allocate-and-return wrapper, so --alphabet stays a true repeatable
// pflag.stringArrayValue instead of a plain string flag reparsed by hand.
func bindCompileFlags(cmd *cobra.Command) {
	var flags *pflag.FlagSet = cmd.Flags()
	flags.StringArrayVarP(&compileFlags.alphabet, "alphabet", "a", nil, "a symbol to add to Σ (repeatable)")
	flags.StringVarP(&compileFlags.output, "output", "o", "", "output file path for the compiled table (default stdout)")
	flags.BoolVar(&compileFlags.strict, "strict", false, "promote ambiguous/non-exhaustive match warnings to hard errors")
	flags.BoolVar(&compileFlags.warningsAsErrors, "warnings-as-errors", false, "alias for --strict")
	flags.StringArrayVar(&compileFlags.importRoots, "import-root", nil, "a directory to search for imports (repeatable)")
}

func init() {
	cmd := &cobra.Command{
		Use:     "compile",
		Short:   "Compile a tape-transformer program into an awmorp table",
		Example: `  tmc compile prog.tmc --alphabet 0 --alphabet 1 -o prog.awm`,
		Args:    cobra.MaximumNArgs(1),
		RunE:    runCompile,
	}
	bindCompileFlags(cmd)
	rootCmd.AddCommand(cmd)
}

// panicError marks an error recovered from a panic, so main can map it to
// exit code 2 instead of the ordinary exit code 1 for a user-facing error
// (spec.md §6).
type panicError struct{ cause error }

func (p *panicError) Error() string { return p.cause.Error() }
func (p *panicError) Unwrap() error { return p.cause }

func runCompile(cmd *cobra.Command, args []string) (retErr error) {
	defer func() {
		if v := recover(); v != nil {
			err, ok := v.(error)
			if !ok {
				err = fmt.Errorf("%v", v)
			}
			fmt.Fprintf(os.Stderr, "%v\n%s", err, debug.Stack())
			retErr = &panicError{cause: err}
		}
	}()

	var srcPath string
	if len(args) > 0 {
		srcPath = args[0]
	}

	var in io.Reader
	if srcPath == "" {
		in = os.Stdin
		srcPath = "stdin"
	} else {
		f, err := os.Open(srcPath)
		if err != nil {
			return fmt.Errorf("cannot open %s: %w", srcPath, err)
		}
		defer f.Close()
		in = f
	}

	cfg, roots := loadConfig(srcPath, compileFlags.importRoots)

	opts := compiler.Options{
		Alphabet: cfg.MergeAlphabet(compileFlags.alphabet),
		Roots:    roots,
		Strict:   cfg.Strict(compileFlags.strict || compileFlags.warningsAsErrors),
	}

	res, err := compiler.Compile(resolve.OSSource{}, srcPath, in, opts)
	if err != nil {
		return err
	}

	if err := writeTableAndReport(res, compileFlags.output); err != nil {
		return fmt.Errorf("cannot write output: %w", err)
	}
	for _, w := range res.Report.Warnings {
		fmt.Fprintln(os.Stderr, w.Message)
	}
	return nil
}

// loadConfig finds tmc.toml starting from the source file's directory; a
// missing config file is not an error, it just means the CLI flags are
// authoritative (config.File's nil receiver methods handle that case).
func loadConfig(srcPath string, cliRoots []string) (*config.File, []string) {
	dir := "."
	if srcPath != "stdin" {
		if d := dirOf(srcPath); d != "" {
			dir = d
		}
	}
	path, ok := config.Find(dir)
	if !ok {
		return nil, cliRoots
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, cliRoots
	}
	roots := append(append([]string{}, cfg.ImportRoots...), cliRoots...)
	return cfg, roots
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}

func writeTableAndReport(res *compiler.Result, outputPath string) error {
	var tableW io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		tableW = f
	}
	if _, err := fmt.Fprint(tableW, res.Table); err != nil {
		return err
	}

	reportPath := report.SidecarPath(outputPath)
	if outputPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		reportPath = wd + "/tmc-report.json"
	}
	if err := res.Report.WriteFile(reportPath); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "report written to %s\n", reportPath)
	return nil
}
