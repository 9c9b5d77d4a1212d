package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags, matching the
// convention of leaving it as a plain package var rather than embedding a
// build-info template.
var version = "dev"

func init() {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the tmc version and a fresh run identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("tmc %s (run %s)\n", version, uuid.New())
			return nil
		},
	}
	rootCmd.AddCommand(cmd)
}
