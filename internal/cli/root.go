// Package cli is the cobra front-end over the resolver: one root
// command with persistent flags, mirroring the teacher's
// internal/cli/root.go layout.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json"
	DB      string // path to the node-store sqlite file
	WC      string // working-copy root on disk
	Config  string // path to a CUE resolver configuration document
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the resolver CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "svnmove-resolve",
		Short:         "svnmove-resolve - update-move tree-conflict resolver",
		Long:          "Resolves tree conflicts between concurrent local moves and incoming updates against a layered node store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to the node-store sqlite file (required)")
	cmd.PersistentFlags().StringVar(&opts.WC, "wc", "", "working-copy root on disk (required)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to a CUE resolver configuration document")

	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewBumpCommand(opts))
	cmd.AddCommand(NewBreakMoveCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
