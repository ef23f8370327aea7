package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/svnmove/internal/resolver"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
}

// NewResolveCommand creates the resolve command: one full update-move
// drive against a single tree-conflict victim.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <victim>",
		Short: "Resolve a tree conflict between a local move and an incoming update",
		Long: `Loads the tree-conflict descriptor recorded at victim, locates the
move's destination, and drives one full update-move resolution: walks
the source and destination layers, runs the conflict engine and layer
replacer inside one transaction, and flushes the resulting work items
and notifications only after that transaction commits.

Example:
  svnmove-resolve resolve --db wc.db --wc . A/moved`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], cmd)
		},
	}

	return cmd
}

func runResolve(opts *ResolveOptions, victim string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sess, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	formatter.VerboseLog("resolving tree conflict at %s", victim)

	wc := resolver.NewFSWorkingCopy(sess.wcRoot, sess.store, 0)

	if err := sess.resolver.Resolve(cmd.Context(), victim, wc); err != nil {
		_ = formatter.Error(errorCodeFromResolver(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "resolve failed", err)
	}

	return formatter.Success(fmt.Sprintf("resolved conflict at %s", victim))
}
