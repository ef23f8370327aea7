package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// BreakMoveOptions holds flags for the break-move command.
type BreakMoveOptions struct {
	*RootOptions
	SrcOpDepth int
}

// NewBreakMoveCommand creates the break-move command: clears the move
// linkage between a source and destination, recursing into moved-away
// children of the destination.
func NewBreakMoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BreakMoveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "break-move <src> <dst>",
		Short: "Clear the move linkage between a source and its moved-away destination",
		Long: `Breaks the move record linking src to dst, recursing into any
children of dst that are themselves moved away. Use this when a move
can no longer be sensibly resolved against an incoming update and
should instead be treated as an independent add plus delete.

Example:
  svnmove-resolve break-move --db wc.db --wc . A/moved A/dest`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBreakMove(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.SrcOpDepth, "src-op-depth", 0, "op-depth the move source was recorded at")

	return cmd
}

func runBreakMove(opts *BreakMoveOptions, src, dst string, cmd *cobra.Command) error {
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

	formatter.VerboseLog("breaking move %s -> %s", src, dst)

	if err := sess.resolver.BreakMove(cmd.Context(), src, opts.SrcOpDepth, dst); err != nil {
		_ = formatter.Error(errorCodeFromResolver(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "break-move failed", err)
	}

	return formatter.Success(fmt.Sprintf("broke move %s -> %s", src, dst))
}
