package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/svnmove/internal/model"
)

// BumpOptions holds flags for the bump command.
type BumpOptions struct {
	*RootOptions
	Depth     string
	Operation string
	OldRev    int64
	NewRev    int64
}

// NewBumpCommand creates the bump command: a fast-forward pass over
// every move rooted under a path, without a full editor drive.
func NewBumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bump <updated-root>",
		Short: "Fast-forward moves rooted under a path that a bulk update touched",
		Long: `Tries to bump every move rooted under updated-root to the new
revision without running a full update-move drive, recursing into
moved-away descendants as long as no intervening layer blocks it.

Example:
  svnmove-resolve bump --db wc.db --wc . --depth infinity A`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBump(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Depth, "depth", string(model.UpdateDepthInfinity), "empty|files|infinity (default from config bump.depth if --depth is not given)")
	cmd.Flags().StringVar(&opts.Operation, "operation", "update", "update|switch")
	cmd.Flags().Int64Var(&opts.OldRev, "old-revision", 0, "revision the working copy was at before the update")
	cmd.Flags().Int64Var(&opts.NewRev, "new-revision", 0, "revision the working copy moves to")

	return cmd
}

// effectiveBumpDepth resolves the depth a bump should run at: an
// explicit --depth always wins, otherwise the configured bump.depth
// applies, falling back to the flag's own default if the config left
// it unset too.
func effectiveBumpDepth(depthFlagChanged bool, flagDepth string, cfgDepth model.UpdateDepth) model.UpdateDepth {
	if !depthFlagChanged && cfgDepth != "" {
		return cfgDepth
	}
	return model.UpdateDepth(flagDepth)
}

func runBump(opts *BumpOptions, updatedRoot string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	op := model.Operation(opts.Operation)
	if op != model.OperationUpdate && op != model.OperationSwitch {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --operation %q: must be update or switch", opts.Operation))
	}

	sess, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	depth := effectiveBumpDepth(cmd.Flags().Changed("depth"), opts.Depth, sess.cfg.BumpDepth)
	switch depth {
	case model.UpdateDepthEmpty, model.UpdateDepthFiles, model.UpdateDepthInfinity:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --depth %q", depth))
	}

	formatter.VerboseLog("bumping moves under %s (depth=%s, operation=%s)", updatedRoot, depth, op)

	versions := model.Revpair{Old: opts.OldRev, New: opts.NewRev}
	if err := sess.resolver.BumpAll(cmd.Context(), updatedRoot, depth, op, versions); err != nil {
		_ = formatter.Error(errorCodeFromResolver(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "bump failed", err)
	}

	return formatter.Success(fmt.Sprintf("bumped moves under %s", updatedRoot))
}
