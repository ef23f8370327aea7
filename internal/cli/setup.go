package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/svnmove/internal/config"
	"github.com/roach88/svnmove/internal/merge"
	"github.com/roach88/svnmove/internal/notify"
	"github.com/roach88/svnmove/internal/pristine"
	"github.com/roach88/svnmove/internal/resolver"
	"github.com/roach88/svnmove/internal/store"
	"github.com/roach88/svnmove/internal/workqueue"
)

// session bundles everything a resolve/bump/break-move command needs,
// built once from the persistent --db/--wc/--config flags. The working
// copy probe is built per-drive, since its destination op-depth
// depends on the destination path a particular command invocation
// names.
type session struct {
	store    *store.Store
	resolver *resolver.Resolver
	cfg      *config.Config
	wcRoot   string
	close    func() error
}

func newSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	if opts.DB == "" {
		return nil, NewExitError(ExitCommandError, "--db is required")
	}
	if opts.WC == "" {
		return nil, NewExitError(ExitCommandError, "--wc is required")
	}
	if _, err := os.Stat(opts.WC); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("working-copy root not found: %s", opts.WC))
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading configuration", err)
	}

	s, err := store.Open(opts.DB, 1, cfg.LockTimeoutMS)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening node store", err)
	}

	pristineDir := opts.WC + "/.svnmove/pristine"
	pr := pristine.NewFSStore(pristineDir)
	executor := workqueue.NewFSExecutor(opts.WC, pr)
	notifySink := sinkFor(cfg.NotifySink, cmd.OutOrStdout())

	r := resolver.New(s, merge.NewTextMerger(), pr, executor, notifySink, nil, cfg.WorkQueueBatch)

	return &session{
		store:    s,
		resolver: r,
		cfg:      cfg,
		wcRoot:   opts.WC,
		close:    s.Close,
	}, nil
}

func sinkFor(kind string, w io.Writer) notify.Sink {
	switch kind {
	case "discard":
		return &notify.CollectingSink{}
	case "collect":
		return &notify.CollectingSink{}
	default:
		return notify.NewWriterSink(w)
	}
}
