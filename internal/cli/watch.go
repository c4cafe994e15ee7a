package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iVampireSP/metainf/internal/driver"
	"github.com/iVampireSP/metainf/internal/gosource"
	"github.com/iVampireSP/metainf/internal/manifest"
	"github.com/iVampireSP/metainf/internal/resolve"
	"github.com/iVampireSP/metainf/internal/watch"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Generate, then merge providers from every edited package until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, flags)
		},
	}
}

func runWatch(cmd *cobra.Command, flags *rootFlags) error {
	e, err := setup(cmd, flags)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(e.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ignore := gosource.LoadIgnore(e.cfg.Root)
	scanner := gosource.NewScanner(e.cfg, ignore)
	w, err := watch.New(watch.Config{
		Root:     e.cfg.Root,
		Debounce: e.cfg.Debounce,
		Ignore:   ignore,
	}, scanner)
	if err != nil {
		return err
	}
	defer w.Close()

	rep := e.reporter()
	proc := driver.New(resolve.New(e.cfg.RootTypes), manifest.NewMerger(manifest.NewOsStore(e.cfg.Output), rep), rep)

	e.logger.Info("watching for changes", "root", e.cfg.Root)
	_, err = proc.Run(ctx, driver.Chain(scanner, w))
	return err
}
