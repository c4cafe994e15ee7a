package cli

import (
	"github.com/spf13/cobra"

	"github.com/iVampireSP/metainf/internal/driver"
	"github.com/iVampireSP/metainf/internal/manifest"
	"github.com/iVampireSP/metainf/internal/resolve"
)

func newGenerateCmd(flags *rootFlags) *cobra.Command {
	var gen generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Resolve providers and merge them into META-INF/services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, flags, &gen)
		},
	}
	addGenerateFlags(cmd, &gen)
	return cmd
}

func runGenerate(cmd *cobra.Command, flags *rootFlags, gen *generateFlags) error {
	e, err := setup(cmd, flags)
	if err != nil {
		return err
	}

	store := manifest.NewOsStore(e.cfg.Output)
	if gen.clean {
		e.logger.Info("removing existing manifests", "dir", manifest.Dir)
		if err := store.Clean(); err != nil {
			return err
		}
	}

	src, closeSrc, err := openSource(e.cfg, gen.from)
	if err != nil {
		return err
	}
	defer closeSrc()

	rep := e.reporter()
	proc := driver.New(resolve.New(e.cfg.RootTypes), manifest.NewMerger(store, rep), rep)
	results, err := proc.Run(e.ctx, src)
	if err != nil {
		return err
	}

	written := 0
	for _, r := range results {
		written += len(r.Written)
	}
	e.logger.Debug("done", "passes", len(results), "manifests", written)

	if e.collector.HasErrors() {
		return errDiagnostics
	}
	return nil
}
