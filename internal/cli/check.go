package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/iVampireSP/metainf/internal/diag"
	"github.com/iVampireSP/metainf/internal/driver"
	"github.com/iVampireSP/metainf/internal/manifest"
	"github.com/iVampireSP/metainf/internal/resolve"
)

// errStale marks a check that found manifests needing regeneration.
var errStale = errors.New("manifests are out of date")

func newCheckCmd(flags *rootFlags) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report manifests that generate would change, without writing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, flags, from)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "read declarations from a YAML stream instead of scanning Go packages")
	return cmd
}

func runCheck(cmd *cobra.Command, flags *rootFlags, from string) error {
	e, err := setup(cmd, flags)
	if err != nil {
		return err
	}

	// Writes land in memory; the output root is only read.
	base := afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), e.cfg.Output))
	layer := afero.NewMemMapFs()
	store := manifest.NewStore(afero.NewCopyOnWriteFs(base, layer))

	src, closeSrc, err := openSource(e.cfg, from)
	if err != nil {
		return err
	}
	defer closeSrc()

	// Only errors are worth logging here; the NOTEs would claim writes.
	rep := diag.Tee{errorsOnly{diag.LogReporter{Logger: e.logger}}, e.collector}
	proc := driver.New(resolve.New(e.cfg.RootTypes), manifest.NewMerger(store, rep), rep)
	results, err := proc.Run(e.ctx, src)
	if err != nil {
		return err
	}

	var contracts []string
	for _, r := range results {
		contracts = append(contracts, r.Written...)
	}
	slices.Sort(contracts)
	contracts = slices.Compact(contracts)

	stale, err := reportStale(cmd.OutOrStdout(), base, layer, contracts)
	if err != nil {
		return err
	}
	if e.collector.HasErrors() {
		return errDiagnostics
	}
	if stale > 0 {
		e.logger.Info("manifests out of date", "count", stale)
		return errStale
	}
	return nil
}

// reportStale prints a diff for every contract whose regenerated manifest
// differs from the one on disk and returns how many differ.
func reportStale(w io.Writer, base, layer afero.Fs, contracts []string) (int, error) {
	stale := 0
	for _, c := range contracts {
		name := path.Join(manifest.Dir, c)
		before, err := readOptional(base, name)
		if err != nil {
			return stale, err
		}
		after, err := readOptional(layer, name)
		if err != nil {
			return stale, err
		}
		if bytes.Equal(before, after) {
			continue
		}
		stale++
		if _, err := io.WriteString(w, lineDiff(name, string(before), string(after))); err != nil {
			return stale, err
		}
	}
	return stale, nil
}

func readOptional(fsys afero.Fs, name string) ([]byte, error) {
	data, err := afero.ReadFile(fsys, name)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// lineDiff renders a line-oriented diff of two manifest versions.
func lineDiff(name, before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", name, name)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}

type errorsOnly struct {
	diag.Reporter
}

func (r errorsOnly) Report(ctx context.Context, d diag.Diagnostic) {
	if d.Severity == diag.Error {
		r.Reporter.Report(ctx, d)
	}
}
