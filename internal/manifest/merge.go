package manifest

import (
	"context"
	"go/token"

	"github.com/iVampireSP/metainf/internal/ctxlog"
	"github.com/iVampireSP/metainf/internal/diag"
)

// Merger folds newly discovered providers into existing manifests.
type Merger struct {
	store    *Store
	reporter diag.Reporter
}

// NewMerger returns a merger over store reporting to reporter.
func NewMerger(store *Store, reporter diag.Reporter) *Merger {
	return &Merger{store: store, reporter: reporter}
}

// Merge unions discovered with contract's existing manifest and writes the
// result. An unreadable manifest is reported and treated as empty. The
// returned error is the *WriteError, already reported, if the write failed.
func (m *Merger) Merge(ctx context.Context, contract string, discovered []string) error {
	logger := ctxlog.FromContext(ctx)

	existing, err := m.store.Load(contract)
	if err != nil {
		diag.ReportError(ctx, m.reporter, token.Position{}, err)
		existing = nil
	}

	merged := make([]string, 0, len(existing)+len(discovered))
	merged = append(merged, existing...)
	merged = append(merged, discovered...)

	logger.Debug("merging manifest", "contract", contract, "existing", len(existing), "discovered", len(discovered))

	diag.Notef(ctx, m.reporter, "writing %s/%s", Dir, contract)
	if err := m.store.Save(contract, merged); err != nil {
		diag.ReportError(ctx, m.reporter, token.Position{}, err)
		return err
	}
	return nil
}
