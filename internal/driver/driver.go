// Package driver runs one aggregation cycle per discovery pass: resolve the
// pass's providers, accumulate them per contract, then merge and write the
// touched manifests.
package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/iVampireSP/metainf/internal/ctxlog"
	"github.com/iVampireSP/metainf/internal/diag"
	"github.com/iVampireSP/metainf/internal/manifest"
	"github.com/iVampireSP/metainf/internal/provider"
	"github.com/iVampireSP/metainf/internal/registry"
	"github.com/iVampireSP/metainf/internal/resolve"
)

// ErrFinalized is returned for passes offered after the terminal pass.
var ErrFinalized = errors.New("driver: terminal pass already processed")

// State of a Processor.
type State int

const (
	Accumulating State = iota
	Finalized
)

func (s State) String() string {
	if s == Finalized {
		return "finalized"
	}
	return "accumulating"
}

// Source supplies discovery passes. Next blocks until a pass is available
// and must eventually return a terminal pass.
type Source interface {
	Next(ctx context.Context) (provider.Pass, error)
}

// Result summarises one processed pass.
type Result struct {
	Providers int      // declarations offered
	Rejected  int      // declarations that resolved to no contract
	Written   []string // contracts whose manifest was written
	Failed    []string // contracts whose manifest could not be written
}

// Processor is the pass driver.
type Processor struct {
	resolver *resolve.Resolver
	merger   *manifest.Merger
	reporter diag.Reporter
	state    State
}

// New returns a processor in the Accumulating state.
func New(resolver *resolve.Resolver, merger *manifest.Merger, reporter diag.Reporter) *Processor {
	return &Processor{
		resolver: resolver,
		merger:   merger,
		reporter: reporter,
	}
}

// State returns the current state.
func (p *Processor) State() State {
	return p.state
}

// Process handles one pass. The terminal pass does no work and moves the
// processor to Finalized.
func (p *Processor) Process(ctx context.Context, pass provider.Pass) (Result, error) {
	if p.state == Finalized {
		return Result{}, ErrFinalized
	}
	logger := ctxlog.FromContext(ctx)

	if pass.Terminal {
		p.state = Finalized
		logger.Debug("terminal pass, finalized")
		return Result{}, nil
	}

	res := Result{Providers: len(pass.Declarations)}
	reg := registry.New()
	for _, decl := range pass.Declarations {
		contracts, errs := p.resolver.Resolve(decl)
		for _, err := range errs {
			diag.ReportError(ctx, p.reporter, decl.Pos, err)
		}
		if len(contracts) == 0 {
			res.Rejected++
			continue
		}
		for _, c := range contracts {
			reg.Record(c, decl.Name)
		}
	}

	for _, contract := range reg.Contracts() {
		if err := p.merger.Merge(ctx, contract, reg.Providers(contract)); err != nil {
			res.Failed = append(res.Failed, contract)
			continue
		}
		res.Written = append(res.Written, contract)
	}

	logger.Debug("pass processed",
		"providers", res.Providers, "rejected", res.Rejected,
		"written", len(res.Written), "failed", len(res.Failed))
	return res, nil
}

// Run pulls passes from src until the terminal pass has been processed and
// returns the per-pass results.
func (p *Processor) Run(ctx context.Context, src Source) ([]Result, error) {
	var results []Result
	for p.state != Finalized {
		pass, err := src.Next(ctx)
		if err != nil {
			return results, fmt.Errorf("next pass: %w", err)
		}
		res, err := p.Process(ctx, pass)
		if err != nil {
			return results, err
		}
		if !pass.Terminal {
			results = append(results, res)
		}
	}
	return results, nil
}
