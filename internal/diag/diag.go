// Package diag carries NOTE and ERROR diagnostics from the aggregation core to
// whoever is reporting them.
package diag

import (
	"context"
	"fmt"
	"go/token"
	"log/slog"
	"sync"

	"github.com/iVampireSP/metainf/internal/ctxlog"
)

// Severity of a diagnostic.
type Severity int

const (
	Note Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "ERROR"
	}
	return "NOTE"
}

// Diagnostic is one reported message. Pos is the zero value when the
// message is not attributed to a source location.
type Diagnostic struct {
	Severity Severity
	Message  string
	Pos      token.Position
	Err      error
}

func (d Diagnostic) String() string {
	if d.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// Reporter receives diagnostics.
type Reporter interface {
	Report(ctx context.Context, d Diagnostic)
}

// Notef reports an informational message.
func Notef(ctx context.Context, r Reporter, format string, args ...any) {
	r.Report(ctx, Diagnostic{Severity: Note, Message: fmt.Sprintf(format, args...)})
}

// ReportError reports err as an ERROR at pos.
func ReportError(ctx context.Context, r Reporter, pos token.Position, err error) {
	r.Report(ctx, Diagnostic{Severity: Error, Message: err.Error(), Pos: pos, Err: err})
}

// LogReporter writes diagnostics to a slog.Logger. A nil Logger uses the
// logger carried by the context.
type LogReporter struct {
	Logger *slog.Logger
}

func (l LogReporter) Report(ctx context.Context, d Diagnostic) {
	logger := l.Logger
	if logger == nil {
		logger = ctxlog.FromContext(ctx)
	}
	level := slog.LevelInfo
	if d.Severity == Error {
		level = slog.LevelError
	}
	var attrs []slog.Attr
	if d.Pos.IsValid() {
		attrs = append(attrs, slog.String("pos", d.Pos.String()))
	}
	logger.LogAttrs(ctx, level, d.Message, attrs...)
}

// Collector records every diagnostic it receives.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func (c *Collector) Report(_ context.Context, d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

// All returns the recorded diagnostics in report order.
func (c *Collector) All() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.diags...)
}

// Errors returns only the ERROR diagnostics.
func (c *Collector) Errors() []Diagnostic {
	return c.filter(Error)
}

// Notes returns only the NOTE diagnostics.
func (c *Collector) Notes() []Diagnostic {
	return c.filter(Note)
}

// HasErrors reports whether any ERROR was recorded.
func (c *Collector) HasErrors() bool {
	return len(c.Errors()) > 0
}

func (c *Collector) filter(s Severity) []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Diagnostic
	for _, d := range c.diags {
		if d.Severity == s {
			out = append(out, d)
		}
	}
	return out
}

// Tee fans a diagnostic out to several reporters.
type Tee []Reporter

func (t Tee) Report(ctx context.Context, d Diagnostic) {
	for _, r := range t {
		r.Report(ctx, d)
	}
}
