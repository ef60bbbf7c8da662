// Package wrapper defers formatter and reporter finalization. The engine
// assumes one finalize call per full run and issues it after every area;
// these decorators turn that per-area call into a no-op and expose the real
// logic as Done, invoked exactly once when all areas have completed.
package wrapper

import "github.com/sirlabs/systest/engine"

// FormatterWrapper suppresses the engine's per-area Close on a formatter.
type FormatterWrapper struct {
	wrapped engine.Formatter
}

// WrapFormatter decorates an engine formatter.
func WrapFormatter(f engine.Formatter) *FormatterWrapper {
	return &FormatterWrapper{wrapped: f}
}

// Name delegates to the wrapped formatter.
func (w *FormatterWrapper) Name() string {
	return w.wrapped.Name()
}

// Close is intentionally a no-op; the engine calls it once per area.
func (w *FormatterWrapper) Close() error {
	return nil
}

// Done runs the wrapped formatter's real Close.
func (w *FormatterWrapper) Done() error {
	return w.wrapped.Close()
}

// Wrapped returns the wrapped formatter.
func (w *FormatterWrapper) Wrapped() engine.Formatter {
	return w.wrapped
}

// ReporterWrapper suppresses the engine's per-area End on a reporter.
type ReporterWrapper struct {
	wrapped engine.Reporter
}

// WrapReporter decorates an engine reporter.
func WrapReporter(r engine.Reporter) *ReporterWrapper {
	return &ReporterWrapper{wrapped: r}
}

// Scenario delegates to the wrapped reporter.
func (w *ReporterWrapper) Scenario(result engine.ScenarioResult) {
	w.wrapped.Scenario(result)
}

// End is intentionally a no-op; the engine calls it once per area.
func (w *ReporterWrapper) End() {}

// Done runs the wrapped reporter's real End.
func (w *ReporterWrapper) Done() {
	w.wrapped.End()
}

// Wrapped returns the wrapped reporter.
func (w *ReporterWrapper) Wrapped() engine.Reporter {
	return w.wrapped
}
