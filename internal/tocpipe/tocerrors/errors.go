// Package tocerrors defines the sentinel errors raised by the ToC pipeline,
// checked with errors.Is the way the rest of the repository wraps and
// unwraps errors with fmt.Errorf("...: %w", err).
package tocerrors

import "errors"

var (
	// ErrFatalMode is returned when mode C's validation accuracy still
	// falls below threshold: there is no simpler mode left to fall back to.
	ErrFatalMode = errors.New("tocpipe: all extraction modes exhausted")

	// ErrWindowTooLarge is returned when generate_init/generate_continue
	// truncate: there is no repair strategy for those entry points, the
	// caller must choose a smaller page-grouper window budget.
	ErrWindowTooLarge = errors.New("tocpipe: page window too large for a single structurer call")

	// ErrTransportExhausted is returned when the LLM transport's retry
	// budget (spec.md §6: up to 10 attempts) is exhausted.
	ErrTransportExhausted = errors.New("tocpipe: llm transport retries exhausted")

	// ErrNoToCDetected is a soft signal from the detector (not a failure):
	// callers use it to choose mode C immediately.
	ErrNoToCDetected = errors.New("tocpipe: no table of contents detected")

	// ErrEmptyDocument is returned when a pipeline run is given zero pages.
	ErrEmptyDocument = errors.New("tocpipe: document has no pages")
)
