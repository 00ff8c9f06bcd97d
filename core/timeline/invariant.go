package timeline

import "log/slog"

// Strict makes invariant violations panic instead of clamp-and-log.
// Violations (non-monotonic timestamps, count underflow, replay mismatch)
// indicate a programming defect, not a recoverable runtime condition; tests
// enable Strict so defects fail loudly, while production keeps running
// without corrupting persisted state.
var Strict = false

func violated(log *slog.Logger, msg string, args ...any) {
	if Strict {
		panic("invariant violated: " + msg)
	}
	log.Error("invariant violated: "+msg, args...)
}
