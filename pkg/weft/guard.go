package weft

import "sync/atomic"

// notifyDepthLimit is the maximum nested notification depth.
// Zero disables the guard (the default).
var notifyDepthLimit atomic.Int64

// SetDepthLimit installs a limit on nested notification depth for the whole
// process. When a write's synchronous propagation nests deeper than the
// limit, the offending Set panics with an error wrapping ErrDepthExceeded
// instead of exhausting the goroutine stack.
//
// The guard is off by default: a reaction that unconditionally writes a
// signal it also reads recurses until the stack limit, which is the engine's
// documented failure mode for write cycles. Enable the guard in services
// where a crash with a diagnosable error is preferable.
//
// A limit of 0 disables the guard. Returns the previous limit.
func SetDepthLimit(limit int) int {
	return int(notifyDepthLimit.Swap(int64(limit)))
}

// DepthLimit returns the current notification depth limit (0 means off).
func DepthLimit() int {
	return int(notifyDepthLimit.Load())
}
