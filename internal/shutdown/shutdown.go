// Package shutdown provides cooperative cancellation shared by every
// background loop in the bot.
package shutdown

import "sync/atomic"

// Signal is a clonable cooperative shutdown flag. Background loops check
// IsShutdown between iterations and at every blocking point they control.
type Signal struct {
	flag *atomic.Bool
}

// New creates a fresh, unsignaled Signal.
func New() Signal {
	return Signal{flag: new(atomic.Bool)}
}

// IsShutdown reports whether shutdown has been requested.
func (s Signal) IsShutdown() bool {
	return s.flag.Load()
}

// Shutdown requests shutdown. Safe to call more than once.
func (s Signal) Shutdown() {
	s.flag.Store(true)
}

// Signal offers no channel usable in a select statement; it stays a cheap
// value type. Callers poll IsShutdown in a loop or pair Signal with a
// context.Context at the call site.
