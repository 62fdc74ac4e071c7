// Package safego launches background goroutines that cannot take the process down.
package safego

import "log/slog"

// Go runs fn in a new goroutine and logs, rather than propagates, a panic.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}
