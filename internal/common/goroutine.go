// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected goroutine wrappers
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

// goroutineCounter tracks spawned goroutines for diagnostics
var goroutineCounter int64

// GetGoroutineCount returns the number of goroutines spawned via SafeGo
func GetGoroutineCount() int64 {
	return atomic.LoadInt64(&goroutineCounter)
}

// SafeGo runs a function in a goroutine with panic recovery.
// Panics are logged but don't crash the service.
// Use this for async operations like notification delivery where failure should not be fatal.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				stackTrace := string(buf[:n])

				if logger != nil {
					logger.Error().
						Str("goroutine", name).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", stackTrace).
						Msg("Recovered from panic in goroutine - continuing service operation")
				} else {
					fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, r, stackTrace)
				}
			}
		}()

		fn()
	}()
}
