package coverage

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

var debugAssertions atomic.Bool

func init() {
	debugAssertions.Store(os.Getenv("TIA_DEBUG_ASSERTIONS") != "")
}

// SetDebugAssertions toggles panicking on internal invariant violations. When
// off, violations are logged and the affected statistics degrade.
func SetDebugAssertions(enabled bool) {
	debugAssertions.Store(enabled)
}

func assertf(ok bool, format string, args ...any) {
	if ok {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if debugAssertions.Load() {
		panic("coverage invariant violated: " + msg)
	}

	slog.Warn("Coverage invariant violated", "detail", msg)
}
