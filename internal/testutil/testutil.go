// Package testutil provides shared test helpers.
package testutil

import (
	"testing"

	"github.com/jaspreeeet/kaku/internal/monitoring"
)

// RedirectLogs routes monitoring output through t.Logf for the duration
// of the test so diagnostic lines attach to the failing test instead of
// interleaving on stderr. The default logger is restored on cleanup.
func RedirectLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		t.Logf(format, v...)
	})
	t.Cleanup(func() { monitoring.SetLogger(original) })
}
