package testutil

import (
	"testing"

	"github.com/jaspreeeet/kaku/internal/monitoring"
)

func TestRedirectLogs(t *testing.T) {
	var afterCleanup bool
	marker := func(format string, v ...interface{}) { afterCleanup = true }
	monitoring.SetLogger(marker)

	t.Run("redirected", func(t *testing.T) {
		RedirectLogs(t)
		monitoring.Logf("captured %d", 42)
		if afterCleanup {
			t.Error("log line reached the outer logger while redirected")
		}
	})

	// cleanup restored the logger that was active before the subtest
	monitoring.Logf("after")
	if !afterCleanup {
		t.Error("original logger was not restored after cleanup")
	}
	monitoring.SetLogger(nil)
}
