package app

import (
	"os"
	"sync"
	"sync/atomic"
)

var (
	testModeOnce sync.Once
	testMode     atomic.Bool
)

// InTestMode reports whether SCHOLARIS_TEST_MODE was set when the process
// started. Background schedulers are disabled in test mode.
func InTestMode() bool {
	testModeOnce.Do(refreshTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the environment flag. Only tests call this.
func RefreshTestMode() {
	refreshTestMode()
}

func refreshTestMode() {
	testMode.Store(os.Getenv("SCHOLARIS_TEST_MODE") == "1")
}
