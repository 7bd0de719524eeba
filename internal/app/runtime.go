package app

import (
	"os"
	"sync"
)

const testModeEnv = "LEDGER_TEST_MODE"

var (
	testMode     bool
	testModeOnce sync.Once
)

// InTestMode reports whether the binaries should exit before connecting to
// Postgres and Redis. It is read once per process.
func InTestMode() bool {
	testModeOnce.Do(func() {
		testMode = os.Getenv(testModeEnv) == "1"
	})
	return testMode
}
