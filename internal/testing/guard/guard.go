// Package guard flips the runtime into test mode as a side effect of being
// imported, so package tests never boot real servers or schedulers.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SCHOLARIS_TEST_MODE") == "" {
			_ = os.Setenv("SCHOLARIS_TEST_MODE", "1")
		}
	})
}
