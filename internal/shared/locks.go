package shared

import "fmt"

// IntegrityLockKey builds the redis key guarding the ledger integrity scan so
// overlapping scheduler fires do not double-run it.
func IntegrityLockKey() string {
	return "ledger:integrity:lock"
}

// SummaryCacheKey is the redis key holding the cached balance summary.
func SummaryCacheKey(version int64) string {
	return fmt.Sprintf("ledger:summary:v%d", version)
}
