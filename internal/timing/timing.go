// Package timing measures and formats the duration of long running steps
// such as precomputation and sampling runs.
package timing

import (
	"fmt"
	"time"

	"github.com/OFFIS-RIT/ontokit/pkg/logger"
)

// Format renders d as HH:MM:SS.
func Format(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// Track logs the start of step and returns a function that logs its
// duration, meant for defer.
func Track(step string, keyvals ...any) func() {
	start := time.Now()
	logger.Debug("Started "+step, keyvals...)
	return func() {
		kv := append(append([]any{}, keyvals...), "duration", Format(time.Since(start)))
		logger.Info("Finished "+step, kv...)
	}
}

// ETA estimates the remaining time from done of total units after elapsed.
func ETA(done, total int64, elapsed time.Duration) time.Duration {
	if done <= 0 || total <= done {
		return 0
	}
	perUnit := elapsed / time.Duration(done)
	return perUnit * time.Duration(total-done)
}

// Percentage returns done/total in whole percent, clamped to [0, 100].
func Percentage(done, total int64) int32 {
	if total <= 0 {
		return 0
	}
	return int32(min(max(done*100/total, 0), 100))
}
