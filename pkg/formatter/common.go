package formatter

import (
	"fmt"
	"time"
)

// printTimestamp prints the deploy timestamp and duration
func printTimestamp(deployStartTime time.Time, deployDuration time.Duration) {
	// Format the deploy time
	timeStr := deployStartTime.Format("2006-01-02 15:04:05")

	// Format the duration
	durationStr := fmt.Sprintf("%.2fs", deployDuration.Seconds())

	fmt.Printf("Deploy completed at %s (took %s)\n", timeStr, durationStr)
}

// truncateString shortens s to maxLength with a trailing ellipsis
func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength-3] + "..."
}
