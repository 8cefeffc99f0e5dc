package formatter

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/fnship/fnship/internal/models"
)

// PrintDeployTable formats and prints deploy results in a table
func PrintDeployTable(results []models.DeployResult, deployStartTime time.Time, deployDuration time.Duration) {
	// Early return if no results
	if len(results) == 0 {
		fmt.Println("No functions deployed.")
		return
	}

	// Use tabwriter for aligned columns with kubectl style spacing
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)

	// Print header
	fmt.Fprintln(w, "FUNCTION\tACTION\tVERSION\tRUNTIME\tPACKAGE\tTIME")

	// Loop through each result
	for _, result := range results {
		version := result.Function.Version
		if version == "" {
			version = "-"
		}

		runtime := result.Function.Runtime
		if runtime == "" {
			runtime = "-"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2fs\n",
			truncateString(result.Function.FunctionName, 50),
			string(result.Action),
			version,
			runtime,
			humanize.Bytes(uint64(result.PackageSize)),
			result.Duration.Seconds(),
		)
	}

	// Print totals
	printDeployTotals(w, results)

	// Flush the tabwriter buffer
	w.Flush()

	printTimestamp(deployStartTime, deployDuration)
}

// printDeployTotals prints the summary information at the bottom of the table
func printDeployTotals(w *tabwriter.Writer, results []models.DeployResult) {
	createdCount := 0
	updatedCount := 0
	var totalBytes int64

	for _, result := range results {
		switch result.Action {
		case models.ActionCreated, models.ActionWouldCreate:
			createdCount++
		case models.ActionUpdated, models.ActionWouldUpdate:
			updatedCount++
		}
		totalBytes += result.PackageSize
	}

	fmt.Fprintf(w, "Total:\t%d created, %d updated\t\t\t%s\t\n",
		createdCount,
		updatedCount,
		humanize.Bytes(uint64(totalBytes)),
	)
}

// PrintDeploySummary displays summary information about deployed functions
func PrintDeploySummary(results []models.DeployResult) {
	if len(results) == 0 {
		return
	}

	// Group by runtime
	runtimeCounts := make(map[string]int)
	for _, result := range results {
		if result.Function.Runtime != "" {
			runtimeCounts[result.Function.Runtime]++
		}
	}

	if len(runtimeCounts) > 0 {
		fmt.Println("\nRuntimes:")
		for runtime, count := range runtimeCounts {
			fmt.Printf("  %-16s %d\n", runtime, count)
		}
	}
}
