package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/strategylab/optlabel/internal/engine"
)

// FormatSuccessMessage creates a success notification body.
func FormatSuccessMessage(result *engine.BatchResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Total: %d days\n", result.Total))
	sb.WriteString(fmt.Sprintf("Labeled: %d\n", result.Labeled))
	sb.WriteString(fmt.Sprintf("Skipped: %d\n", result.Skipped))
	sb.WriteString(fmt.Sprintf("Failed: %d\n", result.Failed))
	sb.WriteString(fmt.Sprintf("Duration: %s", result.Elapsed.Round(time.Second)))

	return sb.String()
}

// FormatFailureMessage creates a failure notification body.
func FormatFailureMessage(result *engine.BatchResult, err error) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Total: %d days\n", result.Total))
	sb.WriteString(fmt.Sprintf("Labeled: %d\n", result.Labeled))
	sb.WriteString(fmt.Sprintf("Failed: %d\n", result.Failed))
	sb.WriteString(fmt.Sprintf("Duration: %s", result.Elapsed.Round(time.Second)))

	if err != nil {
		sb.WriteString(fmt.Sprintf("\n\nError: %v", err))
	}

	// Include first 3 error messages if available
	if len(result.Errors) > 0 {
		sb.WriteString("\n\nErrors:\n")
		limit := 3
		if len(result.Errors) < limit {
			limit = len(result.Errors)
		}
		for i := 0; i < limit; i++ {
			sb.WriteString(fmt.Sprintf("- %s\n", result.Errors[i]))
		}
		if len(result.Errors) > 3 {
			sb.WriteString(fmt.Sprintf("... and %d more errors", len(result.Errors)-3))
		}
	}

	return sb.String()
}
