package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/trobanga/fhirpush/internal/models"
)

// PrintSummary writes the end-of-run report
func PrintSummary(w io.Writer, stats *models.UploadStats, elapsed time.Duration, filesPerSecond float64) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintln(w, "Upload Summary:")
	fmt.Fprintf(w, "  Run ID: %s\n", stats.RunID)
	fmt.Fprintf(w, "  Total bundles: %d\n", stats.Total)
	if stats.Total < stats.Scanned {
		fmt.Fprintf(w, "  Not processed: %d (run interrupted)\n", stats.Scanned-stats.Total)
	}
	fmt.Fprintf(w, "  Successful: %d (%.1f%%)\n", stats.Successful, stats.SuccessRate())
	fmt.Fprintf(w, "  Failed: %d\n", stats.Failed)
	fmt.Fprintf(w, "  Elapsed: %s (%s)\n", FormatDuration(elapsed), FormatItemsPerSecond(filesPerSecond))

	fmt.Fprintln(w, "\nResources uploaded:")
	fmt.Fprintf(w, "  Patients: %d\n", stats.Patients)
	fmt.Fprintf(w, "  Observations: %d\n", stats.Observations)
	fmt.Fprintf(w, "  Medications: %d\n", stats.Medications)

	if failures := stats.FailureMessages(); len(failures) > 0 {
		fmt.Fprintln(w, "\nFailed bundles:")
		for _, msg := range failures {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
}
