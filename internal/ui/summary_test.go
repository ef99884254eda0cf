package ui_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/trobanga/fhirpush/internal/models"
	"github.com/trobanga/fhirpush/internal/ui"
)

func TestPrintSummary(t *testing.T) {
	stats := models.NewUploadStats("run-42", 3)
	stats.Record(models.FileOutcome{FileName: "a.json"})
	stats.Record(models.FileOutcome{FileName: "b.json"})
	stats.Record(models.FileOutcome{FileName: "c.json", Err: errors.New("Upload failed: 400")})
	stats.AddResourceCounts(map[string]int{"Patient": 2, "Observation": 10, "MedicationStatement": 3})

	var buf bytes.Buffer
	ui.PrintSummary(&buf, stats, 1500*time.Millisecond, 2)

	out := buf.String()
	assert.Contains(t, out, "Upload Summary:")
	assert.Contains(t, out, "  Run ID: run-42")
	assert.Contains(t, out, "  Total bundles: 3")
	assert.Contains(t, out, "  Successful: 2 (66.7%)")
	assert.Contains(t, out, "  Failed: 1")
	assert.Contains(t, out, "  Elapsed: 1.5s (2.00 files/sec)")
	assert.Contains(t, out, "  Patients: 2")
	assert.Contains(t, out, "  Observations: 10")
	assert.Contains(t, out, "  Medications: 3")
	assert.Contains(t, out, "  - c.json: Upload failed: 400")
	assert.NotContains(t, out, "Not processed")
}

func TestPrintSummary_EmptyRun(t *testing.T) {
	var buf bytes.Buffer
	ui.PrintSummary(&buf, models.NewUploadStats("run-0", 0), 0, 0)

	out := buf.String()
	assert.Contains(t, out, "  Total bundles: 0")
	assert.Contains(t, out, "  Successful: 0 (0.0%)")
	assert.NotContains(t, out, "NaN")
	assert.NotContains(t, out, "Failed bundles:")
}

func TestPrintSummary_InterruptedRun(t *testing.T) {
	stats := models.NewUploadStats("run-1", 5)
	stats.Record(models.FileOutcome{FileName: "a.json"})

	var buf bytes.Buffer
	ui.PrintSummary(&buf, stats, time.Second, 1)

	assert.Contains(t, buf.String(), "  Not processed: 4 (run interrupted)")
}
