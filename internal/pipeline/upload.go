package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/trobanga/fhirpush/internal/lib"
	"github.com/trobanga/fhirpush/internal/models"
	"github.com/trobanga/fhirpush/internal/ui"
)

// BundleUploader uploads one bundle file and reports the outcome
type BundleUploader interface {
	UploadBundleFile(ctx context.Context, path string) models.FileOutcome
}

// Runner uploads every bundle in a directory, one at a time
type Runner struct {
	fs           afero.Fs
	uploader     BundleUploader
	config       models.UploadConfig
	logger       *lib.Logger
	out          io.Writer
	limiter      *rate.Limiter
	sleep        func(context.Context, time.Duration) error
	showProgress bool
	phase        models.RunPhase
}

// NewRunner creates a batch runner. Status lines are written to out.
func NewRunner(fs afero.Fs, uploader BundleUploader, config models.UploadConfig, logger *lib.Logger, out io.Writer) *Runner {
	r := &Runner{
		fs:       fs,
		uploader: uploader,
		config:   config,
		logger:   logger,
		out:      out,
		sleep:    lib.Sleep,
		phase:    models.PhaseIdle,
	}

	if config.RateLimitPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(config.RateLimitPerSecond), 1)
	}

	return r
}

// EnableProgressBar renders a progress bar on stderr alongside the status lines
func (r *Runner) EnableProgressBar(enabled bool) {
	r.showProgress = enabled
}

// Phase returns the current run phase
func (r *Runner) Phase() models.RunPhase {
	return r.phase
}

func (r *Runner) transition(next models.RunPhase) {
	if !r.phase.CanTransitionTo(next) {
		r.logger.Warn("Unexpected run phase transition", "from", r.phase, "to", next)
	}
	r.phase = next
}

// Run uploads all *.json files in dir in lexicographic order and returns the stats.
// Only a missing or unreadable directory is an error; per-file failures are
// counted in the stats and never stop the batch.
func (r *Runner) Run(ctx context.Context, dir string) (*models.UploadStats, error) {
	r.phase = models.PhaseIdle
	r.transition(models.PhaseScanning)

	files, err := ScanBundleFiles(r.fs, dir)
	if err != nil {
		r.transition(models.PhaseDone)
		return nil, err
	}

	stats := models.NewUploadStats(uuid.New().String(), len(files))
	logger := r.logger.With("run_id", stats.RunID)
	lib.LogRunStarted(logger, stats.RunID, dir, len(files))

	r.transition(models.PhaseProcessing)

	fmt.Fprintf(r.out, "\nUploading %d bundles from %s\n", len(files), dir)
	fmt.Fprintln(r.out, strings.Repeat("=", 70))

	var bar *ui.ProgressBar
	if r.showProgress && len(files) > 0 {
		bar = ui.NewProgressBar(int64(len(files)), "Uploading bundles")
	}

	throughput := ui.NewThroughputCalculator()
	startTime := time.Now()

	for idx, path := range files {
		if ctx.Err() != nil {
			logger.Warn("Upload run interrupted", "processed", stats.Total, "remaining", len(files)-idx)
			break
		}

		r.processFile(ctx, logger, stats, idx+1, len(files), path)
		throughput.Update(int64(stats.Total))

		if bar != nil {
			_ = bar.Add(1)
		}

		// Progress update
		if (idx+1)%r.config.BatchSize == 0 {
			fmt.Fprintf(r.out, "  Progress: %d successful, %d failed\n", stats.Successful, stats.Failed)
		}

		// Rate limiting delay; cancellation is picked up on the next iteration
		_ = r.sleep(ctx, r.config.Delay())
	}

	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	r.transition(models.PhaseReporting)
	if !stats.IsConsistent() {
		logger.Error("Upload stats out of balance",
			"total", stats.Total, "successful", stats.Successful, "failed", stats.Failed)
	}
	elapsed := time.Since(startTime)
	ui.PrintSummary(r.out, stats, elapsed, throughput.GetAverageItemsPerSecond())
	lib.LogRunCompleted(logger, stats.RunID, stats.Successful, stats.Failed, elapsed)

	r.transition(models.PhaseDone)
	return stats, nil
}

// processFile counts, uploads and records a single bundle
func (r *Runner) processFile(ctx context.Context, logger *lib.Logger, stats *models.UploadStats, index, total int, path string) {
	name := filepath.Base(path)
	fmt.Fprintf(r.out, "[%d/%d] Uploading %s... ", index, total, name)

	// Count resources in bundle, tolerating any failure
	if data, err := afero.ReadFile(r.fs, path); err == nil {
		stats.AddResourceCounts(lib.CountResourceTypes(data))
	} else {
		logger.Debug("Skipping resource count", "file", name, "error", err)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			logger.Debug("Rate limiter wait aborted", "error", err)
		}
	}

	outcome := r.uploader.UploadBundleFile(ctx, path)
	outcome.FileName = name
	stats.Record(outcome)

	if outcome.Succeeded() {
		fmt.Fprintln(r.out, "✓")
		return
	}

	fmt.Fprintln(r.out, "✗")
	printFailure(r.out, outcome.Err)
	logger.Debug("Bundle upload failed", "file", name, "error", outcome.Err)
}

// printFailure writes the indented diagnostic lines for a failed file
func printFailure(w io.Writer, err error) {
	var uploadErr *lib.UploadError
	if !errors.As(err, &uploadErr) {
		fmt.Fprintf(w, "  Error: %v\n", err)
		return
	}

	if uploadErr.HTTPStatus > 0 {
		fmt.Fprintf(w, "  Upload failed: %d\n", uploadErr.HTTPStatus)
		fmt.Fprintf(w, "  Response: %s\n", uploadErr.Body)
		return
	}

	fmt.Fprintf(w, "  %s\n", uploadErr.Error())
}

// ScanBundleFiles lists the *.json files directly inside dir, sorted lexicographically.
// A missing or unreadable directory is a filesystem error.
func ScanBundleFiles(fs afero.Fs, dir string) ([]string, error) {
	info, err := fs.Stat(dir)
	if err != nil {
		return nil, lib.ErrDirectoryNotFound(dir, err)
	}
	if !info.IsDir() {
		return nil, lib.ErrDirectoryNotFound(dir, fmt.Errorf("not a directory"))
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, lib.ErrDirectoryNotFound(dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".json") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(files)
	return files, nil
}
