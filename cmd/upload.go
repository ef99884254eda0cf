package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/trobanga/fhirpush/internal/lib"
	"github.com/trobanga/fhirpush/internal/pipeline"
)

// Filesystem holding the bundle directory
var appFs = afero.NewOsFs()

var (
	batchSize    int
	delay        time.Duration
	showProgress bool
	skipVerify   bool
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload [directory]",
	Short: "Upload all bundles in a directory",
	Long: `Upload every *.json FHIR Bundle in a directory to the FHIR server.

Steps:
  1. Check connectivity (GET /metadata)
  2. Upload each bundle in lexicographic order (POST to the base endpoint)
  3. Print a summary with success rate and Patient/Observation/MedicationStatement counts
  4. Verify with a Patient search

A failing bundle never stops the batch. The run is aborted only for missing
configuration (exit 2), an unreachable server (exit 3) or a missing
directory (exit 4).

The directory defaults to PROCESSED_FHIR_DIR, or ./processed_fhir.

Examples:
  # Upload from PROCESSED_FHIR_DIR
  fhirpush upload

  # Upload from a specific directory with a progress bar
  fhirpush upload ./out/bundles --progress

  # Slow down for a strict rate limit
  fhirpush upload --delay 2s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().IntVar(&batchSize, "batch-size", 0, "files between progress lines (default from config: 10)")
	uploadCmd.Flags().DurationVar(&delay, "delay", -1, "pause after each file (default from config: 500ms)")
	uploadCmd.Flags().BoolVar(&showProgress, "progress", false, "show a progress bar on stderr")
	uploadCmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "skip the Patient search after uploading")
}

func runUpload(cmd *cobra.Command, args []string) error {
	config, logger, client, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	// CLI flags override config values
	if len(args) == 1 {
		config.Upload.Dir = args[0]
	}
	if cmd.Flags().Changed("batch-size") {
		if batchSize <= 0 {
			return lib.ErrInvalidConfig(fmt.Errorf("--batch-size must be > 0, got %d", batchSize))
		}
		config.Upload.BatchSize = batchSize
	}
	if cmd.Flags().Changed("delay") {
		if delay < 0 {
			return lib.ErrInvalidConfig(fmt.Errorf("--delay cannot be negative, got %s", delay))
		}
		config.Upload.DelayMs = delay.Milliseconds()
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Testing FHIR server connection...")
	if !client.TestConnection(ctx) {
		return lib.ErrServerUnreachable(client.BaseURL())
	}

	runner := pipeline.NewRunner(appFs, client, config.Upload, logger, out)
	runner.EnableProgressBar(showProgress)

	stats, err := runner.Run(ctx, config.Upload.Dir)
	logger.Debug("Upload run ended", "phase", runner.Phase())
	if err != nil {
		return err
	}

	if err := stats.Errors(); err != nil {
		logger.Debug("Per-file failures", "run_id", stats.RunID, "errors", err)
	}

	if skipVerify || ctx.Err() != nil {
		return nil
	}

	pipeline.VerifyUpload(ctx, client, out)
	return nil
}
