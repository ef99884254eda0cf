/*
Copyright © 2025 fhirpush Contributors

fhirpush is a CLI tool for uploading processed FHIR bundles to a FHIR server.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/trobanga/fhirpush/internal/lib"
	"github.com/trobanga/fhirpush/internal/models"
	"github.com/trobanga/fhirpush/internal/services"
)

var (
	// Global flags
	cfgFile string
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fhirpush",
	Short: "fhirpush - upload FHIR bundles to a FHIR server",
	Long: `fhirpush uploads locally stored FHIR Bundle JSON files to a FHIR R4 server.

Every request carries the access headers CF-Access-Client-Id and
CF-Access-Client-Secret. Bundles are uploaded one at a time with a fixed
pause between files; transient failures (429, 5xx gateway errors, network
errors) are retried with exponential backoff.

Required environment (or .env file):
  HTTP_HOSTNAME        FHIR server hostname, e.g. fhir.example.com
  HTTP_CLIENT_ID       access client id
  HTTP_CLIENT_SECRET   access client secret
  PROCESSED_FHIR_DIR   bundle directory (default ./processed_fhir)

Example:
  fhirpush check
  fhirpush upload
  fhirpush search family=Smith`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		var uploadErr *lib.UploadError
		if errors.As(err, &uploadErr) {
			fmt.Fprint(os.Stderr, uploadErr.UserMessage())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(lib.ExitCode(err))
	}
}

func init() {
	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./fhirpush.yaml, ~/.config/fhirpush/fhirpush.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with HTTP_* variables (ignored if missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	// Add version template
	rootCmd.SetVersionTemplate("fhirpush version {{.Version}}\n")
}

// loadRuntime loads configuration and builds the logger and FHIR client shared by all commands
func loadRuntime(cmd *cobra.Command) (*models.Config, *lib.Logger, *services.FHIRClient, error) {
	config, err := services.LoadConfig(cfgFile, envFile)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := lib.NewLogger(lib.ParseLogLevel(config.LogLevel))
	if verbose {
		logger.SetLevel(lib.LogLevelDebug)
	}

	httpClient := services.NewHTTPClient(config.Timeouts.UploadTimeout(), config.Retry, logger)
	reader := services.NewBundleReader(appFs)
	client := services.NewFHIRClient(*config, httpClient, reader, logger, cmd.OutOrStdout())

	return config, logger, client, nil
}
