package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trobanga/fhirpush/internal/lib"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check connectivity to the FHIR server",
	Long: `Fetch the server's CapabilityStatement (GET /metadata) with the configured
credentials and print the server software and FHIR version.

Exits with code 3 if the server cannot be reached or rejects the request.

Example:
  fhirpush check`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	_, _, client, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Testing FHIR server connection...")
	if !client.TestConnection(cmd.Context()) {
		return lib.ErrServerUnreachable(client.BaseURL())
	}

	return nil
}
