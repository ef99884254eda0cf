package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"github.com/trobanga/fhirpush/internal/lib"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search [param=value...]",
	Short: "Search Patients on the FHIR server",
	Long: `Run a Patient search and print the total and the ids on the first page.

Parameters are passed through as query-string parameters.

Examples:
  # First 10 patients
  fhirpush search _count=10

  # Patients by family name
  fhirpush search family=Smith`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	params, err := parseSearchParams(args)
	if err != nil {
		return err
	}

	_, _, client, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	result, err := client.FindPatients(cmd.Context(), params)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✓ Found %d patients on server\n", result.GetTotal())
	for _, id := range searchResultIDs(result) {
		fmt.Fprintf(out, "  Patient/%s\n", id)
	}

	return nil
}

// parseSearchParams turns key=value arguments into query parameters
func parseSearchParams(args []string) (url.Values, error) {
	params := url.Values{}
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid search parameter %q, expected key=value", arg)
		}
		params.Add(key, value)
	}
	return params, nil
}

// searchResultIDs lists entry[].resource.id of a searchset Bundle
func searchResultIDs(bundle lib.FHIRResource) []string {
	entries, ok := bundle["entry"].([]interface{})
	if !ok {
		return nil
	}

	var ids []string
	for _, entry := range entries {
		entryMap, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		resource, ok := entryMap["resource"].(map[string]interface{})
		if !ok {
			continue
		}
		if id, err := lib.FHIRResource(resource).GetID(); err == nil && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
