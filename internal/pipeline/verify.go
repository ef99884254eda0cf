package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/trobanga/fhirpush/internal/lib"
)

// PatientSearcher runs Patient searches against the server
type PatientSearcher interface {
	SearchPatients(ctx context.Context, params url.Values) (lib.FHIRResource, bool)
}

// VerifyUpload checks post-upload state with a small Patient search.
// Returns the server-reported total and whether the search succeeded.
func VerifyUpload(ctx context.Context, searcher PatientSearcher, out io.Writer) (int, bool) {
	fmt.Fprintln(out, "\nVerifying upload...")

	result, ok := searcher.SearchPatients(ctx, url.Values{"_count": []string{"10"}})
	if !ok {
		return 0, false
	}

	total := result.GetTotal()
	fmt.Fprintf(out, "✓ Found %d patients on server\n", total)
	return total, true
}
