package lib

import (
	"errors"
	"fmt"
	"strings"
)

// UploadError represents a user-friendly error with context and guidance
type UploadError struct {
	Category    ErrorCategory
	Message     string   // Short description of what went wrong
	Cause       error    // Underlying error
	Guidance    []string // What the user can do to fix it
	HTTPStatus  int      // HTTP status code if applicable
	Body        string   // Truncated response body if applicable
	IsRetryable bool     // Was this error eligible for automatic retry?
}

// ErrorCategory classifies errors for better UX
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryNetwork       ErrorCategory = "network"
	CategoryFileSystem    ErrorCategory = "filesystem"
	CategoryValidation    ErrorCategory = "validation"
	CategoryService       ErrorCategory = "service"
)

// Process exit codes for run-aborting errors
const (
	ExitOK           = 0
	ExitGeneric      = 1
	ExitConfig       = 2
	ExitConnectivity = 3
	ExitDirectory    = 4
)

// MaxBodyChars bounds the response body kept for diagnostics
const MaxBodyChars = 500

// Error implements the error interface
func (e *UploadError) Error() string {
	var sb strings.Builder

	// Category prefix for clarity
	sb.WriteString(fmt.Sprintf("[%s] ", strings.ToUpper(string(e.Category))))
	sb.WriteString(e.Message)

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if e.HTTPStatus > 0 {
		sb.WriteString(fmt.Sprintf(" (HTTP %d)", e.HTTPStatus))
	}

	return sb.String()
}

// UserMessage returns a formatted message suitable for displaying to end users
func (e *UploadError) UserMessage() string {
	var sb strings.Builder

	sb.WriteString("✗ Error: ")
	sb.WriteString(e.Message)
	sb.WriteString("\n")

	if len(e.Guidance) > 0 {
		sb.WriteString("\nPlease check:\n")
		for i, guide := range e.Guidance {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, guide))
		}
	}

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("\nTechnical details: %v\n", e.Cause))
	}

	return sb.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility
func (e *UploadError) Unwrap() error {
	return e.Cause
}

// Configuration Errors

// ErrMissingCredentials creates an error for required environment variables that are unset
func ErrMissingCredentials(missing []string) *UploadError {
	return &UploadError{
		Category: CategoryConfiguration,
		Message:  fmt.Sprintf("Missing environment variables: %s", strings.Join(missing, ", ")),
		Guidance: []string{
			"Set HTTP_HOSTNAME, HTTP_CLIENT_ID, and HTTP_CLIENT_SECRET",
			"Or create a .env file with:\n     HTTP_HOSTNAME=your-fhir-server.com\n     HTTP_CLIENT_ID=your-client-id\n     HTTP_CLIENT_SECRET=your-client-secret",
		},
	}
}

// ErrInvalidConfig creates an error for configuration validation failures
func ErrInvalidConfig(cause error) *UploadError {
	return &UploadError{
		Category: CategoryConfiguration,
		Message:  "Invalid configuration",
		Cause:    cause,
		Guidance: []string{
			"Check the values in fhirpush.yaml and FHIRPUSH_* environment variables",
			"Remove overrides to fall back to the defaults",
		},
	}
}

// Network Errors

// ErrServerUnreachable creates an error for a failed connectivity check
func ErrServerUnreachable(url string) *UploadError {
	return &UploadError{
		Category: CategoryNetwork,
		Message:  fmt.Sprintf("Cannot connect to FHIR server at %s", url),
		Guidance: []string{
			"Server hostname is correct",
			"Client ID and secret are valid",
			"Network connectivity",
		},
		IsRetryable: true,
	}
}

// ErrSearchTransport creates an error for a search request that never produced a response
func ErrSearchTransport(url string, cause error) *UploadError {
	return &UploadError{
		Category: CategoryNetwork,
		Message:  fmt.Sprintf("Search request to %s failed", url),
		Cause:    cause,
		Guidance: []string{
			"Server hostname is correct",
			"Network connectivity",
		},
		IsRetryable: IsNetworkError(cause),
	}
}

// Filesystem Errors

// ErrDirectoryNotFound creates an error for a missing input directory
func ErrDirectoryNotFound(path string, cause error) *UploadError {
	return &UploadError{
		Category: CategoryFileSystem,
		Message:  fmt.Sprintf("Directory %s does not exist", path),
		Cause:    cause,
		Guidance: []string{
			"Generate the processed bundles first",
			"Point PROCESSED_FHIR_DIR (or the upload argument) at the bundle directory",
		},
	}
}

// ErrFileUnreadable creates a per-file error for a missing or unreadable bundle
func ErrFileUnreadable(path string, cause error) *UploadError {
	return &UploadError{
		Category: CategoryFileSystem,
		Message:  fmt.Sprintf("Cannot read bundle file %s", path),
		Cause:    cause,
	}
}

// ErrInvalidBundleJSON creates a per-file error for content that is not a JSON object
func ErrInvalidBundleJSON(path string, cause error) *UploadError {
	return &UploadError{
		Category: CategoryValidation,
		Message:  fmt.Sprintf("Invalid JSON in %s", path),
		Cause:    cause,
	}
}

// Service Errors

// ErrUploadRejected creates an error for a non-success HTTP status on upload
func ErrUploadRejected(statusCode int, body string, retryable bool) *UploadError {
	return &UploadError{
		Category:    CategoryService,
		Message:     fmt.Sprintf("Upload failed: %d", statusCode),
		HTTPStatus:  statusCode,
		Body:        TruncateBody(body, MaxBodyChars),
		IsRetryable: retryable,
	}
}

// ErrInvalidResponse creates an error for a success status whose body is not a JSON object
func ErrInvalidResponse(statusCode int, body string, cause error) *UploadError {
	return &UploadError{
		Category:   CategoryService,
		Message:    fmt.Sprintf("Server answered %d with an unreadable response", statusCode),
		Cause:      cause,
		HTTPStatus: statusCode,
		Body:       TruncateBody(body, MaxBodyChars),
	}
}

// ErrSearchFailed creates an error for a search the server answered with a non-200 status
func ErrSearchFailed(statusCode int, body string) *UploadError {
	return &UploadError{
		Category:   CategoryService,
		Message:    fmt.Sprintf("Search failed: %d", statusCode),
		HTTPStatus: statusCode,
		Body:       TruncateBody(body, MaxBodyChars),
		Guidance: []string{
			"Search parameters are valid for the Patient resource",
			"Client ID and secret are valid",
		},
	}
}

// ErrUploadTransport creates an error for a request that never produced a response
func ErrUploadTransport(cause error) *UploadError {
	return &UploadError{
		Category:    CategoryService,
		Message:     "Upload error",
		Cause:       cause,
		IsRetryable: IsNetworkError(cause),
	}
}

// Helper Functions

// TruncateBody keeps at most limit characters of a response body
func TruncateBody(body string, limit int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit])
}

// ExitCode maps a run-aborting error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		return ExitGeneric
	}

	switch uploadErr.Category {
	case CategoryConfiguration:
		return ExitConfig
	case CategoryNetwork:
		return ExitConnectivity
	case CategoryFileSystem:
		return ExitDirectory
	default:
		return ExitGeneric
	}
}
