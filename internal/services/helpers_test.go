package services_test

import (
	"io"
	"net/url"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/trobanga/fhirpush/internal/lib"
	"github.com/trobanga/fhirpush/internal/models"
	"github.com/trobanga/fhirpush/internal/services"
)

// testConfig points the default configuration at serverURL with fast retries
func testConfig(t *testing.T, serverURL string) models.Config {
	t.Helper()

	u, err := url.Parse(serverURL)
	require.NoError(t, err)

	config := models.DefaultConfig()
	config.Server.Scheme = u.Scheme
	config.Server.Hostname = u.Host
	config.Server.ClientID = "test-client"
	config.Server.ClientSecret = "test-secret"
	config.Retry.BackoffFactorMs = 1
	config.Retry.MaxBackoffMs = 10
	config.Upload.DelayMs = 0
	return config
}

func testLogger() *lib.Logger {
	return lib.NewLoggerWithWriter(lib.LogLevelError, io.Discard)
}

func newTestClient(t *testing.T, serverURL string, fs afero.Fs, out io.Writer) *services.FHIRClient {
	t.Helper()

	config := testConfig(t, serverURL)
	logger := testLogger()
	httpClient := services.NewHTTPClient(config.Timeouts.UploadTimeout(), config.Retry, logger)
	return services.NewFHIRClient(config, httpClient, services.NewBundleReader(fs), logger, out)
}
