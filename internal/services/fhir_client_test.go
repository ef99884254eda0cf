package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trobanga/fhirpush/internal/lib"
)

const capabilityStatement = `{
  "resourceType": "CapabilityStatement",
  "software": {"name": "HAPI FHIR Server"},
  "fhirVersion": "4.0.1"
}`

func TestFHIRClient_BaseURL(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:8080", afero.NewMemMapFs(), io.Discard)
	assert.Equal(t, "http://127.0.0.1:8080/fhir/R4", client.BaseURL())
}

func TestFHIRClient_TestConnection_Success(t *testing.T) {
	var received *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/fhir+json")
		_, _ = w.Write([]byte(capabilityStatement))
	}))
	defer server.Close()

	var out bytes.Buffer
	client := newTestClient(t, server.URL, afero.NewMemMapFs(), &out)

	assert.True(t, client.TestConnection(context.Background()))

	require.NotNil(t, received)
	assert.Equal(t, http.MethodGet, received.Method)
	assert.Equal(t, "/fhir/R4/metadata", received.URL.Path)
	assert.Equal(t, "test-client", received.Header.Get("CF-Access-Client-Id"))
	assert.Equal(t, "test-secret", received.Header.Get("CF-Access-Client-Secret"))

	assert.Contains(t, out.String(), "✓ Successfully connected to FHIR server")
	assert.Contains(t, out.String(), "  Server: HAPI FHIR Server")
	assert.Contains(t, out.String(), "  Version: 4.0.1")
}

func TestFHIRClient_TestConnection_UnknownServerInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resourceType": "CapabilityStatement"}`))
	}))
	defer server.Close()

	var out bytes.Buffer
	client := newTestClient(t, server.URL, afero.NewMemMapFs(), &out)

	assert.True(t, client.TestConnection(context.Background()))
	assert.Contains(t, out.String(), "  Server: Unknown")
	assert.Contains(t, out.String(), "  Version: Unknown")
}

func TestFHIRClient_TestConnection_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("access denied"))
	}))
	defer server.Close()

	var out bytes.Buffer
	client := newTestClient(t, server.URL, afero.NewMemMapFs(), &out)

	assert.False(t, client.TestConnection(context.Background()))
	assert.Contains(t, out.String(), "✗ Connection failed: 401")
	assert.Contains(t, out.String(), "  Response: access denied")
}

func TestFHIRClient_TestConnection_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	var out bytes.Buffer
	client := newTestClient(t, serverURL, afero.NewMemMapFs(), &out)

	assert.False(t, client.TestConnection(context.Background()))
	assert.Contains(t, out.String(), "✗ Connection error:")
}

func TestFHIRClient_UploadBundle_Created(t *testing.T) {
	var received map[string]any
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/fhir/R4", r.URL.Path)
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&received)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"resourceType": "Bundle", "type": "transaction-response"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, afero.NewMemMapFs(), io.Discard)
	bundle := lib.FHIRResource{"resourceType": "Bundle", "type": "transaction"}

	result, err := client.UploadBundle(context.Background(), bundle)
	require.NoError(t, err)

	assert.Equal(t, "transaction-response", result["type"])
	assert.Equal(t, "transaction", received["type"])
	assert.Equal(t, "application/fhir+json", contentType)
}

func TestFHIRClient_UploadBundle_EmptySuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, afero.NewMemMapFs(), io.Discard)

	result, err := client.UploadBundle(context.Background(), lib.FHIRResource{"resourceType": "Bundle"})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestFHIRClient_UploadBundle_InvalidSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, afero.NewMemMapFs(), io.Discard)

	_, err := client.UploadBundle(context.Background(), lib.FHIRResource{"resourceType": "Bundle"})

	var uploadErr *lib.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, http.StatusOK, uploadErr.HTTPStatus)
	assert.Equal(t, "<html>ok</html>", uploadErr.Body)
}

func TestFHIRClient_UploadBundle_RejectedTruncatesBody(t *testing.T) {
	var calls atomic.Int32
	longBody := strings.Repeat("e", 800)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(longBody))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, afero.NewMemMapFs(), io.Discard)

	_, err := client.UploadBundle(context.Background(), lib.FHIRResource{"resourceType": "Bundle"})

	var uploadErr *lib.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, "Upload failed: 400", uploadErr.Message)
	assert.Equal(t, 400, uploadErr.HTTPStatus)
	assert.Len(t, uploadErr.Body, 500)
	assert.False(t, uploadErr.IsRetryable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFHIRClient_UploadBundle_PersistentServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, afero.NewMemMapFs(), io.Discard)

	_, err := client.UploadBundle(context.Background(), lib.FHIRResource{"resourceType": "Bundle"})

	var uploadErr *lib.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, 503, uploadErr.HTTPStatus)
	assert.Equal(t, "maintenance", uploadErr.Body)
	assert.True(t, uploadErr.IsRetryable)
	assert.Equal(t, int32(4), calls.Load())
}

func TestFHIRClient_UploadBundle_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	client := newTestClient(t, serverURL, afero.NewMemMapFs(), io.Discard)

	_, err := client.UploadBundle(context.Background(), lib.FHIRResource{"resourceType": "Bundle"})

	var uploadErr *lib.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, "Upload error", uploadErr.Message)
	assert.Zero(t, uploadErr.HTTPStatus)
}

func TestFHIRClient_UploadBundleFile(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"resourceType": "Bundle", "type": "transaction-response"}`))
	}))
	defer server.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "data/ok.json", []byte(`{"resourceType": "Bundle", "entry": []}`), 0644))
	require.NoError(t, afero.WriteFile(fs, "data/broken.json", []byte(`{"resourceType": `), 0644))

	client := newTestClient(t, server.URL, fs, io.Discard)

	outcome := client.UploadBundleFile(context.Background(), "data/ok.json")
	assert.True(t, outcome.Succeeded())
	assert.Equal(t, "data/ok.json", outcome.FileName)
	assert.Equal(t, "transaction-response", outcome.Response["type"])

	outcome = client.UploadBundleFile(context.Background(), "data/broken.json")
	var uploadErr *lib.UploadError
	require.True(t, errors.As(outcome.Err, &uploadErr))
	assert.Equal(t, lib.CategoryValidation, uploadErr.Category)

	outcome = client.UploadBundleFile(context.Background(), "data/missing.json")
	require.True(t, errors.As(outcome.Err, &uploadErr))
	assert.Equal(t, lib.CategoryFileSystem, uploadErr.Category)

	assert.Equal(t, int32(1), calls.Load(), "unreadable bundles are never sent")
}

func TestFHIRClient_UploadBundleFile_SendsFileBytesUnchanged(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	// Large integers, key order and HTML characters must survive the upload
	content := []byte(`{"resourceType":"Bundle","type":"transaction","entry":[{"resource":` +
		`{"resourceType":"Observation","valueInteger":9007199254740993,"note":[{"text":"a<b & c>d"}]}}]}`)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "data/obs.json", content, 0644))

	client := newTestClient(t, server.URL, fs, io.Discard)

	outcome := client.UploadBundleFile(context.Background(), "data/obs.json")
	require.NoError(t, outcome.Err)
	assert.Equal(t, string(content), string(received))
}

func TestFHIRClient_SearchPatients(t *testing.T) {
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fhir/R4/Patient", r.URL.Path)
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{
			"resourceType": "Bundle",
			"type": "searchset",
			"total": 42,
			"entry": [{"resource": {"resourceType": "Patient", "id": "p1"}}]
		}`))
	}))
	defer server.Close()

	var out bytes.Buffer
	client := newTestClient(t, server.URL, afero.NewMemMapFs(), &out)

	result, ok := client.SearchPatients(context.Background(), url.Values{"_count": []string{"10"}})
	require.True(t, ok)
	assert.Equal(t, 42, result.GetTotal())
	assert.Equal(t, "10", query.Get("_count"))
	assert.Empty(t, out.String())
}

func TestFHIRClient_SearchPatients_NoParams(t *testing.T) {
	var rawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"resourceType": "Bundle", "type": "searchset", "total": 0}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, afero.NewMemMapFs(), io.Discard)

	result, ok := client.SearchPatients(context.Background(), nil)
	require.True(t, ok)
	assert.Equal(t, 0, result.GetTotal())
	assert.Empty(t, rawQuery)
}

func TestFHIRClient_SearchPatients_Failed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	var out bytes.Buffer
	client := newTestClient(t, server.URL, afero.NewMemMapFs(), &out)

	result, ok := client.SearchPatients(context.Background(), nil)
	assert.False(t, ok)
	assert.Nil(t, result)
	assert.Contains(t, out.String(), "Search failed: 403")
}

func TestFHIRClient_FindPatients_RejectedIsServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"resourceType": "OperationOutcome"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, afero.NewMemMapFs(), io.Discard)

	_, err := client.FindPatients(context.Background(), url.Values{"bogus": []string{"x"}})

	var uploadErr *lib.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, lib.CategoryService, uploadErr.Category)
	assert.Equal(t, "Search failed: 400", uploadErr.Message)
	assert.Equal(t, `{"resourceType": "OperationOutcome"}`, uploadErr.Body)
	assert.Equal(t, lib.ExitGeneric, lib.ExitCode(err))
}

func TestFHIRClient_FindPatients_UnreachableIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	var out bytes.Buffer
	client := newTestClient(t, serverURL, afero.NewMemMapFs(), &out)

	_, err := client.FindPatients(context.Background(), nil)
	assert.Equal(t, lib.ExitConnectivity, lib.ExitCode(err))

	_, ok := client.SearchPatients(context.Background(), nil)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "Search error:")
}
