package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/trobanga/fhirpush/internal/lib"
	"github.com/trobanga/fhirpush/internal/models"
)

// FHIRClient talks to the FHIR R4 endpoint behind the access proxy
type FHIRClient struct {
	baseURL string
	auth    *Authenticator
	read    *HTTPClient // metadata and search calls
	upload  *HTTPClient // bundle POSTs
	reader  *BundleReader
	logger  *lib.Logger
	out     io.Writer
}

// NewFHIRClient creates a client for config.Server. Operator-facing messages
// are written to out; diagnostics go to logger.
func NewFHIRClient(config models.Config, httpClient *HTTPClient, reader *BundleReader, logger *lib.Logger, out io.Writer) *FHIRClient {
	return &FHIRClient{
		baseURL: config.Server.BaseURL(),
		auth:    NewAuthenticator(config.Server.Credentials()),
		read:    httpClient.WithTimeout(config.Timeouts.ReadTimeout()),
		upload:  httpClient.WithTimeout(config.Timeouts.UploadTimeout()),
		reader:  reader,
		logger:  logger,
		out:     out,
	}
}

// BaseURL returns the FHIR base endpoint uploads are posted to
func (c *FHIRClient) BaseURL() string {
	return c.baseURL
}

// TestConnection fetches the server's CapabilityStatement.
// Returns true iff the server answered 200; never returns an error.
func (c *FHIRClient) TestConnection(ctx context.Context) bool {
	resp, err := c.read.Get(ctx, c.baseURL+"/metadata", c.auth.Headers())
	if err != nil {
		c.logger.Debug("Metadata request failed", "error", err)
		fmt.Fprintf(c.out, "✗ Connection error: %v\n", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(c.out, "✗ Connection error: %v\n", err)
		return false
	}

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(c.out, "✗ Connection failed: %d\n", resp.StatusCode)
		fmt.Fprintf(c.out, "  Response: %s\n", string(body))
		return false
	}

	info := lib.ParseServerInfo(body)
	fmt.Fprintln(c.out, "✓ Successfully connected to FHIR server")
	fmt.Fprintf(c.out, "  Server: %s\n", info.Software)
	fmt.Fprintf(c.out, "  Version: %s\n", info.FHIRVersion)
	return true
}

// UploadBundle POSTs a bundle to the base endpoint.
// 200 and 201 are success and return the parsed response body; anything else
// is an *lib.UploadError carrying the status and a truncated body.
func (c *FHIRClient) UploadBundle(ctx context.Context, bundle lib.FHIRResource) (lib.FHIRResource, error) {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return nil, lib.ErrInvalidBundleJSON("bundle", err)
	}

	return c.postBundle(ctx, payload, bundle)
}

// postBundle sends payload unchanged; bundle is only used for logging
func (c *FHIRClient) postBundle(ctx context.Context, payload []byte, bundle lib.FHIRResource) (lib.FHIRResource, error) {
	resourceType, err := bundle.GetResourceType()
	if err != nil {
		resourceType = "unknown"
	}
	resourceID, _ := bundle.GetID()
	c.logger.Debug("Uploading bundle", "resource_type", resourceType, "id", resourceID, "bytes", len(payload))

	resp, err := c.upload.Post(ctx, c.baseURL, c.auth.Headers(), payload)
	if err != nil {
		return nil, lib.ErrUploadTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, lib.ErrUploadTransport(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		retryable := c.upload.Policy().ShouldRetryStatus(http.MethodPost, resp.StatusCode)
		return nil, lib.ErrUploadRejected(resp.StatusCode, string(body), retryable)
	}

	// Some servers answer 201 with no body
	if len(bytes.TrimSpace(body)) == 0 {
		return lib.FHIRResource{}, nil
	}

	result, err := lib.ParseResource(body)
	if err != nil {
		return nil, lib.ErrInvalidResponse(resp.StatusCode, string(body), err)
	}

	return result, nil
}

// UploadBundleFile reads one bundle file and uploads its bytes as they are on disk.
// Every failure is folded into the returned outcome.
func (c *FHIRClient) UploadBundleFile(ctx context.Context, path string) models.FileOutcome {
	outcome := models.FileOutcome{FileName: path}

	bundle, err := c.reader.Read(path)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	response, err := c.postBundle(ctx, bundle.Raw, bundle.Resource)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.Response = response
	return outcome
}

// SearchPatients runs a Patient search with optional query parameters.
// Returns the searchset Bundle and true iff the server answered 200.
func (c *FHIRClient) SearchPatients(ctx context.Context, params url.Values) (lib.FHIRResource, bool) {
	result, err := c.FindPatients(ctx, params)
	if err == nil {
		return result, true
	}

	var uploadErr *lib.UploadError
	if errors.As(err, &uploadErr) && uploadErr.HTTPStatus > 0 && uploadErr.Cause == nil {
		fmt.Fprintf(c.out, "Search failed: %d\n", uploadErr.HTTPStatus)
	} else {
		fmt.Fprintf(c.out, "Search error: %v\n", err)
	}
	return nil, false
}

// FindPatients runs a Patient search and reports failures as errors:
// a network category error when no response arrived, a service category
// error when the server answered with anything but 200 or an unreadable body.
func (c *FHIRClient) FindPatients(ctx context.Context, params url.Values) (lib.FHIRResource, error) {
	searchURL := c.baseURL + "/Patient"
	if len(params) > 0 {
		searchURL += "?" + params.Encode()
	}

	resp, err := c.read.Get(ctx, searchURL, c.auth.Headers())
	if err != nil {
		return nil, lib.ErrSearchTransport(c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, lib.ErrSearchTransport(c.baseURL, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, lib.ErrSearchFailed(resp.StatusCode, string(body))
	}

	result, err := lib.ParseResource(body)
	if err != nil {
		return nil, lib.ErrInvalidResponse(resp.StatusCode, string(body), err)
	}

	return result, nil
}
