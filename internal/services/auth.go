package services

import (
	"net/http"

	"github.com/trobanga/fhirpush/internal/models"
)

// FHIR JSON media type used for both request and response bodies
const FHIRJSONContentType = "application/fhir+json"

// Access proxy credential headers
const (
	HeaderClientID     = "CF-Access-Client-Id"
	HeaderClientSecret = "CF-Access-Client-Secret"
)

// Authenticator produces the static header set sent with every request.
// There is no token exchange or expiry: the headers never change.
type Authenticator struct {
	credentials models.Credentials
}

// NewAuthenticator creates an Authenticator for the given credentials
func NewAuthenticator(credentials models.Credentials) *Authenticator {
	return &Authenticator{credentials: credentials}
}

// Headers returns a fresh copy of the request headers
func (a *Authenticator) Headers() http.Header {
	h := make(http.Header, 4)
	h.Set("Content-Type", FHIRJSONContentType)
	h.Set("Accept", FHIRJSONContentType)
	h.Set(HeaderClientID, a.credentials.ClientID)
	h.Set(HeaderClientSecret, a.credentials.ClientSecret)
	return h
}
