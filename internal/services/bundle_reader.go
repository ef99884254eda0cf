package services

import (
	"github.com/spf13/afero"
	"github.com/trobanga/fhirpush/internal/lib"
)

// Bundle is a bundle file that parsed as a JSON object.
// Raw holds the file content exactly as read; it is what gets uploaded.
type Bundle struct {
	Path     string
	Raw      []byte
	Resource lib.FHIRResource
}

// BundleReader loads bundle documents from a filesystem
type BundleReader struct {
	fs afero.Fs
}

// NewBundleReader creates a reader over fs; use afero.NewOsFs() for the real disk
func NewBundleReader(fs afero.Fs) *BundleReader {
	return &BundleReader{fs: fs}
}

// ReadRaw returns the file content without parsing it
func (r *BundleReader) ReadRaw(path string) ([]byte, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, lib.ErrFileUnreadable(path, err)
	}
	return data, nil
}

// Read loads and checks a bundle file.
// Fails with a filesystem error if the file is missing or unreadable,
// and with a validation error if the content is not a JSON object.
func (r *BundleReader) Read(path string) (*Bundle, error) {
	data, err := r.ReadRaw(path)
	if err != nil {
		return nil, err
	}

	resource, err := lib.ParseResource(data)
	if err != nil {
		return nil, lib.ErrInvalidBundleJSON(path, err)
	}

	return &Bundle{Path: path, Raw: data, Resource: resource}, nil
}
