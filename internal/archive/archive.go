// Package archive uploads export artifacts to long-term storage. The
// provider abstraction keeps the exporter independent of where artifacts
// land (Google Cloud Storage, a local directory, or nowhere).
package archive

import "context"

// Provider stores one artifact under an object name.
type Provider interface {
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOpProvider discards artifacts. Useful for dry runs and as the default
// when archival is not configured.
type NoOpProvider struct{}

// Save does nothing and always succeeds.
func (NoOpProvider) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}
