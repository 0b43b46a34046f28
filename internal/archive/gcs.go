package archive

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSProvider stores artifacts in a Google Cloud Storage bucket.
// Authentication uses Application Default Credentials.
type GCSProvider struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewGCSProvider creates a GCS client and verifies the bucket is
// reachable, failing fast on misconfiguration.
func NewGCSProvider(ctx context.Context, bucket, prefix string, logger *zap.Logger) (*GCSProvider, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("close gcs client after bucket check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("check gcs bucket %q: %w", bucket, err)
	}
	return &GCSProvider{client: client, bucket: bucket, prefix: prefix, logger: logger}, nil
}

// Save uploads data to <prefix>/<objectName> in the bucket.
func (g *GCSProvider) Save(ctx context.Context, objectName string, data []byte) error {
	object := objectName
	if g.prefix != "" {
		object = path.Join(g.prefix, objectName)
	}
	w := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		if cerr := w.Close(); cerr != nil {
			g.logger.Warn("close gcs writer after write failure", zap.Error(cerr))
		}
		return fmt.Errorf("write gcs object %s: %w", object, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gcs object %s: %w", object, err)
	}
	return nil
}

// Close releases the GCS client.
func (g *GCSProvider) Close() error {
	return g.client.Close()
}
