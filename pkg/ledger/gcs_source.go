//go:build gcp

package ledger

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSSource reads customers.csv and orders.csv from a Cloud Storage bucket.
type GCSSource struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSource creates a GCS-backed source. Credentials come from ADC.
func NewGCSSource(ctx context.Context, bucket, prefix string) (Source, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs source: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSSource{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSSource) Name() string { return "gs://" + s.bucket + "/" + s.prefix }

func (s *GCSSource) Load(ctx context.Context) (*Ledger, error) {
	customers, err := s.fetch(ctx, CustomersFile)
	if err != nil {
		return nil, err
	}
	orders, err := s.fetch(ctx, OrdersFile)
	if err != nil {
		return nil, err
	}
	return ReadCSV(bytes.NewReader(customers), bytes.NewReader(orders))
}

func (s *GCSSource) fetch(ctx context.Context, name string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.prefix + name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs read failed for %s: %w", name, err)
	}
	defer func() { _ = r.Close() }()

	return io.ReadAll(r)
}
