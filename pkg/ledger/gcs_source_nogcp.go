//go:build !gcp

package ledger

import (
	"context"
	"fmt"
)

func NewGCSSource(_ context.Context, _, _ string) (Source, error) {
	return nil, fmt.Errorf("GCS data source is not enabled in this build (use -tags gcp)")
}
