//go:build !gcp

package archive

import (
	"context"
	"fmt"
)

func newGCSStoreFromConfig(ctx context.Context, cfg Config) (Store, error) {
	return nil, fmt.Errorf("GCS storage is not enabled in this build (use -tags gcp)")
}
