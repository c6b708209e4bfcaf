// Package archive is a content-addressed store for canonical schema documents.
//
// Every accepted schema version is archived under its "sha256:<hex>" fingerprint, so a stored
// event type can always be traced back to the exact document it was validated against.
package archive

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/eventgate/pkg/canonicalize"
)

var ErrNotFound = errors.New("schema document not found")

// Store defines the contract for content-addressed storage of schema documents.
type Store interface {
	// Put persists data and returns its content hash. Storing the same bytes twice is a no-op.
	Put(ctx context.Context, data []byte) (string, error)
	// Get retrieves data by its content hash.
	Get(ctx context.Context, hash string) ([]byte, error)
	// Exists checks if a document exists by its content hash.
	Exists(ctx context.Context, hash string) (bool, error)
}

// parseHash validates a "sha256:<hex>" key and returns the hex part.
func parseHash(hash string) (string, error) {
	raw, ok := strings.CutPrefix(hash, canonicalize.HashPrefix)
	if !ok {
		return "", fmt.Errorf("invalid hash format: %s", hash)
	}
	if b, err := hex.DecodeString(raw); err != nil || len(b) != 32 {
		return "", fmt.Errorf("invalid hash hex: %s", hash)
	}
	return raw, nil
}

func objectName(prefix, rawHash string) string {
	return prefix + rawHash + ".json"
}
