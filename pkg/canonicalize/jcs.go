// Package canonicalize provides exact structural comparison of decoded JSON values and
// RFC 8785 (JSON Canonicalization Scheme) serialization for content addressing.
package canonicalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// HashPrefix is prepended to every fingerprint.
const HashPrefix = "sha256:"

// JCS returns the RFC 8785 canonical JSON representation of v.
//
// Map keys are sorted by UTF-16 code units, HTML escaping is disabled and numbers are
// serialized in their shortest ECMAScript form, so 1, 1.0 and 1e0 canonicalize identically.
func JCS(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}
	out, err := jcs.Transform(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}))
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return out, nil
}

// Fingerprint returns the "sha256:<hex>" digest of the canonical representation of v.
func Fingerprint(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 of raw bytes and returns it as "sha256:<hex>".
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return HashPrefix + hex.EncodeToString(hash[:])
}
