// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"
)

// Key digests parts into "<namespace>:<sha256 hex>". Parts must already be in
// canonical form (e.g. query.FilterSet.Canonical) so equal content yields
// equal keys; struct fields serialize in declaration order. Parts that do not
// serialize are an error rather than a best-effort key.
func Key(namespace string, parts ...any) (string, error) {
	data, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("cache key %s: %w", namespace, err)
	}
	sum := sha256.Sum256(data)
	return namespace + ":" + hex.EncodeToString(sum[:]), nil
}
