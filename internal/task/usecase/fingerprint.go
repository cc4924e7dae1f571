package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint derives the deterministic snapshot version for an item state:
// a hash of the item's last-updated timestamp and the sorted set of every
// asset id it references, including nested update assets. Identical inputs
// always produce the same version, which is what makes the unchanged
// short-circuit safe.
func Fingerprint(updatedAt string, assetIDs []string) string {
	sorted := make([]string, len(assetIDs))
	copy(sorted, assetIDs)
	sort.Strings(sorted)

	h := sha256.Sum256([]byte(updatedAt + ":" + strings.Join(sorted, ",")))
	return hex.EncodeToString(h[:])
}
