package ingest

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
)

// Identify derives the stable identifier of a chunk from the basename of its
// source, its content and its position. Equal inputs always produce the same
// identifier, which is what makes re-indexing an idempotent upsert.
func Identify(content, sourcePath string, index int) string {
	key := fmt.Sprintf("%s%s_%d", filepath.Base(sourcePath), content, index)
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum)
}
