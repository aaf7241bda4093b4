package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PathDelimiter separates ancestor ids inside a materialized path.
const PathDelimiter = "/"

// EncodePath joins an ancestor chain (root first) into a materialized
// path string. An empty chain encodes as "".
func EncodePath(ancestors []uuid.UUID) string {
	if len(ancestors) == 0 {
		return ""
	}
	parts := make([]string, len(ancestors))
	for i, id := range ancestors {
		parts[i] = id.String()
	}
	return strings.Join(parts, PathDelimiter)
}

// DecodePath parses a materialized path back into the ancestor chain,
// root first.
func DecodePath(path string) ([]uuid.UUID, error) {
	if path == "" {
		return nil, nil
	}
	parts := strings.Split(path, PathDelimiter)
	ids := make([]uuid.UUID, len(parts))
	for i, part := range parts {
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("invalid path segment %q: %w", part, err)
		}
		ids[i] = id
	}
	return ids, nil
}

// PathContains reports whether id appears as a segment of path.
func PathContains(path string, id uuid.UUID) bool {
	if path == "" {
		return false
	}
	target := id.String()
	for _, part := range strings.Split(path, PathDelimiter) {
		if part == target {
			return true
		}
	}
	return false
}
