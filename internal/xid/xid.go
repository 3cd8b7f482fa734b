package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns "<prefix>-<32 hex>". The random part is a v4 UUID without dashes.
func New(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// Short returns n hex characters of fresh randomness, n capped at 32.
func Short(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n <= 0 || n > len(id) {
		return id
	}
	return id[:n]
}
