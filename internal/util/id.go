// Package util holds small shared helpers.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a collision-resistant opaque identifier. Wall-clock
// derived ids collide under rapid successive additions, so ids are
// random instead.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
