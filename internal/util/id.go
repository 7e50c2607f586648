// Package util provides common utility functions for ultraclaude.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random 8-hex-char identifier.
// Collisions are not expected at the scale of executions and artifacts
// this engine tracks; uniqueness is enforced by the database.
func NewID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic("util: read random: " + err.Error())
	}
	return hex.EncodeToString(b)
}
