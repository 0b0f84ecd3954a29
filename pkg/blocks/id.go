package blocks

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

// NewBlockID returns a persistent block id.
func NewBlockID() string {
	return uuid.NewString()
}

// NewSessionID returns an opaque edit session id prefixed with the page
// slug, e.g. "home_3fQy0b9Zk1m-Aa2x".
func NewSessionID(page string) string {
	buf := make([]byte, 12)
	rand.Read(buf) // never fails since Go 1.24
	return slugPrefix(page) + "_" + base64.RawURLEncoding.EncodeToString(buf)
}

// slugPrefix keeps the letters, digits and dashes of page.
func slugPrefix(page string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' {
			return r
		}
		return -1
	}, page)
	if prefix == "" {
		return "page"
	}
	return prefix
}
