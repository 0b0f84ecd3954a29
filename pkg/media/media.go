// Package media stores uploaded files and returns the URL a block refers to
// them by. Uploaded bytes are stored as given and never inspected.
package media

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrEmptyUpload is returned for an upload with no data.
var ErrEmptyUpload = errors.New("empty upload")

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// objectName returns a fresh name keeping a plain extension of name.
func objectName(name string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/")))
	if !plainExt(ext) {
		ext = ""
	}
	return uuid.NewString() + ext
}

func plainExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 9 {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
