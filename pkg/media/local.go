package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Local stores files in a directory served by the HTTP server.
type Local struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

// LocalConfig holds local storage configuration.
type LocalConfig struct {
	Dir string

	// BaseURL is the URL prefix the directory is served under.
	BaseURL string
	Logger  *slog.Logger
}

// NewLocal creates the directory if needed.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.Dir == "" {
		return nil, errors.New("media: empty directory")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "/media"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Local{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  cfg.Logger,
	}, nil
}

// Upload writes r to a new file.
func (l *Local) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrEmptyUpload
		}
		return "", fmt.Errorf("read upload: %w", err)
	}

	obj := objectName(name)
	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, br)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("write media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close media file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, obj)); err != nil {
		return "", fmt.Errorf("store media file: %w", err)
	}

	l.logger.Info("media stored", "name", name, "object", obj, "bytes", n, "content_type", contentType)
	return l.baseURL + "/" + obj, nil
}

// Handler serves the stored files. Mount it under BaseURL with the prefix
// stripped.
func (l *Local) Handler() http.Handler {
	return http.FileServer(http.Dir(l.dir))
}
