package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the templates whenever an HTML file under the template
// directory changes. It blocks until ctx is done. With embedded templates
// there is nothing to watch and Watch returns at once.
func (r *Renderer) Watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.Walk(r.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") && path != r.dir {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}

	r.logger.Info("watching templates", "dir", r.dir)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("template watcher closed")
			}
			if filepath.Ext(event.Name) != ".html" {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Remove) {
				continue
			}
			if err := r.Reload(); err != nil {
				r.logger.Warn("template reload failed", "file", event.Name, "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("template watcher closed")
			}
			r.logger.Warn("template watcher error", "error", err)
		}
	}
}
