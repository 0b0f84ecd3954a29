// Package render provides HTML rendering for composed block pages.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/catalog"
)

//go:embed templates
var embedded embed.FS

// Component renders the content of one block type to HTML.
type Component interface {
	// Name returns the block type the component renders.
	Name() blocks.Type

	// Render writes the block HTML to the writer.
	Render(w io.Writer, b *blocks.Block, data *PageData) error
}

// Mode selects between the public page and the admin preview.
type Mode string

const (
	ModePublic Mode = "public"
	ModeEdit   Mode = "edit"
)

// PageData contains data available to all templates.
type PageData struct {
	Title       string
	Slug        string
	Mode        Mode
	CurrentPath string
	IsHTMX      bool
	Error       error

	// Listings are loaded by the composer before any block renders.
	Products  []catalog.Item
	Solutions []catalog.Item
}

// Editing returns true when rendering the admin preview.
func (d *PageData) Editing() bool {
	return d != nil && d.Mode == ModeEdit
}

// Renderer owns the parsed templates and the rich text pipeline.
type Renderer struct {
	mu        sync.RWMutex
	templates *template.Template

	fsys     fs.FS
	dir      string
	policy   *bluemonday.Policy
	markdown goldmark.Markdown
	logger   *slog.Logger
}

// Config holds renderer configuration.
type Config struct {
	// TemplatesDir replaces the embedded templates with an on-disk
	// directory that can be watched for changes.
	TemplatesDir string
	Logger       *slog.Logger
}

// New creates a new renderer.
func New(cfg Config) (*Renderer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var fsys fs.FS
	if cfg.TemplatesDir != "" {
		fsys = os.DirFS(cfg.TemplatesDir)
	} else {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, fmt.Errorf("load embedded templates: %w", err)
		}
		fsys = sub
	}

	r := &Renderer{
		fsys:     fsys,
		dir:      cfg.TemplatesDir,
		policy:   bluemonday.UGCPolicy(),
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:   cfg.Logger,
	}

	tmpl, err := r.parse()
	if err != nil {
		return nil, err
	}
	r.templates = tmpl
	return r, nil
}

func (r *Renderer) parse() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(r.funcs()).ParseFS(r.fsys,
		"layouts/*.html", "components/*.html", "system/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

// Reload re-parses the templates. On failure the previous set stays live.
func (r *Renderer) Reload() error {
	tmpl, err := r.parse()
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()
	r.logger.Info("templates reloaded", "dir", r.dir)
	return nil
}

// Execute runs the named template.
func (r *Renderer) Execute(w io.Writer, name string, data any) error {
	r.mu.RLock()
	tmpl := r.templates
	r.mu.RUnlock()
	return tmpl.ExecuteTemplate(w, name, data)
}

// Markdown converts author Markdown to sanitized HTML.
func (r *Renderer) Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(src), &buf); err != nil {
		r.logger.Warn("markdown conversion failed", "error", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
}

// pageView is the data of the page layout.
type pageView struct {
	*PageData
	Blocks  []Output
	Content template.HTML
}

// RenderPage hands the rendered blocks to the page layout.
func (r *Renderer) RenderPage(w io.Writer, data *PageData, outputs []Output) error {
	view := pageView{PageData: data, Blocks: outputs}

	// If HTMX request, return only the block list
	if data.IsHTMX {
		return r.Execute(w, "layouts/blocks", view)
	}
	return r.Execute(w, "layouts/base", view)
}

// RenderError renders an error page.
func (r *Renderer) RenderError(w io.Writer, data *PageData) error {
	var content bytes.Buffer
	if err := r.Execute(&content, "system/error", data); err != nil {
		return fmt.Errorf("render error: %w", err)
	}

	if data.IsHTMX {
		_, err := w.Write(content.Bytes())
		return err
	}
	return r.Execute(w, "layouts/base", pageView{PageData: data, Content: template.HTML(content.String())})
}

// funcs provides helper functions for templates.
func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"markdown": r.Markdown,
		"lower":    strings.ToLower,
		"upper":    strings.ToUpper,
		"default": func(def, val string) string {
			if strings.TrimSpace(val) == "" {
				return def
			}
			return val
		},
		"limit": catalog.Limit,
	}
}
