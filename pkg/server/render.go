package server

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/jigna-sync/jigna-go/pkg/registry"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed static/*
var staticFiles embed.FS

var templates = template.Must(
	template.New("").ParseFS(templateFS, "templates/*.tmpl"),
)

// Renderer produces the bootstrap page served at "/". Markup for widgets
// is the renderer's business; the server only supplies the registered
// models and the endpoint paths.
type Renderer interface {
	Render(w io.Writer, page *Page) error
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(w io.Writer, page *Page) error

// Render calls f(w, page).
func (f RendererFunc) Render(w io.Writer, page *Page) error { return f(w, page) }

// Page is the data available to a Renderer.
type Page struct {
	Title      string
	WSPath     string
	ScriptPath string
	Models     []PageModel
}

// PageModel is one registered model and its visible attributes.
type PageModel struct {
	ID         string
	Kind       string
	Attributes []string
}

func newPage(title, wsPath string, entries []registry.Entry) *Page {
	page := &Page{
		Title:      title,
		WSPath:     wsPath,
		ScriptPath: StaticPrefix + "jigna.js",
		Models:     make([]PageModel, 0, len(entries)),
	}
	for _, e := range entries {
		page.Models = append(page.Models, PageModel{
			ID:         e.Model.ID(),
			Kind:       e.Model.Kind(),
			Attributes: e.View.VisibleAttributes,
		})
	}
	return page
}

// DefaultRenderer emits a minimal page that loads the client script and
// one placeholder element per visible attribute.
var DefaultRenderer Renderer = RendererFunc(func(w io.Writer, page *Page) error {
	if err := templates.ExecuteTemplate(w, "index.html.tmpl", page); err != nil {
		return fmt.Errorf("executing template index.html.tmpl: %w", err)
	}
	return nil
})
