// Package web renders the embedded HTML repository listing.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/repofolio/repofolio/internal/repo"
)

//go:embed templates/*.html
var templateFS embed.FS

// IndexData carries everything the listing page needs.
type IndexData struct {
	User  string
	Repos []repo.Repo
	Count int
}

// Renderer holds the parsed templates for the HTML surface.
type Renderer struct {
	index *template.Template
}

// NewRenderer parses the embedded templates. Parsing happens once at
// startup so a broken template fails the process instead of a request.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("index.html").Funcs(templateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{index: tmpl}, nil
}

// RenderIndex writes the repository listing page to w.
func (r *Renderer) RenderIndex(w io.Writer, data IndexData) error {
	if err := r.index.ExecuteTemplate(w, "index.html", data); err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	return nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// str dereferences optional strings; GitHub leaves description,
		// language and homepage as null for many repositories.
		"str": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"ago": func(t time.Time) string {
			return humanize.Time(t)
		},
	}
}
