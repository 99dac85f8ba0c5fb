package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

var templateFuncs = template.FuncMap{
	"joinTags": func(tags []string) string {
		return strings.Join(tags, ", ")
	},
}

// Templates holds the parsed HTML template set. When dir is non-empty the
// templates are loaded from disk (and can be hot-reloaded by Watch); otherwise
// the embedded copies are used.
type Templates struct {
	dir     string
	current atomic.Pointer[template.Template]
}

// NewTemplates parses the template set from dir, or from the embedded files
// when dir is empty.
func NewTemplates(dir string) (*Templates, error) {
	t := &Templates{dir: dir}
	if err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload re-parses the template set and swaps it in atomically.
func (t *Templates) Reload() error {
	var (
		parsed *template.Template
		err    error
	)
	if t.dir != "" {
		parsed, err = template.New("").Funcs(templateFuncs).ParseGlob(t.dir + "/*.tmpl")
	} else {
		var sub fs.FS
		sub, err = fs.Sub(embeddedTemplates, "templates")
		if err == nil {
			parsed, err = template.New("").Funcs(templateFuncs).ParseFS(sub, "*.tmpl")
		}
	}
	if err != nil {
		return fmt.Errorf("web: parse templates: %w", err)
	}
	t.current.Store(parsed)
	return nil
}

// Render executes the named template into a buffer first so a template error
// never produces a half-written page.
func (t *Templates) Render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := t.current.Load().ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("template render failed",
			slog.String("template", name),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
