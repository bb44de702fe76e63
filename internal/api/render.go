package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/terra-clan/grade-compass/internal/catalog"
	"github.com/terra-clan/grade-compass/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page templates, each rendered inside layout.html
const (
	pageCompass   = "compass.html"
	pageLogin     = "login.html"
	pageAnalytics = "analytics.html"
	pageError     = "error.html"
)

// compassBody is the fragment replaced by live updates
const compassBody = "compass-body"

// laneHeight is the vertical offset in pixels between marker lanes
const laneHeight = 22

var templateFuncs = template.FuncMap{
	"rich": richHTML,
	"laneOffset": func(lane int) int {
		return lane * laneHeight
	},
	"percent": func(count, max int) int {
		if max <= 0 {
			return 0
		}
		return count * 100 / max
	},
	"join": strings.Join,
	"datetime": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04 UTC")
	},
}

// pageData is passed to layout.html; Body is the page's own data
type pageData struct {
	Title     string
	Principal *models.Principal
	IsAdmin   bool
	Body      interface{}
}

type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	rd := &renderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{pageCompass, pageLogin, pageAnalytics, pageError} {
		t, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		rd.pages[name] = t
	}
	return rd, nil
}

// render writes a full page. Output is buffered so a template error never
// leaves a half-written page.
func (rd *renderer) render(w http.ResponseWriter, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := rd.pages[name].Execute(&buf, data); err != nil {
		slog.Error("failed to render page", "error", err, "page", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// fragment renders one named block of a page
func (rd *renderer) fragment(page, block string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := rd.pages[page].ExecuteTemplate(&buf, block, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", block, err)
	}
	return buf.String(), nil
}

// richHTML renders emphasis spans as <strong>; all text is escaped
func richHTML(rt catalog.RichText) template.HTML {
	var b strings.Builder
	for _, span := range rt {
		text := template.HTMLEscapeString(span.Text)
		if span.Strong {
			b.WriteString("<strong>")
			b.WriteString(text)
			b.WriteString("</strong>")
			continue
		}
		b.WriteString(text)
	}
	return template.HTML(b.String())
}

func (s *Server) page(r *http.Request, title string, body interface{}) pageData {
	p := PrincipalFromContext(r.Context())
	return pageData{
		Title:     title,
		Principal: p,
		IsAdmin:   s.gate.Policy().IsAdmin(p),
		Body:      body,
	}
}

type errorPage struct {
	Status  int
	Heading string
	Message string
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.pages.render(w, status, pageError, s.page(r, http.StatusText(status), errorPage{
		Status:  status,
		Heading: http.StatusText(status),
		Message: message,
	}))
}
