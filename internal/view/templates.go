package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/shared"
	"github.com/ecclesia/ecclesia/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// NavItem is one entry of the sidebar.
type NavItem struct {
	Label string
	Path  string
}

// Navigation lists the dashboard sections in sidebar order.
var Navigation = []NavItem{
	{Label: "Tableau de bord", Path: "/"},
	{Label: "Membres", Path: "/members"},
	{Label: "Comités", Path: "/committees"},
	{Label: "Ministères", Path: "/ministries"},
	{Label: "Pasteurs", Path: "/pastors"},
	{Label: "Sanctions", Path: "/sanctions"},
	{Label: "Finances", Path: "/finance"},
	{Label: "Transferts", Path: "/transfers"},
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Principal   *shared.Principal
	Nav         []NavItem
	Data        any
}

// NewTemplateData fills the layout fields for r: CSRF token, pending flash,
// principal and navigation.
func NewTemplateData(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	sess := shared.SessionFromContext(r.Context())
	td := TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Principal:   shared.PrincipalFromContext(r.Context()),
		Nav:         Navigation,
		Data:        data,
	}
	if sess != nil {
		if csrf != nil {
			td.CSRFToken, _ = csrf.EnsureToken(sess)
		}
		td.Flash = sess.PopFlash()
	}
	return td
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	titleCaser := cases.Title(language.French)
	funcMap := template.FuncMap{
		"formatDate": formatDate,
		"title": func(s string) string {
			return titleCaser.String(strings.ToLower(s))
		},
		"active": func(current, path string) bool {
			if path == "/" {
				return current == "/"
			}
			return current == path || strings.HasPrefix(current, path+"/")
		},
		"add": func(a, b int) int { return a + b },
		"initials": func(s string) string {
			var out []rune
			for _, part := range strings.Fields(s) {
				out = append(out, []rune(part)[0])
				if len(out) == 2 {
					break
				}
			}
			return strings.ToUpper(string(out))
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus executes a named template into a buffer and writes it with
// status, so a failing template never produces a half-written page.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("02/01/2006")
	case string:
		parsed, ok := listing.ParseDate(t)
		if !ok {
			return t
		}
		return parsed.Format("02/01/2006")
	default:
		return ""
	}
}
