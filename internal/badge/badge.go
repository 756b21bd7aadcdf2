// Package badge renders member identification cards and rasterises them to
// PNG through the headless renderer.
package badge

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"image"
	"image/png"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ecclesia/ecclesia/internal/shared"
	"github.com/ecclesia/ecclesia/report"
)

// Badge geometry in CSS pixels, captured at 1:1 scale.
const (
	Width  = 340
	Height = 540
)

// ErrBlankCanvas is returned when the capture holds no visible content.
var ErrBlankCanvas = errors.New("badge: blank canvas")

//go:embed badge.html.tmpl
var badgeTemplate string

// Card is the data printed on a badge.
type Card struct {
	MemberID   string
	FirstName  string
	LastName   string
	Role       string
	Phone      string
	ChurchName string
	PhotoURL   string
	IssuedAt   time.Time
}

// FullName joins the non-empty name parts.
func (c Card) FullName() string {
	return strings.TrimSpace(strings.Join(strings.Fields(c.FirstName+" "+c.LastName), " "))
}

// Filename is the download name: badge-<first>-<last>.png.
func (c Card) Filename() string {
	parts := []string{"badge"}
	for _, p := range []string{c.FirstName, c.LastName} {
		if slug := slugify(p); slug != "" {
			parts = append(parts, slug)
		}
	}
	return strings.Join(parts, "-") + ".png"
}

type cardView struct {
	FullName   string
	Role       string
	Phone      string
	ChurchName string
	PhotoURL   string
	MemberID   string
	IssuedAt   string
	Width      int
	Height     int
	Primary    template.CSS
	Secondary  template.CSS
}

// Renderer produces the badge markup.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded layout.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("badge").Parse(badgeTemplate)
	if err != nil {
		return nil, fmt.Errorf("badge: parse template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// HTML renders card as a standalone document.
func (r *Renderer) HTML(card Card) (string, error) {
	title := cases.Title(language.French)
	view := cardView{
		FullName:   title.String(card.FullName()),
		Role:       card.Role,
		Phone:      card.Phone,
		ChurchName: card.ChurchName,
		PhotoURL:   card.PhotoURL,
		MemberID:   card.MemberID,
		Width:      Width,
		Height:     Height,
		Primary:    template.CSS("#1f4e9c"),
		Secondary:  template.CSS("#5b8def"),
	}
	if !card.IssuedAt.IsZero() {
		view.IssuedAt = card.IssuedAt.Format("02/01/2006")
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("badge: render: %w", err)
	}
	return buf.String(), nil
}

// Capturer rasterises and prints HTML.
type Capturer interface {
	ScreenshotHTML(ctx context.Context, html string, shot report.Screenshot) ([]byte, error)
	RenderHTML(ctx context.Context, html string, paper report.PaperSize) ([]byte, error)
}

// cssDPI converts CSS pixels to inches.
const cssDPI = 96.0

// Rasterizer turns cards into PNG bitmaps.
type Rasterizer struct {
	renderer *Renderer
	capturer Capturer
}

// NewRasterizer wires a renderer to a capture backend.
func NewRasterizer(renderer *Renderer, capturer Capturer) *Rasterizer {
	return &Rasterizer{renderer: renderer, capturer: capturer}
}

// Rasterize renders card and captures it as PNG. A capture that decodes to
// an empty or single-colour bitmap fails with ErrBlankCanvas.
func (r *Rasterizer) Rasterize(ctx context.Context, card Card) ([]byte, error) {
	html, err := r.renderer.HTML(card)
	if err != nil {
		return nil, err
	}
	data, err := r.capturer.ScreenshotHTML(ctx, html, report.Screenshot{Width: Width, Height: Height, Format: "png"})
	if err != nil {
		return nil, fmt.Errorf("badge: capture: %w", err)
	}
	if err := checkCanvas(data); err != nil {
		return nil, err
	}
	return data, nil
}

// PDF renders card as a single printable page of the badge's size.
func (r *Rasterizer) PDF(ctx context.Context, card Card) ([]byte, error) {
	html, err := r.renderer.HTML(card)
	if err != nil {
		return nil, err
	}
	data, err := r.capturer.RenderHTML(ctx, html, report.PaperSize{Width: Width / cssDPI, Height: Height / cssDPI})
	if err != nil {
		return nil, fmt.Errorf("badge: print: %w", err)
	}
	return data, nil
}

func checkCanvas(data []byte) error {
	if len(data) == 0 {
		return ErrBlankCanvas
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlankCanvas, err)
	}
	if uniform(img) {
		return ErrBlankCanvas
	}
	return nil
}

func uniform(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	r0, g0, b0, a0 := img.At(b.Min.X, b.Min.Y).RGBA()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if r != r0 || g != g0 || bl != b0 || a != a0 {
				return false
			}
		}
	}
	return true
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(shared.Fold(strings.TrimSpace(s))) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
