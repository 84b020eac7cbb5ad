// Package render turns slide content into safe HTML. Model output may be
// markdown or HTML; either way it is sanitized before it is stored or
// served.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/rhuss/slidewright/pkg/api"
)

var (
	md = goldmark.New(goldmark.WithExtensions(extension.GFM))

	// Shared; bluemonday policies are safe for concurrent use once built.
	policy = newPolicy()

	tagRe = regexp.MustCompile(`<[a-zA-Z][a-zA-Z0-9]*[\s/>]`)
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	// Slides commonly use layout classes such as "columns" or "highlight".
	p.AllowAttrs("class").Globally()
	return p
}

// Markdown renders GitHub-flavored markdown to HTML. Raw HTML in the
// input is dropped by goldmark's default renderer.
func Markdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// Sanitize strips scripts, event handlers and other unsafe markup.
func Sanitize(html string) string {
	return strings.TrimSpace(policy.Sanitize(html))
}

// NormalizeSlide returns sanitized HTML for slide content. Content
// without any HTML tags is treated as markdown.
func NormalizeSlide(content string) (string, error) {
	if !tagRe.MatchString(content) {
		html, err := Markdown(content)
		if err != nil {
			return "", err
		}
		content = html
	}
	return Sanitize(content), nil
}

//go:embed templates/deck.html
var templateFiles embed.FS

var deckTemplate = template.Must(template.ParseFS(templateFiles, "templates/deck.html"))

type deckSlide struct {
	Number  int
	Title   string
	Content template.HTML
	Notes   string
}

type deckData struct {
	Title  string
	Theme  string
	Slides []deckSlide
}

// Deck writes p as a standalone HTML document with one <section> per
// slide and speaker notes in <aside class="notes">. Slide content is
// sanitized again so stored decks edited by clients stay safe.
func Deck(w io.Writer, p *api.Presentation) error {
	data := deckData{Title: p.Title, Theme: themeClass(p.Theme)}
	for _, s := range p.Slides {
		data.Slides = append(data.Slides, deckSlide{
			Number:  s.SlideNumber,
			Title:   s.Title,
			Content: template.HTML(Sanitize(s.Content)),
			Notes:   s.Notes,
		})
	}
	if err := deckTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render deck: %w", err)
	}
	return nil
}

var nonClass = regexp.MustCompile(`[^a-z0-9-]+`)

// themeClass turns a free-form theme name into a CSS class.
func themeClass(theme string) string {
	c := nonClass.ReplaceAllString(strings.ToLower(strings.TrimSpace(theme)), "-")
	c = strings.Trim(c, "-")
	if c == "" {
		c = "default"
	}
	return "theme-" + c
}
