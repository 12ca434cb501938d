package detect

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Page is the rendered content of one loaded document.
type Page struct {
	URL  string
	Text string
}

// PageSource yields the page currently shown by an embedded surface.
type PageSource interface {
	Page(ctx context.Context) (Page, error)
}

// StaticPage always returns the same content.
type StaticPage Page

func (p StaticPage) Page(context.Context) (Page, error) {
	return Page(p), nil
}

// FilePage reads a saved page from disk on every call, so edits to the file
// show up on the next scan. HTML files are reduced to their visible text.
type FilePage struct {
	Path string
	URL  string
}

func (p FilePage) Page(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return Page{}, fmt.Errorf("failed to read page: %w", err)
	}

	url := p.URL
	if url == "" {
		abs, err := filepath.Abs(p.Path)
		if err != nil {
			abs = p.Path
		}
		url = "file://" + filepath.ToSlash(abs)
	}

	text := string(data)
	if isHTML(p.Path, text) {
		text = VisibleText(text)
	}
	return Page{URL: url, Text: text}, nil
}

func isHTML(path, content string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	head := strings.ToLower(strings.TrimSpace(content))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.Contains(head, "<html")
}

var textPolicy = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)

// VisibleText strips markup, scripts and styles and collapses whitespace.
func VisibleText(doc string) string {
	stripped := html.UnescapeString(textPolicy.Sanitize(doc))
	return strings.Join(strings.Fields(stripped), " ")
}
