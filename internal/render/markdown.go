// Package render turns the markdown content of a to-do item into HTML that
// is safe to embed in a page.
package render

import (
	"bytes"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	initOnce sync.Once
	md       goldmark.Markdown
	policy   *bluemonday.Policy
)

func setup() {
	// single newlines become <br>, like a plain text note
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	policy = bluemonday.UGCPolicy()
}

// HTML renders markdown to sanitized HTML.  Raw HTML in the input is never
// passed through.  Blank input yields an empty string.
func HTML(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	initOnce.Do(setup)

	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return policy.Sanitize("<p>" + content + "</p>")
	}
	return strings.TrimSpace(policy.Sanitize(buf.String()))
}
