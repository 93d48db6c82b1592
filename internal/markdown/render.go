package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Render converts the agent's markdown reply to HTML for the chat widget.
// Hard line breaks are preserved so list-style replies keep their shape.
func Render(input string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(input), &buf); err != nil {
		return "", fmt.Errorf("markdown: convert: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
