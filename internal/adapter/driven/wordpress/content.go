package wordpress

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// RenderContent builds the sanitized HTML body of a WordPress post: the
// primary image as a figure, the markdown body, a video shortcode and the
// location attribution line.
func RenderContent(post model.Post) string {
	var src strings.Builder

	media, hasMedia := post.PrimaryMedia()
	if hasMedia && media.Kind == model.MediaKindImage {
		fmt.Fprintf(&src, "<figure><img src=\"%s\" alt=\"%s\"></figure>\n\n",
			html.EscapeString(media.URL), html.EscapeString(post.Title))
	}

	src.WriteString(post.Body)

	if attr := attribution(post.Location); attr != "" {
		src.WriteString("\n\n*")
		src.WriteString(attr)
		src.WriteString("*\n")
	}

	out := renderMarkdown(src.String())

	if hasMedia && media.Kind == model.MediaKindVideo {
		if u, ok := shortcodeURL(media.URL); ok {
			out += fmt.Sprintf("\n<p>[video src=\"%s\"]</p>\n", u)
		}
	}
	return out
}

func renderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

func attribution(loc model.Location) string {
	parts := make([]string, 0, 2)
	for _, s := range []string{loc.Name, loc.Address} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "Posted from " + strings.Join(parts, ", ")
}

// shortcodeURL only lets absolute http(s) URLs into the [video] shortcode,
// which is appended after sanitization.
func shortcodeURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	s := u.String()
	if strings.ContainsAny(s, "\"[]<>") {
		return "", false
	}
	return s, true
}
