package view

import (
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

var (
	minifier *minify.M
	once     sync.Once
)

// getMinifier returns a configured HTML minifier (singleton). End tags are
// kept so included-view placeholders survive.
func getMinifier() *minify.M {
	once.Do(func() {
		minifier = minify.New()
		minifier.Add("text/html", &html.Minifier{
			KeepEndTags:      true,
			KeepDocumentTags: true,
			KeepQuotes:       true,
		})
	})
	return minifier
}

// minifyHTML strips insignificant whitespace from rendered markup
func minifyHTML(content string) string {
	if strings.Contains(content, "<") {
		minified, err := getMinifier().String("text/html", content)
		if err != nil {
			return content
		}
		return minified
	}
	return normalizeWhitespace(content)
}

func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
