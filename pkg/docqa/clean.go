package docqa

import (
	"regexp"
	"strings"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// minHTMLTags is the tag count below which text is left untouched; a stray
// "<T>" in prose should not trigger stripping.
const minHTMLTags = 3

// CleanHTML strips HTML tags and collapses whitespace when text carries
// at least three tags. Anything else is returned unchanged.
func CleanHTML(text string) string {
	if len(htmlTagRe.FindAllStringIndex(text, minHTMLTags)) < minHTMLTags {
		return text
	}
	clean := htmlTagRe.ReplaceAllString(text, "")
	clean = whitespaceRe.ReplaceAllString(clean, " ")
	return strings.TrimSpace(clean)
}
