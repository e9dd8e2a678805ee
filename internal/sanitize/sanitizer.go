// Package sanitize strips markup and control characters from inbound request
// fields before they reach business handlers.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var strict = bluemonday.StrictPolicy()

// DefaultAllowedTags is the safe-formatting set kept by SanitizeHTML when the
// caller does not supply its own allow-list.
func DefaultAllowedTags() []string {
	return []string{"a", "b", "i", "em", "strong", "u", "p", "br", "ul", "ol", "li", "blockquote", "code", "pre"}
}

// SanitizeString cleans a general text field: NUL bytes removed, surrounding
// whitespace trimmed, every HTML tag stripped with inner text kept. Script,
// iframe, object and embed elements are dropped together with their contents,
// so "<script>alert(1)</script>hello" comes out as "hello". Plain text passes
// through byte-for-byte: the strict policy entity-escapes text nodes, so each
// stripping pass is followed by an unescape, repeated until stable, since the
// unescape can uncover encoded markup that needs another pass. The operation
// is idempotent.
func SanitizeString(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\x00", "")
	s = norm.NFC.String(s)
	for i := 0; i < 8; i++ {
		unescaped := html.UnescapeString(strict.Sanitize(s))
		if unescaped == s {
			// Fixpoint: stripping changed nothing beyond escaping, so
			// s carries no markup at all.
			return strings.TrimSpace(s)
		}
		s = unescaped
	}
	// No fixpoint within the bound means pathologically nested encoding;
	// escaped output is inert, so fail to the safe side.
	return strings.TrimSpace(strict.Sanitize(s))
}

// SanitizeHTML cleans a rich-text field, keeping the allowed tags and only
// the href/target/rel attributes on them. Event-handler attributes and
// javascript: URLs are removed by the policy itself, not by pattern matching.
func SanitizeHTML(html string, allowedTags []string) string {
	if len(allowedTags) == 0 {
		allowedTags = DefaultAllowedTags()
	}
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedTags...)
	p.AllowAttrs("href", "target", "rel").OnElements(allowedTags...)
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)

	html = strings.ReplaceAll(html, "\x00", "")
	html = norm.NFC.String(html)
	return strings.TrimSpace(p.Sanitize(html))
}
