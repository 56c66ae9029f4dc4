// Package sanitizer filters untrusted feed HTML down to an allow-listed
// set of tags, attributes, and URL schemes. The sanitizer never fails —
// it only filters — and sanitizing already-sanitized content is a no-op.
package sanitizer

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer wraps a bluemonday policy built from the allow-list of
// spec §4.2. Deliberately does not allow span, div, or hr — see the
// sanitizer allow-list note in DESIGN.md / SPEC_FULL.md §9.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// New builds the allow-listed sanitizer.
func New() *Sanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"abbr", "acronym", "b", "blockquote", "code", "em", "i",
		"li", "ol", "ul", "strong", "p", "br", "pre",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"figure", "figcaption",
		"table", "thead", "tbody", "tr", "th", "td",
	)

	p.AllowAttrs("href", "title", "rel").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(false)
	p.RequireNoFollowOnLinks(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool { return true })
	p.AllowURLSchemeWithCustomPolicy("http", func(u *url.URL) bool { return true })

	return &Sanitizer{policy: p}
}

// Sanitize filters rawHTML through the allow-list. Total: never errors.
func (s *Sanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
