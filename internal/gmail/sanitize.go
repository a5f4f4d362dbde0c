package gmail

import (
	"github.com/microcosm-cc/bluemonday"
)

// messagePolicy is the fixed allow-list applied to every HTML body
// before it reaches storage: common formatting, links, images, tables.
var messagePolicy = newMessagePolicy()

func newMessagePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "hr", "div", "span",
		"b", "strong", "i", "em", "u", "s", "small", "sub", "sup",
		"blockquote", "pre", "code",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li",
		"table", "thead", "tbody", "tfoot", "tr", "td", "th",
		"a", "img",
	)
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	p.AllowStandardURLs()
	p.RequireNoFollowOnLinks(true)
	return p
}

// Sanitize filters untrusted HTML down to the allow-list. A sanitizer
// panic degrades to stripping every tag; raw remote markup must never
// reach storage unfiltered.
func Sanitize(input string) (out string) {
	if input == "" {
		return ""
	}
	defer func() {
		if recover() != nil {
			out = stripAllTags(input)
		}
	}()
	return messagePolicy.Sanitize(input)
}

// stripAllTags is the degraded path: keep text content only
func stripAllTags(input string) (out string) {
	defer func() {
		if recover() != nil {
			out = ""
		}
	}()
	return bluemonday.StrictPolicy().Sanitize(input)
}
