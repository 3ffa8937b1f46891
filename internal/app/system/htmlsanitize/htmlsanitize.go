// Package htmlsanitize cleans text that came from the PHP backend before it
// is echoed back to an operator.
//
// Server messages are shown verbatim, but some endpoints embed markup in
// them ("<b>Insufficient</b> balance") and record fields such as SMS bodies
// are free text from third parties.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictOnce sync.Once
	strict     *bluemonday.Policy
)

func strictPolicy() *bluemonday.Policy {
	strictOnce.Do(func() {
		strict = bluemonday.StrictPolicy()
	})
	return strict
}

// PlainText strips every tag from s and returns readable text. Entities
// are decoded so "Can&#39;t" comes back as "Can't"; the result must still
// be rendered as text, never as HTML.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	if IsPlainText(s) {
		return strings.TrimSpace(s)
	}
	out := strictPolicy().Sanitize(s)
	return strings.TrimSpace(html.UnescapeString(out))
}

// IsPlainText reports whether s contains nothing that looks like a tag.
func IsPlainText(s string) bool {
	i := strings.IndexByte(s, '<')
	if i < 0 {
		return true
	}
	return !strings.Contains(s[i:], ">")
}
