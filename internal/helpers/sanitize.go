package helpers

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// StrictHTMLPolicy returns a singleton bluemonday policy that strips every HTML
// element and attribute.
func StrictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// PlainText removes every tag from s and decodes the entities bluemonday
// escapes, so the result reads as prose again.
func PlainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(StrictHTMLPolicy().Sanitize(s)))
}
