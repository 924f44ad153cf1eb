package blocks

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// blockTagPattern matches line-breaking tags (<br>, <p>, <div> and their
// closing and spaced variants) that must leave a word boundary behind.
var blockTagPattern = regexp.MustCompile(`(?i)<\s*/?\s*(?:br|p|div)\b[^>]*>`)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// stripPolicy returns the shared policy that removes every element.
func stripPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// maxDecodePasses bounds how many layers of entity-escaped markup are
// decoded and stripped.
const maxDecodePasses = 4

// PlainText converts block HTML into index text: line-breaking tags become
// spaces, all other markup is removed, entities are decoded and whitespace
// collapses to single spaces. Markup hidden behind entities is stripped
// too, so the result never contains tags.
func PlainText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	for range maxDecodePasses {
		stripped := stripMarkup(s)
		if stripped == s {
			break
		}
		s = stripped
	}
	return strings.Join(strings.Fields(s), " ")
}

func stripMarkup(s string) string {
	s = html.UnescapeString(s)
	s = blockTagPattern.ReplaceAllString(s, " ")
	s = stripPolicy().Sanitize(s)
	return html.UnescapeString(s)
}
