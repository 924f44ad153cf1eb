package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnippet(t *testing.T) {
	long := strings.Repeat("lorem ", 50) + "Zebra crossing " + strings.Repeat("ipsum ", 50)

	tests := []struct {
		name     string
		content  string
		terms    []string
		length   int
		contains string
		prefix   string
		suffix   string
	}{
		{
			name:     "short content returned whole",
			content:  "Hello World",
			terms:    []string{"world"},
			length:   200,
			contains: "Hello World",
		},
		{
			name:     "case-insensitive match is centred",
			content:  long,
			terms:    []string{"zebra"},
			length:   60,
			contains: "Zebra crossing",
			prefix:   ellipsis,
			suffix:   ellipsis,
		},
		{
			name:     "no match starts at beginning",
			content:  long,
			terms:    []string{"absent"},
			length:   30,
			contains: "lorem",
			suffix:   ellipsis,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Snippet(tt.content, tt.terms, tt.length)

			assert.Contains(t, got, tt.contains)
			if tt.prefix != "" {
				assert.True(t, strings.HasPrefix(got, tt.prefix), got)
			} else {
				assert.False(t, strings.HasPrefix(got, ellipsis), got)
			}
			if tt.suffix != "" {
				assert.True(t, strings.HasSuffix(got, tt.suffix), got)
			}
		})
	}
}

func TestSnippet_Disabled(t *testing.T) {
	assert.Equal(t, "", Snippet("text", nil, 0))
	assert.Equal(t, "", Snippet("", []string{"a"}, 10))
}

func TestSnippet_EarliestTermWins(t *testing.T) {
	content := strings.Repeat("x ", 100) + "alpha " + strings.Repeat("y ", 100) + "beta"

	got := Snippet(content, []string{"beta", "alpha"}, 20)

	assert.Contains(t, got, "alpha")
}

func TestSnippet_MultibyteRunes(t *testing.T) {
	content := strings.Repeat("é ", 100) + "naïve café"

	got := Snippet(content, []string{"café"}, 20)

	assert.Contains(t, got, "café")
}
