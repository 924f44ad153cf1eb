package search

import (
	"strings"
	"unicode"
)

const ellipsis = "..."

// Snippet returns up to length runes of content around the earliest
// case-insensitive occurrence of any term. Without a match the snippet
// starts at the beginning of content. Cuts fall on word boundaries where
// possible.
func Snippet(content string, terms []string, length int) string {
	if length <= 0 || content == "" {
		return ""
	}
	text := []rune(content)
	if len(text) <= length {
		return content
	}

	lower := make([]rune, len(text))
	for i, r := range text {
		lower[i] = unicode.ToLower(r)
	}

	pos := -1
	for _, term := range terms {
		needle := []rune(strings.ToLower(term))
		if len(needle) == 0 {
			continue
		}
		if i := indexRunes(lower, needle); i >= 0 && (pos < 0 || i < pos) {
			pos = i
		}
	}

	start := 0
	if pos > 0 {
		// Keep a quarter of the window as leading context.
		start = pos - length/4
		if start < 0 {
			start = 0
		}
	}
	end := start + length
	if end > len(text) {
		end = len(text)
		start = end - length
	}

	if start > 0 {
		start = nextWordStart(text, start, pos)
	}
	if end < len(text) {
		end = prevWordEnd(text, end, start)
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(strings.TrimSpace(string(text[start:end])))
	if end < len(text) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

func indexRunes(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// nextWordStart moves i forward past a partial word, never beyond limit.
func nextWordStart(text []rune, i, limit int) int {
	if unicode.IsSpace(text[i-1]) {
		return i
	}
	for j := i; j < len(text) && (limit < 0 || j <= limit); j++ {
		if unicode.IsSpace(text[j]) {
			return j + 1
		}
	}
	return i
}

// prevWordEnd moves i back before a partial word, never before floor.
func prevWordEnd(text []rune, i, floor int) int {
	if unicode.IsSpace(text[i]) {
		return i
	}
	for j := i - 1; j > floor; j-- {
		if unicode.IsSpace(text[j]) {
			return j
		}
	}
	return i
}
