package index

import (
	"strings"
	"unicode"
)

// Tokenize splits free text into lowercased terms. Punctuation and
// other non-alphanumeric runes act as separators, matching the way
// documents are indexed.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// termFrequencies counts term occurrences across the given texts.
func termFrequencies(texts ...string) map[string]int {
	tf := make(map[string]int)
	for _, text := range texts {
		for _, term := range Tokenize(text) {
			tf[term]++
		}
	}
	if len(tf) == 0 {
		return nil
	}
	return tf
}

// ExtractHashTags splits hash tags out of free query text. A token
// starting with '#' becomes a mandatory tag filter; the returned text
// has the hash tags removed. "#solar markets" yields ([solar],
// "markets").
func ExtractHashTags(text string) (tags []string, remainder string) {
	if !strings.Contains(text, "#") {
		return nil, text
	}
	var rest []string
	for _, field := range strings.Fields(text) {
		if tag, ok := strings.CutPrefix(field, "#"); ok {
			tag = strings.ToLower(strings.TrimFunc(tag, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
			}))
			if tag != "" {
				tags = append(tags, tag)
			}
			continue
		}
		rest = append(rest, field)
	}
	return tags, strings.Join(rest, " ")
}
