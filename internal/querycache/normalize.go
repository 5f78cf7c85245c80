package querycache

import "strings"

var contractions = map[string]string{
	"what's":  "what is",
	"who's":   "who is",
	"where's": "where is",
	"when's":  "when is",
	"how's":   "how is",
	"it's":    "it is",
	"that's":  "that is",
	"there's": "there is",
	"won't":   "will not",
	"can't":   "cannot",
	"don't":   "do not",
	"doesn't": "does not",
	"didn't":  "did not",
	"isn't":   "is not",
	"aren't":  "are not",
	"wasn't":  "was not",
	"weren't": "were not",
}

// Normalize canonicalizes a natural language question so that trivially
// different phrasings of the same request share a cache key.
func Normalize(question string) string {
	q := strings.ToLower(strings.TrimSpace(question))
	for short, long := range contractions {
		q = strings.ReplaceAll(q, short, long)
	}
	q = strings.Join(strings.Fields(q), " ")
	q = strings.TrimRight(q, "?.!,;: ")
	q = strings.TrimPrefix(q, "the ")
	return strings.TrimSpace(q)
}
