// Package tokens provides pluggable token counting for budget-managed
// conversation windows. Counters are plain functions so callers can swap
// in a real tokenizer without this package knowing about it.
package tokens

import "unicode/utf8"

// Counter maps text to a non-negative token count. Implementations must
// accept any string, including empty. Determinism is recommended (it makes
// eviction reproducible) but not required.
type Counter func(text string) int

// estimateCharsPerToken is the rough English-prose ratio used when no real
// tokenizer is available. Matches the heuristic used for context budgeting
// elsewhere in the ecosystem.
const estimateCharsPerToken = 4

// Estimate is the default Counter: roughly one token per four characters,
// counted over runes so multi-byte text isn't over-charged, rounded up.
// An empty string counts as zero tokens.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	n := utf8.RuneCountInString(text)
	return (n + estimateCharsPerToken - 1) / estimateCharsPerToken
}

// Sum totals count(text) over texts using the given counter.
func Sum(count Counter, texts []string) int {
	total := 0
	for _, t := range texts {
		total += count(t)
	}
	return total
}
