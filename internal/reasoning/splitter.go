// Package reasoning separates a model response into user-facing narrative
// and embedded reasoning. Models are prompted to wrap planning in marker
// tags; only the text outside the markers belongs in the durable story.
package reasoning

import (
	"regexp"
	"strings"
)

// Default marker literals. These match the tags the built-in system prompt
// asks the model to use.
const (
	DefaultStartMarker = "<think>"
	DefaultEndMarker   = "</think>"
)

// Splitter extracts reasoning blocks delimited by a fixed marker pair.
// Matching is case-insensitive and blocks may span newlines. A Splitter is
// immutable after construction and safe for concurrent use.
type Splitter struct {
	start string
	end   string
	block *regexp.Regexp
}

// New creates a Splitter for the given marker pair. Empty markers fall
// back to the defaults.
func New(start, end string) *Splitter {
	if start == "" {
		start = DefaultStartMarker
	}
	if end == "" {
		end = DefaultEndMarker
	}
	// Lazy quantifier keeps blocks non-overlapping; an unterminated start
	// marker simply never matches and falls through as narrative.
	pattern := `(?si)` + regexp.QuoteMeta(start) + `(.*?)` + regexp.QuoteMeta(end)
	return &Splitter{
		start: start,
		end:   end,
		block: regexp.MustCompile(pattern),
	}
}

// Split scans raw for reasoning blocks in document order. Text outside the
// blocks accumulates as narrative, text inside as reasoning. Each fragment
// is trimmed of surrounding whitespace, empty fragments are dropped, and
// the survivors are joined with single newlines.
func (s *Splitter) Split(raw string) (narrative, reasoning string) {
	matches := s.block.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(raw), ""
	}

	var narrativeParts, reasoningParts []string
	last := 0
	for _, m := range matches {
		// m[0]:m[1] spans the whole block, m[2]:m[3] the inner text.
		narrativeParts = append(narrativeParts, strings.TrimSpace(raw[last:m[0]]))
		reasoningParts = append(reasoningParts, strings.TrimSpace(raw[m[2]:m[3]]))
		last = m[1]
	}
	narrativeParts = append(narrativeParts, strings.TrimSpace(raw[last:]))

	return joinNonEmpty(narrativeParts), joinNonEmpty(reasoningParts)
}

// Wrap surrounds text with the splitter's marker pair. Used when
// re-rendering a stored response with its reasoning inline.
func (s *Splitter) Wrap(text string) string {
	return s.start + text + s.end
}

func joinNonEmpty(parts []string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
