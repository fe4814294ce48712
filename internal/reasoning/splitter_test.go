package reasoning

import "testing"

func TestSplit(t *testing.T) {
	s := New("", "")

	tests := []struct {
		name          string
		raw           string
		wantNarrative string
		wantReasoning string
	}{
		{
			name:          "no markers",
			raw:           "  The rain had stopped by morning.  ",
			wantNarrative: "The rain had stopped by morning.",
			wantReasoning: "",
		},
		{
			name:          "empty input",
			raw:           "",
			wantNarrative: "",
			wantReasoning: "",
		},
		{
			name:          "single block with surrounding narrative",
			raw:           "Hello <think>plan A</think> world <think>plan B</think>!",
			wantNarrative: "Hello\nworld\n!",
			wantReasoning: "plan A\nplan B",
		},
		{
			name:          "only a reasoning block",
			raw:           "<think>only</think>",
			wantNarrative: "",
			wantReasoning: "only",
		},
		{
			name:          "empty block contributes nothing",
			raw:           "before <think></think> after",
			wantNarrative: "before\nafter",
			wantReasoning: "",
		},
		{
			name:          "whitespace-only block contributes nothing",
			raw:           "before <think>   \n </think> after",
			wantNarrative: "before\nafter",
			wantReasoning: "",
		},
		{
			name:          "unterminated start marker is narrative",
			raw:           "The door creaked. <think>what next",
			wantNarrative: "The door creaked. <think>what next",
			wantReasoning: "",
		},
		{
			name:          "case-insensitive markers",
			raw:           "<THINK>loud planning</Think>The end.",
			wantNarrative: "The end.",
			wantReasoning: "loud planning",
		},
		{
			name:          "block spanning newlines",
			raw:           "Opening line.\n<think>line one\nline two</think>\nClosing line.",
			wantNarrative: "Opening line.\nClosing line.",
			wantReasoning: "line one\nline two",
		},
		{
			name:          "stray end marker is narrative",
			raw:           "no opening</think> here",
			wantNarrative: "no opening</think> here",
			wantReasoning: "",
		},
		{
			name:          "unterminated marker after a complete block",
			raw:           "<think>first</think>tail <think>never closed",
			wantNarrative: "tail <think>never closed",
			wantReasoning: "first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			narrative, reasoning := s.Split(tt.raw)
			if narrative != tt.wantNarrative {
				t.Errorf("narrative = %q, want %q", narrative, tt.wantNarrative)
			}
			if reasoning != tt.wantReasoning {
				t.Errorf("reasoning = %q, want %q", reasoning, tt.wantReasoning)
			}
		})
	}
}

func TestSplit_CustomMarkers(t *testing.T) {
	s := New("[[plan]]", "[[/plan]]")

	narrative, reasoning := s.Split("Dawn broke. [[plan]]describe the harbor[[/plan]] Gulls wheeled overhead.")
	if narrative != "Dawn broke.\nGulls wheeled overhead." {
		t.Errorf("narrative = %q", narrative)
	}
	if reasoning != "describe the harbor" {
		t.Errorf("reasoning = %q", reasoning)
	}

	// Default markers must mean nothing to a custom splitter.
	narrative, reasoning = s.Split("<think>not a block</think>")
	if reasoning != "" {
		t.Errorf("default markers should not match, got reasoning %q", reasoning)
	}
	if narrative != "<think>not a block</think>" {
		t.Errorf("narrative = %q", narrative)
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	s := New("", "")

	narrative := "The lighthouse keeper counted the waves."
	reasoning := "keep the melancholic tone"

	gotNarrative, gotReasoning := s.Split(narrative + "\n" + s.Wrap(reasoning))
	if gotNarrative != narrative {
		t.Errorf("narrative = %q, want %q", gotNarrative, narrative)
	}
	if gotReasoning != reasoning {
		t.Errorf("reasoning = %q, want %q", gotReasoning, reasoning)
	}
}
