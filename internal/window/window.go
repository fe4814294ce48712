// Package window implements the token-budgeted, dual-state conversation
// window at the center of fable. A History holds the durable (committed)
// sequence of turns plus an optional proposal overlay, so a caller can
// tentatively extend the conversation, inspect or regenerate the tentative
// part, and either commit it or roll it back without touching the durable
// history.
//
// A History is not safe for concurrent use. Each session owns exactly one
// and drives it from a single goroutine, the same way the rest of the
// session pipeline is serialized.
package window

import (
	"fmt"

	"github.com/penwright/fable/internal/tokens"
)

// Turn roles. The window only ever holds user and assistant turns; the
// system prompt is assembled by the session at request time and never
// enters the budget.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in the conversation. Turns are value objects:
// mutations operate on the sequence, never on an individual turn.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History is the dual-state window. The committed sequence is the durable
// history; proposal is a tentative replacement for it.
//
// The proposal field doubles as the pending flag: nil means no proposal is
// pending, non-nil (including empty) means one is. Every code path that
// creates a proposal materializes it with make, so an empty pending
// proposal is never confused with "no proposal". There is deliberately no
// separate boolean that could drift out of sync.
type History struct {
	budget    int
	count     tokens.Counter
	committed []Turn
	proposal  []Turn
}

// New creates a History with the given token budget and counter. The
// budget must be positive. A nil counter falls back to tokens.Estimate.
func New(budget int, count tokens.Counter) (*History, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("window: token budget must be positive, got %d", budget)
	}
	if count == nil {
		count = tokens.Estimate
	}
	return &History{budget: budget, count: count}, nil
}

// Budget returns the token budget the window enforces.
func (h *History) Budget() int {
	return h.budget
}

// HasPendingProposal reports whether a tentative extension is pending.
func (h *History) HasPendingProposal() bool {
	return h.proposal != nil
}

// ActiveView returns the sequence currently visible to readers: the
// proposal if one is pending, else the committed history. The returned
// slice is a copy; callers may hold or modify it freely.
func (h *History) ActiveView() []Turn {
	return cloneTurns(h.activeRef())
}

// Committed returns a copy of the durable history, ignoring any pending
// proposal.
func (h *History) Committed() []Turn {
	return cloneTurns(h.committed)
}

// activeRef returns the live active sequence without copying. Internal
// callers must not retain or mutate it.
func (h *History) activeRef() []Turn {
	if h.proposal != nil {
		return h.proposal
	}
	return h.committed
}

// branch ensures a proposal exists, creating it as a copy of the committed
// history on first mutation.
func (h *History) branch() {
	if h.proposal != nil {
		return
	}
	h.proposal = make([]Turn, len(h.committed))
	copy(h.proposal, h.committed)
}

// Append adds one turn to the proposal, creating the proposal from the
// committed history first if none is pending, then enforces the token
// budget. The committed history is never touched.
func (h *History) Append(t Turn) {
	h.branch()
	h.proposal = append(h.proposal, t)
	h.proposal = h.evict(h.proposal)
}

// AppendAll adds turns in order, then enforces the token budget once.
func (h *History) AppendAll(ts []Turn) {
	h.branch()
	h.proposal = append(h.proposal, ts...)
	h.proposal = h.evict(h.proposal)
}

// SetActiveView replaces the proposal wholesale with the given sequence,
// creating the proposal first if none is pending, then enforces the token
// budget. Used when a caller supplies a full replacement sequence rather
// than incremental turns (e.g. seeding a window from a stored transcript).
func (h *History) SetActiveView(ts []Turn) {
	h.branch()
	h.proposal = make([]Turn, len(ts))
	copy(h.proposal, ts)
	h.proposal = h.evict(h.proposal)
}

// evict trims the sequence to the token budget, keeping the newest
// contiguous suffix. It scans back to front accumulating token counts and
// stops at the first turn that would overflow: that turn and everything
// older is dropped in one step, even if a still-older turn might have
// individually fit. Contiguity keeps the retained turns in conversational
// order. The newest turn is always retained once present, even when it
// alone exceeds the budget.
func (h *History) evict(ts []Turn) []Turn {
	if len(ts) == 0 {
		return ts
	}
	used := 0
	for i := len(ts) - 1; i >= 0; i-- {
		cost := h.count(ts[i].Content)
		if used+cost > h.budget && i < len(ts)-1 {
			return ts[i+1:]
		}
		used += cost
	}
	return ts
}

// TokenCount returns the total token count of the active view.
func (h *History) TokenCount() int {
	return h.TokenCountOf(h.activeRef())
}

// TokenCountOf returns the total token count of an arbitrary sequence,
// using the window's counter.
func (h *History) TokenCountOf(ts []Turn) int {
	total := 0
	for _, t := range ts {
		total += h.count(t.Content)
	}
	return total
}

// PrepareForResponse freezes the current active view, pending proposal
// included, as the new committed baseline and clears the proposal. Called
// immediately before a generation request so that the exact sequence sent
// to the model is durable before the call: a failure mid-generation can
// only ever lose the not-yet-accepted response, never corrupt or duplicate
// history.
func (h *History) PrepareForResponse() {
	h.committed = cloneTurns(h.activeRef())
	h.proposal = nil
}

// CommitProposal replaces the committed history with the pending proposal.
// A no-op when nothing is pending; callers commit speculatively without
// pre-checking state.
func (h *History) CommitProposal() {
	if h.proposal == nil {
		return
	}
	h.committed = h.proposal
	h.proposal = nil
}

// DiscardProposal drops the pending proposal, reverting the active view to
// the committed history. A no-op when nothing is pending.
func (h *History) DiscardProposal() {
	h.proposal = nil
}

// Clear resets the window to empty with no pending proposal, for starting
// a new conversation.
func (h *History) Clear() {
	h.committed = nil
	h.proposal = nil
}

func cloneTurns(ts []Turn) []Turn {
	out := make([]Turn, len(ts))
	copy(out, ts)
	return out
}
