package window

import (
	"reflect"
	"strconv"
	"strings"
	"testing"
)

// costCounter charges each turn its numeric content, so tests can spell
// out token costs directly ("3" costs 3 tokens).
func costCounter(text string) int {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0
	}
	return n
}

func newHistory(t *testing.T, budget int) *History {
	t.Helper()
	h, err := New(budget, costCounter)
	if err != nil {
		t.Fatalf("new history: %v", err)
	}
	return h
}

func turns(costs ...int) []Turn {
	out := make([]Turn, len(costs))
	for i, c := range costs {
		out[i] = Turn{Role: RoleUser, Content: strconv.Itoa(c)}
	}
	return out
}

func TestNew_RejectsNonPositiveBudget(t *testing.T) {
	for _, budget := range []int{0, -1, -100} {
		if _, err := New(budget, costCounter); err == nil {
			t.Errorf("New(%d) should fail", budget)
		}
	}
}

func TestNew_NilCounterDefaults(t *testing.T) {
	h, err := New(100, nil)
	if err != nil {
		t.Fatalf("new history: %v", err)
	}
	h.Append(Turn{Role: RoleUser, Content: "12345678"})
	if got := h.TokenCount(); got != 2 {
		t.Errorf("default estimate count = %d, want 2", got)
	}
}

func TestAppend_CreatesProposalLazily(t *testing.T) {
	h := newHistory(t, 100)
	if h.HasPendingProposal() {
		t.Fatal("fresh history should have no pending proposal")
	}

	h.Append(Turn{Role: RoleUser, Content: "3"})
	if !h.HasPendingProposal() {
		t.Error("append should create a proposal")
	}
	if got := len(h.Committed()); got != 0 {
		t.Errorf("append must not touch committed, got %d turns", got)
	}
	if got := len(h.ActiveView()); got != 1 {
		t.Errorf("active view has %d turns, want 1", got)
	}
}

func TestBudgetHeldAfterEveryMutation(t *testing.T) {
	h := newHistory(t, 10)
	for i := 0; i < 50; i++ {
		h.Append(turns(3)[0])
		if got := h.TokenCount(); got > 10 {
			t.Fatalf("after append %d: token count %d exceeds budget", i, got)
		}
	}
}

func TestEviction_KeepsNewestContiguousSuffix(t *testing.T) {
	// Costs [3,4,6] with budget 9: walking backwards, 6 fits, 6+4=10
	// overflows, so only the newest turn survives. The older 3-cost turn
	// would have fit alongside the 6 but must not be resurrected.
	h := newHistory(t, 9)
	h.AppendAll(turns(3, 4, 6))

	got := h.ActiveView()
	if !reflect.DeepEqual(got, turns(6)) {
		t.Errorf("active view = %v, want only the 6-cost turn", got)
	}
}

func TestEviction_ExactFitKept(t *testing.T) {
	h := newHistory(t, 9)
	h.AppendAll(turns(5, 4))
	if got := h.ActiveView(); !reflect.DeepEqual(got, turns(5, 4)) {
		t.Errorf("active view = %v, want both turns at exact budget", got)
	}
}

func TestEviction_OversizedNewestTurnRetained(t *testing.T) {
	// A single turn larger than the whole budget is never evicted to
	// empty; the window keeps it and drops everything older.
	h := newHistory(t, 4)
	h.Append(turns(5)[0])
	if got := len(h.ActiveView()); got != 1 {
		t.Fatalf("oversized lone turn evicted, view has %d turns", got)
	}

	h.Append(turns(7)[0])
	if got := h.ActiveView(); !reflect.DeepEqual(got, turns(7)) {
		t.Errorf("active view = %v, want only the newest oversized turn", got)
	}
}

func TestSetActiveView_ReplacesWholesale(t *testing.T) {
	h := newHistory(t, 100)
	h.AppendAll(turns(1, 2))
	h.CommitProposal()

	h.SetActiveView(turns(7, 8))
	if !h.HasPendingProposal() {
		t.Error("SetActiveView should leave a pending proposal")
	}
	if got := h.ActiveView(); !reflect.DeepEqual(got, turns(7, 8)) {
		t.Errorf("active view = %v, want replacement sequence", got)
	}
	if got := h.Committed(); !reflect.DeepEqual(got, turns(1, 2)) {
		t.Errorf("committed = %v, want original", got)
	}

	h.DiscardProposal()
	if got := h.ActiveView(); !reflect.DeepEqual(got, turns(1, 2)) {
		t.Errorf("after discard, active view = %v, want committed", got)
	}
}

func TestSetActiveView_Evicts(t *testing.T) {
	h := newHistory(t, 9)
	h.SetActiveView(turns(3, 4, 6))
	if got := h.ActiveView(); !reflect.DeepEqual(got, turns(6)) {
		t.Errorf("active view = %v, want evicted suffix", got)
	}
}

func TestDiscard_RestoresCommitted(t *testing.T) {
	h := newHistory(t, 100)
	h.AppendAll(turns(1, 2))
	h.CommitProposal()
	before := h.ActiveView()

	h.Append(turns(3)[0])
	h.AppendAll(turns(4, 5))
	h.DiscardProposal()

	if got := h.ActiveView(); !reflect.DeepEqual(got, before) {
		t.Errorf("active view = %v, want pre-append state %v", got, before)
	}
	if h.HasPendingProposal() {
		t.Error("discard should clear the pending flag")
	}
}

func TestDiscard_NoProposal_NoOp(t *testing.T) {
	h := newHistory(t, 100)
	h.AppendAll(turns(1, 2))
	h.CommitProposal()

	h.DiscardProposal() // nothing pending
	if got := h.ActiveView(); !reflect.DeepEqual(got, turns(1, 2)) {
		t.Errorf("active view = %v after no-op discard", got)
	}
}

func TestCommitThenDiscard_IsIdempotent(t *testing.T) {
	h := newHistory(t, 100)
	h.AppendAll(turns(1, 2))
	h.CommitProposal()
	h.DiscardProposal()

	if h.HasPendingProposal() {
		t.Error("no proposal should be pending")
	}
	if got := h.ActiveView(); !reflect.DeepEqual(got, turns(1, 2)) {
		t.Errorf("active view = %v, want committed", got)
	}
}

func TestCommit_NoProposal_NoOp(t *testing.T) {
	h := newHistory(t, 100)
	h.CommitProposal() // harmless with nothing staged
	if h.HasPendingProposal() || len(h.ActiveView()) != 0 {
		t.Error("commit with nothing staged should change nothing")
	}
}

func TestCommit_EmptyPendingProposal(t *testing.T) {
	// A proposal that is present but empty is still a proposal:
	// committing it wipes the committed history.
	h := newHistory(t, 100)
	h.AppendAll(turns(1, 2))
	h.CommitProposal()

	h.SetActiveView(nil)
	if !h.HasPendingProposal() {
		t.Fatal("empty replacement should still count as pending")
	}
	h.CommitProposal()
	if got := len(h.ActiveView()); got != 0 {
		t.Errorf("active view has %d turns, want 0", got)
	}
}

func TestPrepareForResponse_FreezesActiveView(t *testing.T) {
	h := newHistory(t, 100)
	h.AppendAll(turns(1, 2))

	h.PrepareForResponse()
	if h.HasPendingProposal() {
		t.Error("prepare should leave no pending proposal")
	}
	if got := h.Committed(); !reflect.DeepEqual(got, turns(1, 2)) {
		t.Errorf("committed = %v, want frozen view", got)
	}
	if got := h.ActiveView(); !reflect.DeepEqual(got, turns(1, 2)) {
		t.Errorf("active view = %v, want committed", got)
	}
}

func TestPrepareForResponse_WithoutProposal(t *testing.T) {
	h := newHistory(t, 100)
	h.AppendAll(turns(1))
	h.CommitProposal()

	h.PrepareForResponse() // active view is already committed
	if h.HasPendingProposal() {
		t.Error("prepare should leave no pending proposal")
	}
	if got := h.ActiveView(); !reflect.DeepEqual(got, turns(1)) {
		t.Errorf("active view = %v", got)
	}
}

func TestPrepareThenAppendThenDiscard(t *testing.T) {
	// The failure-during-generation path: whatever was appended after
	// prepare is lost on discard, but the frozen baseline survives.
	h := newHistory(t, 100)
	h.Append(turns(1)[0])
	h.PrepareForResponse()
	frozen := h.ActiveView()

	h.Append(turns(9)[0])
	h.DiscardProposal()

	if got := h.ActiveView(); !reflect.DeepEqual(got, frozen) {
		t.Errorf("active view = %v, want frozen baseline %v", got, frozen)
	}
}

func TestClear(t *testing.T) {
	h := newHistory(t, 100)
	h.AppendAll(turns(1, 2))
	h.CommitProposal()
	h.Append(turns(3)[0])

	h.Clear()
	if h.HasPendingProposal() {
		t.Error("clear should drop the proposal")
	}
	if got := len(h.ActiveView()); got != 0 {
		t.Errorf("active view has %d turns after clear", got)
	}
	if got := h.TokenCount(); got != 0 {
		t.Errorf("token count = %d after clear", got)
	}
}

func TestTokenCountOf(t *testing.T) {
	h := newHistory(t, 100)
	if got := h.TokenCountOf(turns(2, 3, 4)); got != 9 {
		t.Errorf("TokenCountOf = %d, want 9", got)
	}
	if got := h.TokenCountOf(nil); got != 0 {
		t.Errorf("TokenCountOf(nil) = %d, want 0", got)
	}
}

func TestActiveView_ReturnsCopy(t *testing.T) {
	h := newHistory(t, 100)
	h.AppendAll(turns(1, 2))
	h.CommitProposal()

	view := h.ActiveView()
	view[0].Content = "tampered"
	if got := h.ActiveView()[0].Content; got != "1" {
		t.Errorf("mutating the returned view leaked into the window: %q", got)
	}
}

func TestOversizedBudgetScenario(t *testing.T) {
	// Budget smaller than any single turn: the lone turn is retained.
	h := newHistory(t, 1)
	h.Append(turns(5)[0])
	if got := len(h.ActiveView()); got != 1 {
		t.Errorf("view has %d turns, want 1", got)
	}
	if got := h.TokenCount(); got != 5 {
		t.Errorf("token count = %d, want 5", got)
	}
}
