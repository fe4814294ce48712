// Package session orchestrates one writing session: it owns the
// conversation window, drives the propose/commit/discard protocol around
// each generation call, splits responses into narrative and reasoning, and
// records accepted turns in the transcript store.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/penwright/fable/internal/llm"
	"github.com/penwright/fable/internal/reasoning"
	"github.com/penwright/fable/internal/transcript"
	"github.com/penwright/fable/internal/window"
)

// PromptSource supplies the active system prompt text. Satisfied by
// *prompts.Registry.
type PromptSource interface {
	ActiveText() string
}

// Recorder is the subset of the transcript store the session writes to.
// Defined as an interface so tests can run without a database.
type Recorder interface {
	AppendEntry(sessionID, role, content, reasoning string) (transcript.Entry, error)
	RecentEntries(sessionID string, n int) ([]transcript.Entry, error)
}

// Config collects the knobs for a session.
type Config struct {
	Model        string
	Temperature  float64
	MaxResponse  int // response length cap in tokens (num_predict)
	TranscriptID string
}

// Result is one generation outcome. Narrative is the tentative story
// text now pending in the window; Reasoning is the hidden planning the
// model produced alongside it.
type Result struct {
	Narrative string
	Reasoning string
	Response  *llm.Response
}

// Session ties the core window to its collaborators. Not safe for
// concurrent use: one session is driven from one goroutine, and the
// window relies on that.
type Session struct {
	window     *window.History
	splitter   *reasoning.Splitter
	promptSrc  PromptSource
	client     llm.Client
	recorder   Recorder
	cfg        Config
	logger     *slog.Logger
	lastResult *Result
}

// New assembles a session. The window, splitter, prompt source, and
// client are required; recorder may be nil when nothing should be
// persisted (e.g. a throwaway session).
func New(w *window.History, sp *reasoning.Splitter, src PromptSource, client llm.Client, rec Recorder, cfg Config, logger *slog.Logger) (*Session, error) {
	if w == nil {
		return nil, fmt.Errorf("session: window is required")
	}
	if sp == nil {
		return nil, fmt.Errorf("session: splitter is required")
	}
	if src == nil {
		return nil, fmt.Errorf("session: prompt source is required")
	}
	if client == nil {
		return nil, fmt.Errorf("session: llm client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		window:    w,
		splitter:  sp,
		promptSrc: src,
		client:    client,
		recorder:  rec,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Respond generates the next story section from the user's guidance.
//
// Any still-pending proposal is accepted first: asking to continue is an
// implicit acceptance of the current tentative text, and it lands in the
// transcript exactly as an explicit Accept would. The guidance is then
// appended and the window frozen via PrepareForResponse before the model
// call, so a failure mid-generation can only lose the unaccepted response.
// The narrative portion of the reply becomes the new pending proposal; the
// caller decides its fate with Accept, Reject, or Rewrite.
func (s *Session) Respond(ctx context.Context, guidance string) (*Result, error) {
	if err := s.Accept(); err != nil {
		return nil, err
	}
	return s.generate(ctx, guidance)
}

// Rewrite discards the pending proposal and generates a replacement from
// fresh guidance.
func (s *Session) Rewrite(ctx context.Context, guidance string) (*Result, error) {
	s.window.DiscardProposal()
	return s.generate(ctx, guidance)
}

func (s *Session) generate(ctx context.Context, guidance string) (*Result, error) {
	s.window.Append(window.Turn{Role: window.RoleUser, Content: guidance})
	s.window.PrepareForResponse()

	// The guidance is durable the moment the window freezes it, so it is
	// recorded before the generation call: a failed generation must not
	// leave the transcript behind the window's committed baseline.
	if err := s.record(window.RoleUser, guidance, ""); err != nil {
		s.logger.Warn("record guidance failed", "error", err)
	}

	messages := s.buildMessages()
	s.logger.Debug("generating",
		"model", s.cfg.Model,
		"messages", len(messages),
		"window_tokens", s.window.TokenCount(),
	)

	resp, err := s.client.Chat(ctx, s.cfg.Model, messages, &llm.Options{
		Temperature: s.cfg.Temperature,
		NumPredict:  s.cfg.MaxResponse,
	})
	if err != nil {
		// Nothing was appended after the freeze, so this is a no-op
		// revert, but it keeps the contract unconditional.
		s.window.DiscardProposal()
		return nil, fmt.Errorf("generate: %w", err)
	}

	narrative, thinking := s.splitter.Split(resp.Content)
	s.window.Append(window.Turn{Role: window.RoleAssistant, Content: narrative})
	s.lastResult = &Result{Narrative: narrative, Reasoning: thinking, Response: resp}

	s.logger.Info("generated section",
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"narrative_chars", len(narrative),
		"has_reasoning", thinking != "",
	)
	return s.lastResult, nil
}

// buildMessages assembles the request: active system prompt first, then
// the frozen window contents.
func (s *Session) buildMessages() []llm.Message {
	view := s.window.ActiveView()
	messages := make([]llm.Message, 0, len(view)+1)
	messages = append(messages, llm.Message{Role: "system", Content: s.promptSrc.ActiveText()})
	for _, t := range view {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	return messages
}

// Accept commits the pending proposal and records the accepted narrative
// (with its hidden reasoning) in the transcript. A no-op when nothing is
// pending.
func (s *Session) Accept() error {
	if !s.window.HasPendingProposal() {
		return nil
	}
	s.window.CommitProposal()
	if s.lastResult != nil {
		if err := s.record(window.RoleAssistant, s.lastResult.Narrative, s.lastResult.Reasoning); err != nil {
			return fmt.Errorf("record accepted section: %w", err)
		}
		s.lastResult = nil
	}
	return nil
}

// Reject drops the pending proposal, reverting the window to the frozen
// baseline. A no-op when nothing is pending.
func (s *Session) Reject() {
	s.window.DiscardProposal()
	s.lastResult = nil
}

// EditDraft replaces the text of the pending draft with the writer's own
// wording. The edited text is what Accept commits and records; the
// reasoning from the generation that produced the draft is kept.
func (s *Session) EditDraft(text string) error {
	view := s.window.ActiveView()
	if !s.window.HasPendingProposal() || len(view) == 0 || view[len(view)-1].Role != window.RoleAssistant {
		return fmt.Errorf("no draft pending")
	}
	view[len(view)-1].Content = text
	s.window.SetActiveView(view)

	if s.lastResult != nil {
		s.lastResult.Narrative = text
	} else {
		s.lastResult = &Result{Narrative: text}
	}
	return nil
}

// Resume seeds the window with the last n transcript entries, committing
// them as the durable baseline. Mirrors loading an existing story and
// simulating its tail as history.
func (s *Session) Resume(n int) error {
	if s.recorder == nil {
		return nil
	}
	entries, err := s.recorder.RecentEntries(s.cfg.TranscriptID, n)
	if err != nil {
		return fmt.Errorf("resume session: %w", err)
	}
	turns := make([]window.Turn, 0, len(entries))
	for _, e := range entries {
		turns = append(turns, window.Turn{Role: e.Role, Content: e.Content})
	}
	s.window.SetActiveView(turns)
	s.window.CommitProposal()
	s.logger.Info("session resumed", "entries", len(turns), "window_tokens", s.window.TokenCount())
	return nil
}

// Clear resets the window for a fresh conversation. The transcript is
// untouched; clearing forgets context, not the story.
func (s *Session) Clear() {
	s.window.Clear()
	s.lastResult = nil
}

// Pending reports whether a tentative section awaits a verdict.
func (s *Session) Pending() bool {
	return s.window.HasPendingProposal()
}

// TokenCount returns the token count of the window's active view, for
// status display.
func (s *Session) TokenCount() int {
	return s.window.TokenCount()
}

// ActiveView exposes the window's active view for rendering.
func (s *Session) ActiveView() []window.Turn {
	return s.window.ActiveView()
}

func (s *Session) record(role, content, thinking string) error {
	if s.recorder == nil || content == "" {
		return nil
	}
	_, err := s.recorder.AppendEntry(s.cfg.TranscriptID, role, content, thinking)
	return err
}
