// Fable is a collaborative narrative-writing assistant. A writer steers a
// local model one section at a time; each generated section is a tentative
// proposal that is accepted into the durable story or rejected and
// regenerated. Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	fable chat [title]        Start or resume a writing session
//	fable sessions            List stories
//	fable export <id>         Export a story as markdown (-html for HTML)
//	fable prompts list        List system prompts
//	fable prompts use <name>  Switch the active system prompt
//	fable version             Print version and build information
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/penwright/fable/internal/buildinfo"
	"github.com/penwright/fable/internal/config"
	"github.com/penwright/fable/internal/llm"
	"github.com/penwright/fable/internal/prompts"
	"github.com/penwright/fable/internal/reasoning"
	"github.com/penwright/fable/internal/session"
	"github.com/penwright/fable/internal/transcript"
	"github.com/penwright/fable/internal/window"
)

// main is intentionally minimal. It constructs the OS-level environment
// and delegates immediately to [run], keeping os.Exit, stdio, and os.Args
// out of the application logic so the command can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the fable command. All OS-level
// dependencies are injected as parameters.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	var configPath string

	// Peel off global flags before the subcommand. Parsed manually to
	// avoid the flag package's global state interfering with tests.
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		switch args[0] {
		case "-config", "--config":
			if len(args) < 2 {
				return fmt.Errorf("-config requires a path")
			}
			configPath = args[1]
			args = args[2:]
		default:
			return fmt.Errorf("unknown flag %q", args[0])
		}
	}

	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("no command given")
	}
	command, args := args[0], args[1:]

	if command == "version" {
		for k, v := range buildinfo.Info() {
			fmt.Fprintf(stdout, "%s: %s\n", k, v)
		}
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, cfg.LogLevel, cfg.LogFormat)

	switch command {
	case "chat":
		return runChat(ctx, stdin, stdout, cfg, logger, args)
	case "sessions":
		return runSessions(stdout, cfg, logger)
	case "export":
		return runExport(stdout, cfg, logger, args)
	case "prompts":
		return runPrompts(stdout, cfg, logger, args)
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

const usage = `usage: fable [-config path] <command>

commands:
  chat [title]        start or resume a writing session
  sessions            list stories
  export <id>         export a story as markdown (-html for HTML)
  prompts list        list system prompts
  prompts use <name>  switch the active system prompt
  version             print version information
`

// loadConfig resolves the configuration, falling back to defaults when no
// file exists anywhere on the search path and none was given explicitly.
func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, err
		}
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// runChat starts an interactive writing session. Plain input becomes
// guidance for the next section; slash commands control the proposal.
func runChat(ctx context.Context, stdin io.Reader, stdout io.Writer, cfg *config.Config, logger *slog.Logger, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := transcript.Open(cfg.TranscriptPath(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	registry, err := prompts.Load(cfg.PromptPath(), logger)
	if err != nil {
		return err
	}

	title := strings.Join(args, " ")
	sess, resume, err := findOrCreateSession(store, title)
	if err != nil {
		return err
	}

	win, err := window.New(cfg.Window.MaxTokens, nil)
	if err != nil {
		return err
	}

	client := llm.NewOllamaClient(cfg.Model.OllamaURL)
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("model backend: %w", err)
	}

	s, err := session.New(win, reasoning.New("", ""), registry, client, store, session.Config{
		Model:        cfg.Model.Name,
		Temperature:  cfg.Generation.Temperature,
		MaxResponse:  cfg.Generation.MaxResponseTokens,
		TranscriptID: sess.ID,
	}, logger)
	if err != nil {
		return err
	}

	if resume {
		if err := s.Resume(cfg.Window.ResumeEntries); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Resumed %q (%s)\n", sess.Title, sess.ID)
	} else {
		fmt.Fprintf(stdout, "Started %q (%s)\n", sess.Title, sess.ID)
	}
	fmt.Fprint(stdout, chatHelp)

	var lastReasoning string
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if s.Pending() {
			fmt.Fprint(stdout, "(draft pending) > ")
		} else {
			fmt.Fprint(stdout, "> ")
		}
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return scanner.Err()
		case line == "/accept":
			if err := s.Accept(); err != nil {
				fmt.Fprintf(stdout, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(stdout, "Draft accepted.")
		case line == "/reject":
			s.Reject()
			fmt.Fprintln(stdout, "Draft discarded.")
		case strings.HasPrefix(line, "/edit"):
			text := strings.TrimSpace(strings.TrimPrefix(line, "/edit"))
			if text == "" {
				fmt.Fprintln(stdout, "usage: /edit <replacement text>")
				continue
			}
			if err := s.EditDraft(text); err != nil {
				fmt.Fprintf(stdout, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(stdout, "Draft updated; /accept to keep it.")
		case strings.HasPrefix(line, "/rewrite"):
			guidance := strings.TrimSpace(strings.TrimPrefix(line, "/rewrite"))
			if guidance == "" {
				fmt.Fprintln(stdout, "usage: /rewrite <guidance>")
				continue
			}
			res, err := s.Rewrite(ctx, guidance)
			if err != nil {
				fmt.Fprintf(stdout, "error: %v\n", err)
				continue
			}
			lastReasoning = res.Reasoning
			fmt.Fprintf(stdout, "\n%s\n\n", res.Narrative)
		case line == "/why":
			if lastReasoning == "" {
				fmt.Fprintln(stdout, "No reasoning captured for the last draft.")
			} else {
				fmt.Fprintf(stdout, "%s\n", lastReasoning)
			}
		case line == "/tokens":
			fmt.Fprintf(stdout, "window: %d / %d tokens\n", s.TokenCount(), win.Budget())
		case line == "/new":
			s.Clear()
			fmt.Fprintln(stdout, "Window cleared; the story on disk is untouched.")
		case line == "/help":
			fmt.Fprint(stdout, chatHelp)
		case strings.HasPrefix(line, "/"):
			fmt.Fprintf(stdout, "unknown command %s\n", line)
		default:
			res, err := s.Respond(ctx, line)
			if err != nil {
				fmt.Fprintf(stdout, "error: %v\n", err)
				continue
			}
			lastReasoning = res.Reasoning
			fmt.Fprintf(stdout, "\n%s\n\n", res.Narrative)
		}
	}
	return scanner.Err()
}

const chatHelp = `Type guidance for the next section, or a command:
  /accept            keep the pending draft
  /reject            drop the pending draft
  /edit <text>       replace the pending draft with your own wording
  /rewrite <text>    drop the draft and regenerate with new guidance
  /why               show the hidden reasoning of the last draft
  /tokens            show window usage
  /new               clear the conversation window
  /quit              leave (accepted text is already saved)
`

// findOrCreateSession resumes the session whose title matches, or creates
// a new one. Without a title, the most recently updated session is
// resumed when one exists.
func findOrCreateSession(store *transcript.Store, title string) (transcript.Session, bool, error) {
	sessions, err := store.Sessions()
	if err != nil {
		return transcript.Session{}, false, err
	}

	if title == "" {
		if len(sessions) > 0 {
			return sessions[0], true, nil
		}
		sess, err := store.CreateSession("")
		return sess, false, err
	}

	for _, sess := range sessions {
		if strings.EqualFold(sess.Title, title) {
			return sess, true, nil
		}
	}
	sess, err := store.CreateSession(title)
	return sess, false, err
}

func runSessions(stdout io.Writer, cfg *config.Config, logger *slog.Logger) error {
	store, err := transcript.Open(cfg.TranscriptPath(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.Sessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(stdout, "No stories yet. Start one with: fable chat <title>")
		return nil
	}
	for _, sess := range sessions {
		fmt.Fprintf(stdout, "%s  %s  (updated %s)\n",
			sess.ID, sess.Title, sess.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runExport(stdout io.Writer, cfg *config.Config, logger *slog.Logger, args []string) error {
	asHTML := false
	var id string
	for _, a := range args {
		if a == "-html" || a == "--html" {
			asHTML = true
			continue
		}
		id = a
	}
	if id == "" {
		return fmt.Errorf("usage: fable export <session-id> [-html]")
	}

	store, err := transcript.Open(cfg.TranscriptPath(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.GetSession(id)
	if err != nil {
		return err
	}
	entries, err := store.Entries(id)
	if err != nil {
		return err
	}

	if asHTML {
		return transcript.ExportHTML(stdout, sess, entries)
	}
	return transcript.ExportMarkdown(stdout, sess, entries)
}

func runPrompts(stdout io.Writer, cfg *config.Config, logger *slog.Logger, args []string) error {
	registry, err := prompts.Load(cfg.PromptPath(), logger)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		active := registry.ActiveName()
		for _, name := range registry.Names() {
			marker := " "
			if name == active {
				marker = "*"
			}
			fmt.Fprintf(stdout, "%s %s\n", marker, name)
		}
		return nil
	case "use":
		if len(args) < 2 {
			return fmt.Errorf("usage: fable prompts use <name>")
		}
		name := strings.Join(args[1:], " ")
		if err := registry.SetActive(name); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Active prompt: %s\n", name)
		return nil
	case "show":
		name := registry.ActiveName()
		if len(args) > 1 {
			name = strings.Join(args[1:], " ")
		}
		p, ok := registry.Get(name)
		if !ok {
			return fmt.Errorf("prompt %q not found", name)
		}
		fmt.Fprintln(stdout, p.Content)
		return nil
	default:
		return fmt.Errorf("unknown prompts subcommand %q", args[0])
	}
}
