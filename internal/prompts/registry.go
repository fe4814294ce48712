// Package prompts manages the named system prompts that steer generation.
// Prompts live in a single JSON file so writers can carry their prompt
// library between machines; the built-in default is always present and
// cannot be deleted.
package prompts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultName is the name of the built-in prompt.
const DefaultName = "Narrative Writer"

// defaultPromptText is the built-in system prompt. It asks the model to
// wrap planning in <think> tags, which the reasoning splitter strips from
// the durable story.
const defaultPromptText = `You are a creative writing assistant. Your goal is to collaborate with the user to write a story.
Generate only the requested narrative content based on the user's input and the preceding story text.
Do NOT include any meta-commentary, apologies, questions, or explanations about your process unless specifically asked.
Focus on producing publication-ready prose in the established style and tone.
If you need to think or plan, use <think>...</think> tags. These tags will be hidden from the user.
For example:
<think>The user wants a description of the forest. I should focus on sensory details and maintain the established melancholic tone.</think>
The ancient trees stood like silent sentinels, their gnarled branches reaching for the perpetually overcast sky. A damp chill clung to the air, heavy with the scent of moss and decay.`

// Prompt is one named system prompt with bookkeeping metadata.
type Prompt struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// registryFile is the on-disk shape of the prompt library.
type registryFile struct {
	Active  string            `json:"active_prompt"`
	Prompts map[string]Prompt `json:"prompts"`
}

// Registry is a file-backed library of named system prompts with one
// active selection. Mutating operations persist immediately.
type Registry struct {
	path    string
	data    registryFile
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Load opens the registry at path, creating a default library when the
// file is missing. A file with invalid JSON or missing structure is reset
// to the default library (and the damage logged) rather than failing the
// whole application over a prompt file.
func Load(path string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{path: path, logger: logger, nowFunc: time.Now}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		r.data = r.defaultLibrary()
		if err := r.save(); err != nil {
			return nil, fmt.Errorf("create prompt library: %w", err)
		}
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("read prompt library: %w", err)
	}

	if err := json.Unmarshal(raw, &r.data); err != nil || r.data.Prompts == nil || r.data.Active == "" {
		r.logger.Warn("prompt library invalid, resetting to default",
			"path", path, "error", err)
		r.data = r.defaultLibrary()
		if err := r.save(); err != nil {
			return nil, fmt.Errorf("reset prompt library: %w", err)
		}
	}
	return r, nil
}

func (r *Registry) defaultLibrary() registryFile {
	now := r.nowFunc()
	return registryFile{
		Active: DefaultName,
		Prompts: map[string]Prompt{
			DefaultName: {Content: defaultPromptText, CreatedAt: now, LastUsed: now},
		},
	}
}

func (r *Registry) save() error {
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create prompt directory: %w", err)
		}
	}
	out, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode prompt library: %w", err)
	}
	if err := os.WriteFile(r.path, out, 0o644); err != nil {
		return fmt.Errorf("write prompt library: %w", err)
	}
	return nil
}

// Names returns all prompt names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.data.Prompts))
	for name := range r.data.Prompts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveName returns the name of the active prompt. If the active pointer
// references a prompt that no longer exists, it falls back to the default
// and persists the repair.
func (r *Registry) ActiveName() string {
	if _, ok := r.data.Prompts[r.data.Active]; !ok {
		r.logger.Warn("active prompt missing, falling back to default",
			"active", r.data.Active)
		r.data.Active = DefaultName
		if err := r.save(); err != nil {
			r.logger.Error("persist active prompt repair", "error", err)
		}
	}
	return r.data.Active
}

// ActiveText returns the content of the active prompt. This is the
// capability the session consumes when assembling a request.
func (r *Registry) ActiveText() string {
	name := r.ActiveName()
	p, ok := r.data.Prompts[name]
	if !ok {
		return defaultPromptText
	}
	return p.Content
}

// Get returns the prompt with the given name.
func (r *Registry) Get(name string) (Prompt, bool) {
	p, ok := r.data.Prompts[name]
	return p, ok
}

// SetActive switches the active prompt and stamps its last-used time.
func (r *Registry) SetActive(name string) error {
	p, ok := r.data.Prompts[name]
	if !ok {
		return fmt.Errorf("prompt %q not found", name)
	}
	p.LastUsed = r.nowFunc()
	r.data.Prompts[name] = p
	r.data.Active = name
	return r.save()
}

// Put creates or updates a named prompt.
func (r *Registry) Put(name, content string) error {
	if name == "" {
		return fmt.Errorf("prompt name must not be empty")
	}
	now := r.nowFunc()
	p, ok := r.data.Prompts[name]
	if !ok {
		p = Prompt{CreatedAt: now}
	}
	p.Content = content
	p.LastUsed = now
	r.data.Prompts[name] = p
	return r.save()
}

// Delete removes a named prompt. The built-in default cannot be deleted;
// deleting the active prompt resets the active pointer to the default.
func (r *Registry) Delete(name string) error {
	if name == DefaultName {
		return fmt.Errorf("cannot delete the default prompt")
	}
	if _, ok := r.data.Prompts[name]; !ok {
		return fmt.Errorf("prompt %q not found", name)
	}
	delete(r.data.Prompts, name)
	if r.data.Active == name {
		r.data.Active = DefaultName
	}
	return r.save()
}
