package chat

import (
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/suPer8Hu/chat-relay/internal/ai"
)

// MaxTitleLen is the hard cap on an inferred title, in characters.
const MaxTitleLen = 50

const defaultTitleTemplate = `Génère un titre court et descriptif (3-5 mots maximum) pour une conversation qui commence par : "{{input}}". Réponds UNIQUEMENT avec le titre, sans guillemets, sans ponctuation finale, sans explication.`

// TitlePrompt is the one-shot instruction used for title inference.
// {{input}} is replaced by the seed message.
type TitlePrompt struct {
	User string `toml:"user"`
}

func DefaultTitlePrompt() TitlePrompt {
	return TitlePrompt{User: defaultTitleTemplate}
}

// LoadTitlePrompt reads a TOML prompt file of the form `user = "... {{input}} ..."`.
func LoadTitlePrompt(path string) (TitlePrompt, error) {
	var p TitlePrompt
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return TitlePrompt{}, errors.Wrapf(err, "decoding title prompt %s", path)
	}
	if strings.TrimSpace(p.User) == "" {
		return TitlePrompt{}, errors.Errorf("title prompt %s: empty user template", path)
	}
	return p, nil
}

// Messages builds the single-message sequence sent to the model. The rest of
// the conversation is deliberately not included.
func (p TitlePrompt) Messages(seed string) []ai.Message {
	tpl := p.User
	if tpl == "" {
		tpl = defaultTitleTemplate
	}
	return []ai.Message{{
		Role:    string(RoleUser),
		Content: strings.ReplaceAll(tpl, "{{input}}", seed),
	}}
}

// CleanTitle post-processes a raw model answer into a display title.
func CleanTitle(raw string) string {
	t := Sanitize(raw)
	if strings.HasPrefix(t, `"`) || strings.HasPrefix(t, "'") {
		t = t[1:]
	}
	if strings.HasSuffix(t, `"`) || strings.HasSuffix(t, "'") {
		t = t[:len(t)-1]
	}
	if strings.HasSuffix(t, ".") || strings.HasSuffix(t, "!") || strings.HasSuffix(t, "?") {
		t = t[:len(t)-1]
	}
	if r := []rune(t); len(r) > MaxTitleLen {
		t = string(r[:MaxTitleLen])
	}
	return t
}

// TitleTracker remembers which conversations already had a title inference
// requested. It is independent of the current title so a reset title never
// re-triggers inference.
type TitleTracker struct {
	mu        sync.Mutex
	requested map[string]struct{}
}

func NewTitleTracker() *TitleTracker {
	return &TitleTracker{requested: make(map[string]struct{})}
}

// MarkRequested returns true the first time it is called for id.
func (t *TitleTracker) MarkRequested(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.requested[id]; ok {
		return false
	}
	t.requested[id] = struct{}{}
	return true
}

func (t *TitleTracker) Requested(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.requested[id]
	return ok
}

// Forget drops the trigger state of a deleted conversation.
func (t *TitleTracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.requested, id)
}

// ShouldInferTitle evaluates the trigger after a message was committed: exactly
// two messages, default title, and no inference requested yet. A true result
// also records the request.
func ShouldInferTitle(c *Conversation, tracker *TitleTracker) bool {
	if c == nil || tracker == nil {
		return false
	}
	if len(c.Messages) != 2 || c.Title != DefaultTitle {
		return false
	}
	return tracker.MarkRequested(c.ID)
}

// TitleSeed is the message title inference starts from: the first one.
func TitleSeed(c *Conversation) string {
	if c == nil || len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[0].Content
}
