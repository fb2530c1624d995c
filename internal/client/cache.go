package client

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/common"
)

var ErrCorruptState = errors.New("corrupted client state")

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Cache is the client's durable mirror of its own conversations. Every mutation
// is written through to the BlobStore before it returns. It never fetches
// conversations from the server.
type Cache struct {
	store BlobStore
	now   func() time.Time

	mu      sync.Mutex
	convs   map[string]*chat.Conversation
	current string
	theme   Theme
	titles  *chat.TitleTracker
}

type CacheOption func(*Cache)

func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func NewCache(store BlobStore, opts ...CacheOption) *Cache {
	c := &Cache{
		store:  store,
		now:    time.Now,
		convs:  make(map[string]*chat.Conversation),
		theme:  ThemeLight,
		titles: chat.NewTitleTracker(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Load replaces the in-memory mirror with the persisted state. A missing blob
// yields an empty mirror.
func (c *Cache) Load(ctx context.Context) error {
	raw, ok, err := c.store.Get(ctx, KeyConversations)
	if err != nil {
		return errors.Wrap(err, "read conversations")
	}
	convs := make(map[string]*chat.Conversation)
	if ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &convs); err != nil {
			return errors.Wrap(ErrCorruptState, err.Error())
		}
	}
	for id, conv := range convs {
		if conv == nil {
			delete(convs, id)
			continue
		}
		if conv.Messages == nil {
			conv.Messages = []chat.Message{}
		}
	}

	theme := ThemeLight
	if v, ok, err := c.store.Get(ctx, KeyTheme); err != nil {
		return errors.Wrap(err, "read theme")
	} else if ok && Theme(v) == ThemeDark {
		theme = ThemeDark
	}

	c.mu.Lock()
	c.convs = convs
	c.theme = theme
	c.current = ""
	c.mu.Unlock()
	return nil
}

// Restore loads the persisted state and selects the last active conversation,
// falling back to the most recent one and then to a new one.
func (c *Cache) Restore(ctx context.Context) (*chat.Conversation, error) {
	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	last, ok, err := c.store.Get(ctx, KeyLastConversation)
	if err != nil {
		return nil, errors.Wrap(err, "read last conversation")
	}
	if ok {
		if err := c.Select(ctx, string(last)); err == nil {
			return c.Current(), nil
		}
	}
	if list := c.Conversations(); len(list) > 0 {
		if err := c.Select(ctx, list[0].ID); err != nil {
			return nil, err
		}
		return c.Current(), nil
	}
	return c.Create(ctx)
}

// Create adds an empty conversation with the default title and makes it current.
func (c *Cache) Create(ctx context.Context) (*chat.Conversation, error) {
	id, err := common.NewConversationID()
	if err != nil {
		return nil, errors.Wrap(err, "new conversation id")
	}
	now := c.now()
	conv := &chat.Conversation{
		ID:        id,
		Title:     chat.DefaultTitle,
		Messages:  []chat.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.convs[id] = conv
	c.current = id
	if err := c.persistLocked(ctx); err != nil {
		return nil, err
	}
	return conv.Clone(), nil
}

// Select makes id current. Only conversations mirrored locally can be selected.
func (c *Cache) Select(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.convs[id]; !ok {
		return errors.Wrapf(chat.ErrNotFound, "id=%s", id)
	}
	c.current = id
	return c.persistLocked(ctx)
}

func (c *Cache) CurrentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Current returns a snapshot of the selected conversation, or nil.
func (c *Cache) Current() *chat.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.convs[c.current].Clone()
}

func (c *Cache) Get(id string) (*chat.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.convs[id]
	if !ok {
		return nil, errors.Wrapf(chat.ErrNotFound, "id=%s", id)
	}
	return conv.Clone(), nil
}

// Conversations lists snapshots, most recently updated first.
func (c *Cache) Conversations() []*chat.Conversation {
	c.mu.Lock()
	out := make([]*chat.Conversation, 0, len(c.convs))
	for _, conv := range c.convs {
		out = append(out, conv.Clone())
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Commit is the result of appending a message. InferTitle is set at most once
// per conversation, when it first reaches two messages under the default title.
type Commit struct {
	Conversation *chat.Conversation
	InferTitle   bool
	Seed         string
}

// AppendUser records the user's message before it is sent.
func (c *Cache) AppendUser(ctx context.Context, id, content string) (*Commit, error) {
	return c.append(ctx, id, chat.RoleUser, content)
}

// CommitAssistant records a completed, sanitized assistant answer.
func (c *Cache) CommitAssistant(ctx context.Context, id, content string) (*Commit, error) {
	return c.append(ctx, id, chat.RoleAssistant, content)
}

func (c *Cache) append(ctx context.Context, id string, role chat.Role, content string) (*Commit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.convs[id]
	if !ok {
		return nil, errors.Wrapf(chat.ErrNotFound, "id=%s", id)
	}
	conv.Messages = append(conv.Messages, chat.Message{Role: role, Content: content})
	conv.UpdatedAt = c.now()
	if err := c.persistLocked(ctx); err != nil {
		return nil, err
	}
	snap := conv.Clone()
	out := &Commit{Conversation: snap}
	if chat.ShouldInferTitle(snap, c.titles) {
		out.InferTitle = true
		out.Seed = chat.TitleSeed(snap)
	}
	return out, nil
}

// Rename sets a trimmed title. A blank title is ignored.
func (c *Cache) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.convs[id]
	if !ok {
		return errors.Wrapf(chat.ErrNotFound, "id=%s", id)
	}
	if title == "" {
		return nil
	}
	conv.Title = title
	conv.UpdatedAt = c.now()
	return c.persistLocked(ctx)
}

// Delete removes id. When it was current, the most recent remaining
// conversation is selected, or a new one is created.
func (c *Cache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	if _, ok := c.convs[id]; !ok {
		c.mu.Unlock()
		return errors.Wrapf(chat.ErrNotFound, "id=%s", id)
	}
	delete(c.convs, id)
	c.titles.Forget(id)
	wasCurrent := c.current == id
	if wasCurrent {
		c.current = ""
	}
	err := c.persistLocked(ctx)
	c.mu.Unlock()
	if err != nil || !wasCurrent {
		return err
	}

	if list := c.Conversations(); len(list) > 0 {
		return c.Select(ctx, list[0].ID)
	}
	_, err = c.Create(ctx)
	return err
}

func (c *Cache) Theme() Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

func (c *Cache) ToggleTheme(ctx context.Context) (Theme, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := ThemeDark
	if c.theme == ThemeDark {
		next = ThemeLight
	}
	if err := c.store.Put(ctx, KeyTheme, []byte(next)); err != nil {
		return c.theme, errors.Wrap(err, "write theme")
	}
	c.theme = next
	return next, nil
}

func (c *Cache) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(c.convs)
	if err != nil {
		return errors.Wrap(err, "encode conversations")
	}
	if err := c.store.Put(ctx, KeyConversations, raw); err != nil {
		return errors.Wrap(err, "write conversations")
	}
	if c.current != "" {
		if err := c.store.Put(ctx, KeyLastConversation, []byte(c.current)); err != nil {
			return errors.Wrap(err, "write last conversation")
		}
	}
	return nil
}
