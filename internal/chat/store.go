package chat

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Store is the server-side registry of active conversations. It lives for one
// process run and is not durable; it only holds context for in-flight generation.
// Message order per conversation is insertion order and is never rewritten.
type Store struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
	now   func() time.Time
}

type StoreOption func(*Store)

// WithClock overrides the time source used for createdAt/updatedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{convs: make(map[string]*Conversation), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Upsert returns the conversation for id, creating it with title (or DefaultTitle)
// when unknown. An existing conversation is never modified.
func (s *Store) Upsert(id, title string) (*Conversation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.Wrap(ErrValidation, "conversationId requis")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.convs[id]; ok {
		return c.Clone(), nil
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	now := s.now()
	c := &Conversation{
		ID:        id,
		Title:     title,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.convs[id] = c
	return c.Clone(), nil
}

func (s *Store) Get(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id=%s", id)
	}
	return c.Clone(), nil
}

// Append adds a message at the end of the transcript. Callers must Upsert first.
func (s *Store) Append(id string, role Role, content string) (*Conversation, error) {
	if !role.Valid() {
		return nil, errors.Wrapf(ErrValidation, "invalid role %q", role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id=%s", id)
	}
	c.Messages = append(c.Messages, Message{Role: role, Content: content})
	c.UpdatedAt = s.now()
	return c.Clone(), nil
}

func (s *Store) Rename(id, title string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id=%s", id)
	}
	c.Title = title
	c.UpdatedAt = s.now()
	return c.Clone(), nil
}

// Remove deletes the conversation and reports whether it existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return false
	}
	delete(s.convs, id)
	return true
}

// List returns snapshots ordered by most recent activity first.
func (s *Store) List() []*Conversation {
	s.mu.RLock()
	out := make([]*Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		out = append(out, c.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}
