package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/chat-relay/internal/ai"
)

// ExchangeEvent describes one committed user/assistant exchange.
type ExchangeEvent struct {
	ID               string    `json:"id"`
	ConversationID   string    `json:"conversation_id"`
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	MessageCount     int       `json:"message_count"`
	CommittedAt      time.Time `json:"committed_at"`
}

// EventPublisher is notified after every committed exchange. Failures are logged
// and never affect the session.
type EventPublisher interface {
	PublishExchange(ctx context.Context, ev ExchangeEvent) error
}

const backgroundTitleTimeout = 2 * time.Minute

type Service struct {
	store  *Store
	gate   *Gate
	relay  *Relay
	titles *TitleTracker
	prompt TitlePrompt
	events EventPublisher
	log    zerolog.Logger

	autoTitle bool
	bg        sync.WaitGroup
}

type ServiceOption func(*Service)

func WithEventPublisher(p EventPublisher) ServiceOption {
	return func(s *Service) { s.events = p }
}

func WithTitlePrompt(p TitlePrompt) ServiceOption {
	return func(s *Service) { s.prompt = p }
}

// WithAutoTitle makes the server infer titles itself once a conversation
// reaches its first full exchange, in addition to the explicit endpoint.
func WithAutoTitle(enabled bool) ServiceOption {
	return func(s *Service) { s.autoTitle = enabled }
}

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

func NewService(store *Store, source ai.Provider, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		gate:   NewGate(),
		titles: NewTitleTracker(),
		prompt: DefaultTitlePrompt(),
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.relay = NewRelay(source, s.log.With().Str("component", "relay").Logger())
	return s
}

func (s *Service) Store() *Store { return s.store }

func (s *Service) CreateConversation(id, title string) (*Conversation, error) {
	return s.store.Upsert(id, title)
}

func (s *Service) GetConversation(id string) (*Conversation, error) {
	return s.store.Get(id)
}

func (s *Service) ListConversations() []*Conversation {
	return s.store.List()
}

func (s *Service) RenameConversation(ctx context.Context, id, title string) (*Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.Wrap(ErrValidation, "titre requis")
	}
	release, err := s.gate.Acquire(ctx, id)
	if err != nil {
		return nil, errors.Wrap(ErrCanceled, err.Error())
	}
	defer release()
	return s.store.Rename(id, title)
}

// DeleteConversation waits for any in-flight session on id before removing it.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	release, err := s.gate.Acquire(ctx, id)
	if err != nil {
		return errors.Wrap(ErrCanceled, err.Error())
	}
	defer release()
	if !s.store.Remove(id) {
		return errors.Wrapf(ErrNotFound, "id=%s", id)
	}
	s.titles.Forget(id)
	return nil
}

// ChatSession is one accepted chat request holding the conversation gate.
type ChatSession struct {
	svc     *Service
	convID  string
	message string
	history []ai.Message
	release func()
	log     zerolog.Logger
}

// BeginChat validates the request, lazily creates the conversation, takes its
// gate and records the user message. Every error it returns happens before any
// stream is opened.
func (s *Service) BeginChat(conversationID, message string) (*ChatSession, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, errors.Wrap(ErrValidation, "conversationId requis")
	}
	if strings.TrimSpace(message) == "" {
		return nil, errors.Wrap(ErrValidation, "message requis")
	}
	if _, err := s.store.Upsert(conversationID, ""); err != nil {
		return nil, err
	}
	release, ok := s.gate.TryAcquire(conversationID)
	if !ok {
		return nil, errors.Wrapf(ErrConversationBusy, "id=%s", conversationID)
	}
	conv, err := s.store.Append(conversationID, RoleUser, message)
	if err != nil {
		// deleted between upsert and append
		release()
		return nil, err
	}
	return &ChatSession{
		svc:     s,
		convID:  conversationID,
		message: message,
		history: conv.History(),
		release: release,
		log:     s.log.With().Str("conversation_id", conversationID).Logger(),
	}, nil
}

// Run relays the generation to sink and commits the assistant message. Exactly
// one terminal event is emitted unless the transport went away, in which case
// nothing is emitted and nothing is committed. The gate is released before the
// terminal event goes out, so the next message can follow it immediately.
func (cs *ChatSession) Run(ctx context.Context, sink Sink) error {
	defer cs.release()
	s := cs.svc
	out := guard(sink)

	reply, err := s.relay.Run(ctx, cs.history, ChatOptions, out)
	if err != nil {
		cs.release()
		if errors.Is(err, ErrCanceled) {
			cs.log.Info().Err(err).Msg("chat session canceled, discarding partial response")
			return err
		}
		cs.log.Error().Err(err).Msg("chat relay failed")
		_ = out.Emit(ErrorEvent(RelayFailureMessage))
		return err
	}

	conv, err := s.store.Append(cs.convID, RoleAssistant, reply)
	cs.release()
	if err != nil {
		cs.log.Error().Err(err).Msg("commit assistant message failed")
		_ = out.Emit(ErrorEvent(RelayFailureMessage))
		return err
	}
	if err := out.Emit(ChatDoneEvent(reply)); err != nil {
		cs.log.Warn().Err(err).Msg("terminal event not delivered")
	}

	s.publish(ctx, ExchangeEvent{
		ID:               ulid.Make().String(),
		ConversationID:   cs.convID,
		UserMessage:      cs.message,
		AssistantMessage: reply,
		MessageCount:     len(conv.Messages),
		CommittedAt:      conv.UpdatedAt,
	})

	if s.autoTitle && ShouldInferTitle(conv, s.titles) {
		s.inferTitleInBackground(conv.ID, TitleSeed(conv))
	}
	return nil
}

// SendMessage is BeginChat followed by Run.
func (s *Service) SendMessage(ctx context.Context, conversationID, message string, sink Sink) error {
	cs, err := s.BeginChat(conversationID, message)
	if err != nil {
		return err
	}
	return cs.Run(ctx, sink)
}

func (s *Service) publish(ctx context.Context, ev ExchangeEvent) {
	if s.events == nil {
		return
	}
	// the request context may already be closing
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.events.PublishExchange(pctx, ev); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", ev.ConversationID).Msg("publish exchange event failed")
	}
}

// TitleSession is one accepted title inference request.
type TitleSession struct {
	svc    *Service
	seed   string
	convID string
	// commit is false when the title of convID was already requested elsewhere.
	commit bool
	log    zerolog.Logger
}

// BeginTitle validates a title request. conversationID is optional; when set and
// known to the store, the inferred title is committed to it unless a title was
// already requested for it, by server auto-title or an earlier request. The
// title is streamed back either way.
func (s *Service) BeginTitle(seed, conversationID string) (*TitleSession, error) {
	if strings.TrimSpace(seed) == "" {
		return nil, errors.Wrap(ErrValidation, "message requis")
	}
	conversationID = strings.TrimSpace(conversationID)
	l := s.log.With().Str("session", "title")
	commit := false
	if conversationID != "" {
		l = l.Str("conversation_id", conversationID)
		commit = s.titles.MarkRequested(conversationID)
	}
	return &TitleSession{svc: s, seed: seed, convID: conversationID, commit: commit, log: l.Logger()}, nil
}

// Run streams the title generation and returns the cleaned title.
func (ts *TitleSession) Run(ctx context.Context, sink Sink) (string, error) {
	s := ts.svc
	out := guard(sink)

	raw, err := s.relay.Run(ctx, s.prompt.Messages(ts.seed), TitleOptions, out)
	if err != nil {
		if errors.Is(err, ErrCanceled) {
			ts.log.Info().Err(err).Msg("title session canceled")
			return "", err
		}
		ts.log.Error().Err(err).Msg("title relay failed")
		_ = out.Emit(ErrorEvent(TitleFailureMessage))
		return "", err
	}
	title := CleanTitle(raw)

	if ts.commit && title != "" {
		if err := s.commitTitle(ctx, ts.convID, title); err != nil {
			if errors.Is(err, ErrCanceled) {
				return "", err
			}
			// the conversation may only exist client side
			ts.log.Debug().Err(err).Msg("title not committed server side")
		}
	}
	if err := out.Emit(TitleDoneEvent(title)); err != nil {
		ts.log.Warn().Err(err).Msg("terminal event not delivered")
	}
	return title, nil
}

// GenerateTitle is BeginTitle followed by Run.
func (s *Service) GenerateTitle(ctx context.Context, seed, conversationID string, sink Sink) (string, error) {
	ts, err := s.BeginTitle(seed, conversationID)
	if err != nil {
		return "", err
	}
	return ts.Run(ctx, sink)
}

func (s *Service) commitTitle(ctx context.Context, id, title string) error {
	release, err := s.gate.Acquire(ctx, id)
	if err != nil {
		return errors.Wrap(ErrCanceled, err.Error())
	}
	defer release()
	_, err = s.store.Rename(id, title)
	return err
}

func (s *Service) inferTitleInBackground(id, seed string) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTitleTimeout)
		defer cancel()
		ts := &TitleSession{
			svc:    s,
			seed:   seed,
			convID: id,
			commit: true,
			log:    s.log.With().Str("session", "title").Str("conversation_id", id).Logger(),
		}
		title, err := ts.Run(ctx, nil)
		if err != nil {
			return
		}
		ts.log.Info().Str("title", title).Msg("title inferred")
	}()
}

// Wait blocks until background title sessions have finished.
func (s *Service) Wait() {
	s.bg.Wait()
}
