package client

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/chat-relay/internal/chat"
)

// Session drives the interactive flow: optimistic append, streamed answer,
// reconciliation and title inference.
type Session struct {
	Cache *Cache
	API   *API
	Log   zerolog.Logger
}

func NewSession(cache *Cache, api *API, logger zerolog.Logger) *Session {
	return &Session{Cache: cache, API: api, Log: logger}
}

// SendResult describes one exchange from the user's point of view.
type SendResult struct {
	ConversationID string
	Outcome        *Outcome
	// Title is set when title inference ran and produced a title.
	Title string
}

// Send posts message to the current conversation. onFragment, if set, receives
// the transcript as it grows. The returned result is non-nil whenever the user
// message was recorded, even if the exchange failed.
func (s *Session) Send(ctx context.Context, message string, onFragment func(string)) (*SendResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errors.Wrap(chat.ErrValidation, "message requis")
	}
	convID := s.Cache.CurrentID()
	if convID == "" {
		return nil, errors.New("no conversation selected")
	}
	log := s.Log.With().Str("conversation_id", convID).Logger()

	userCommit, err := s.Cache.AppendUser(ctx, convID, message)
	if err != nil {
		return nil, err
	}

	rec := NewReconciler(ctx, s.Cache, convID)
	rec.OnFragment = onFragment
	out, sendErr := rec.Finish(s.API.Chat(ctx, convID, message, rec.Handle))
	res := &SendResult{ConversationID: convID, Outcome: out}
	if sendErr != nil {
		log.Warn().Err(sendErr).Msg("exchange not committed")
	}

	// the trigger counts messages, so a failed exchange can still fire it
	trigger := userCommit
	if out.Commit != nil && out.Commit.InferTitle {
		trigger = out.Commit
	}
	if trigger.InferTitle {
		title, err := s.InferTitle(ctx, convID, trigger.Seed)
		if err != nil {
			log.Warn().Err(err).Msg("title inference failed")
		}
		res.Title = title
	}
	return res, sendErr
}

// InferTitle asks the server for a title and applies it to conversationID,
// which need not be current anymore.
func (s *Session) InferTitle(ctx context.Context, conversationID, seed string) (string, error) {
	var title string
	var serverErr string
	err := s.API.GenerateTitle(ctx, seed, conversationID, func(e chat.Event) error {
		switch {
		case e.Error != "":
			serverErr = e.Error
		case e.Done && e.Title != nil:
			title = *e.Title
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if serverErr != "" {
		return "", errors.New(serverErr)
	}
	if title == "" {
		return "", nil
	}
	if err := s.Cache.Rename(ctx, conversationID, title); err != nil {
		// deleted while the title was generated
		if errors.Is(err, chat.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return title, nil
}
