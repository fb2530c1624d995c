package client

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/suPer8Hu/chat-relay/internal/chat"
)

var ErrStreamInterrupted = errors.New("stream ended before a terminal event")

// Inline failure texts shown in place of the answer.
const (
	ErrorViewPrefix     = "Erreur : "
	ConnectionErrorView = "Erreur de connexion"
)

// Reconciler folds one chat stream into the cache. Fragments only update the
// transient transcript; the durable mirror changes once, on the done event.
type Reconciler struct {
	ctx    context.Context
	cache  *Cache
	convID string

	// OnFragment receives the transcript rendered so far.
	OnFragment func(transcript string)

	transcript strings.Builder
	view       string
	terminal   bool
	failed     bool
	commit     *Commit
	commitErr  error
}

func NewReconciler(ctx context.Context, cache *Cache, conversationID string) *Reconciler {
	return &Reconciler{ctx: ctx, cache: cache, convID: conversationID}
}

// Handle consumes one stream event. Events after the terminal one are ignored.
func (r *Reconciler) Handle(e chat.Event) error {
	if r.terminal {
		return nil
	}
	switch {
	case e.Error != "":
		r.terminal = true
		r.failed = true
		r.view = ErrorViewPrefix + e.Error
	case e.Done:
		r.terminal = true
		full := ""
		if e.FullResponse != nil {
			full = *e.FullResponse
		}
		r.view = full
		r.commit, r.commitErr = r.cache.CommitAssistant(r.ctx, r.convID, full)
		return r.commitErr
	case e.Content != "":
		r.transcript.WriteString(e.Content)
		r.view = r.transcript.String()
		if r.OnFragment != nil {
			r.OnFragment(r.view)
		}
	}
	return nil
}

// Outcome is what a finished stream left behind.
type Outcome struct {
	// View is the text shown for the answer: the committed reply, the partial
	// transcript, or an inline failure message.
	View   string
	Reply  string
	Failed bool
	Commit *Commit
}

// Finish closes the reconciliation given the error the transport ended with.
// Nothing is committed unless a done event was handled.
func (r *Reconciler) Finish(streamErr error) (*Outcome, error) {
	out := &Outcome{View: r.view, Failed: r.failed, Commit: r.commit}
	if r.commitErr != nil {
		out.Failed = true
		return out, r.commitErr
	}
	if r.terminal {
		if r.failed {
			return out, errors.New(strings.TrimPrefix(r.view, ErrorViewPrefix))
		}
		out.Reply = r.view
		return out, nil
	}
	out.Failed = true
	if streamErr != nil {
		var he *HTTPError
		if errors.As(streamErr, &he) {
			out.View = ErrorViewPrefix + he.Message
		} else {
			out.View = ConnectionErrorView
		}
		return out, streamErr
	}
	return out, ErrStreamInterrupted
}
