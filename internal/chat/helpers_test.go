package chat

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/suPer8Hu/chat-relay/internal/ai"
)

// scriptedSource yields chunks in order, then fails with err if non-nil.
func scriptedSource(chunks []string, err error) *recordingSource {
	return &recordingSource{chunks: chunks, err: err}
}

type recordingSource struct {
	mu     sync.Mutex
	chunks []string
	err    error
	block  chan struct{} // when set, the stream waits on it before finishing
	calls  [][]ai.Message
	opts   []ai.Options
}

func (p *recordingSource) StreamChat(ctx context.Context, messages []ai.Message, opts ai.Options) (<-chan string, <-chan error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]ai.Message(nil), messages...))
	p.opts = append(p.opts, opts)
	p.mu.Unlock()

	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, c := range p.chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if p.block != nil {
			select {
			case <-p.block:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if p.err != nil {
			errs <- p.err
		}
	}()
	return out, errs
}

func (p *recordingSource) Calls() [][]ai.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]ai.Message(nil), p.calls...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	// fail makes Emit return an error once this many events were accepted.
	failAfter int
	onEmit    func(Event)
}

var errSinkGone = errors.New("sink gone")

func (s *recordingSink) Emit(e Event) error {
	s.mu.Lock()
	if s.failAfter > 0 && len(s.events) >= s.failAfter {
		s.mu.Unlock()
		return errSinkGone
	}
	s.events = append(s.events, e)
	cb := s.onEmit
	s.mu.Unlock()
	if cb != nil {
		cb(e)
	}
	return nil
}

func (s *recordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func terminalCount(events []Event) int {
	n := 0
	for _, e := range events {
		if e.Terminal() {
			n++
		}
	}
	return n
}
