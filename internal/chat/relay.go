package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/chat-relay/internal/ai"
)

// Generation settings are fixed per session kind.
var (
	ChatOptions  = ai.Options{Temperature: 0.8, MaxTokens: 4000}
	TitleOptions = ai.Options{Temperature: 0.7, MaxTokens: 50}
)

// Relay drives one generation request: it forwards every fragment to the sink in
// arrival order and returns the sanitized aggregate once the source is exhausted.
type Relay struct {
	source ai.Provider
	log    zerolog.Logger
}

func NewRelay(source ai.Provider, logger zerolog.Logger) *Relay {
	return &Relay{source: source, log: logger}
}

// Run returns ErrRelay when the source fails and ErrCanceled when ctx ends or the
// sink can no longer be written. Only the returned text is sanitized; fragments
// are forwarded raw. Run never emits a terminal event; that belongs to the caller
// once it has committed the result.
func (r *Relay) Run(ctx context.Context, messages []ai.Message, opts ai.Options, sink Sink) (string, error) {
	if r == nil || r.source == nil {
		return "", errors.Wrap(ErrRelay, "no token source configured")
	}
	// returning early aborts the source
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	chunks, errs := r.source.StreamChat(ctx, messages, opts)

	var b strings.Builder
	fragments := 0
	for chunks != nil {
		select {
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if c == "" {
				continue
			}
			b.WriteString(c)
			fragments++
			if err := sink.Emit(FragmentEvent(c)); err != nil {
				return "", errors.Wrap(ErrCanceled, "sink closed")
			}
		case <-ctx.Done():
			return "", errors.Wrap(ErrCanceled, ctx.Err().Error())
		}
	}

	var srcErr error
	select {
	case err, ok := <-errs:
		if ok {
			srcErr = err
		}
	case <-ctx.Done():
		return "", errors.Wrap(ErrCanceled, ctx.Err().Error())
	}
	if ctx.Err() != nil {
		return "", errors.Wrap(ErrCanceled, ctx.Err().Error())
	}
	if srcErr != nil {
		return "", errors.Wrap(ErrRelay, srcErr.Error())
	}

	r.log.Debug().
		Int("fragments", fragments).
		Int("raw_len", b.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("relay completed")
	return Sanitize(b.String()), nil
}

// terminalGuard lets at most one terminal event through and drops everything after it.
type terminalGuard struct {
	mu     sync.Mutex
	sink   Sink
	closed bool
}

var errSessionClosed = errors.New("session already terminated")

func guard(sink Sink) *terminalGuard {
	if sink == nil {
		sink = discardSink{}
	}
	return &terminalGuard{sink: sink}
}

func (g *terminalGuard) Emit(e Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return errSessionClosed
	}
	if e.Terminal() {
		g.closed = true
	}
	return g.sink.Emit(e)
}
