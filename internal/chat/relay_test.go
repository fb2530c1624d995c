package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/chat-relay/internal/ai"
)

func TestRelay_ForwardsRawFragmentsAndSanitizesAggregate(t *testing.T) {
	src := scriptedSource([]string{"Hel", "lo<|end|>"}, nil)
	sink := &recordingSink{}

	got, err := NewRelay(src, zerolog.Nop()).Run(context.Background(), nil, ChatOptions, sink)
	require.NoError(t, err)
	require.Equal(t, "Hello", got)

	want := []Event{FragmentEvent("Hel"), FragmentEvent("lo<|end|>")}
	if diff := cmp.Diff(want, sink.Events()); diff != "" {
		t.Fatalf("fragments (-want +got):\n%s", diff)
	}
}

func TestRelay_PassesMessagesAndOptions(t *testing.T) {
	src := scriptedSource([]string{"ok"}, nil)
	msgs := []ai.Message{{Role: "user", Content: "Hello"}}

	_, err := NewRelay(src, zerolog.Nop()).Run(context.Background(), msgs, TitleOptions, &recordingSink{})
	require.NoError(t, err)
	require.Equal(t, [][]ai.Message{msgs}, src.Calls())
	require.Equal(t, []ai.Options{TitleOptions}, src.opts)
}

func TestRelay_SourceFailureIsRelayError(t *testing.T) {
	for _, chunks := range [][]string{nil, {"partial"}} {
		src := scriptedSource(chunks, errors.New("connection refused: 127.0.0.1:11434"))
		sink := &recordingSink{}

		_, err := NewRelay(src, zerolog.Nop()).Run(context.Background(), nil, ChatOptions, sink)
		require.ErrorIs(t, err, ErrRelay)
		require.Equal(t, 0, terminalCount(sink.Events()))
		require.Len(t, sink.Events(), len(chunks))
	}
}

func TestRelay_ContextCancelAbortsSource(t *testing.T) {
	src := scriptedSource([]string{"a"}, nil)
	src.block = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	sink := &recordingSink{onEmit: func(Event) { cancel() }}
	done := make(chan error, 1)
	go func() {
		_, err := NewRelay(src, zerolog.Nop()).Run(ctx, nil, ChatOptions, sink)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrCanceled)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancellation")
	}
}

func TestRelay_SinkFailureCancels(t *testing.T) {
	src := scriptedSource([]string{"a", "b", "c"}, nil)
	sink := &recordingSink{failAfter: 1}

	_, err := NewRelay(src, zerolog.Nop()).Run(context.Background(), nil, ChatOptions, sink)
	require.ErrorIs(t, err, ErrCanceled)
	require.Len(t, sink.Events(), 1)
}

func TestRelay_WithoutSource(t *testing.T) {
	_, err := NewRelay(nil, zerolog.Nop()).Run(context.Background(), nil, ChatOptions, &recordingSink{})
	require.ErrorIs(t, err, ErrRelay)
}

func TestTerminalGuard_DropsEventsAfterTerminal(t *testing.T) {
	sink := &recordingSink{}
	g := guard(sink)

	require.NoError(t, g.Emit(FragmentEvent("x")))
	require.NoError(t, g.Emit(ErrorEvent("boom")))
	require.Error(t, g.Emit(ChatDoneEvent("late")))
	require.Error(t, g.Emit(FragmentEvent("late")))

	events := sink.Events()
	require.Len(t, events, 2)
	require.True(t, events[1].Terminal())
}
