package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/chat-relay/internal/ai"
	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/httpapi"
)

// fakeModel answers chat prompts with reply and title prompts with title.
type fakeModel struct {
	mu    sync.Mutex
	reply []string
	title string
	fail  error
}

func (m *fakeModel) StreamChat(ctx context.Context, msgs []ai.Message, opts ai.Options) (<-chan string, <-chan error) {
	m.mu.Lock()
	chunks := m.reply
	if opts == chat.TitleOptions {
		chunks = []string{m.title}
	}
	fail := m.fail
	m.mu.Unlock()

	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if fail != nil {
			errs <- fail
		}
	}()
	return out, errs
}

func newTestSession(t *testing.T, model *fakeModel) (*Session, *chat.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := chat.NewService(chat.NewStore(), model)
	srv := httptest.NewServer(httpapi.NewRouter(svc, zerolog.Nop(), httpapi.WithHeartbeat(0)))
	t.Cleanup(srv.Close)

	cache, _ := newTestCache(t)
	_, err := cache.Restore(context.Background())
	require.NoError(t, err)
	return NewSession(cache, NewAPI(srv.URL, srv.Client()), zerolog.Nop()), svc
}

func TestSendCommitsBothSidesAndInfersTitle(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{reply: []string{"Hi ", "there<|end|>"}, title: `"Greeting Exchange."`}
	sess, svc := newTestSession(t, model)
	convID := sess.Cache.CurrentID()

	var fragments []string
	res, err := sess.Send(ctx, "  Hello ", func(s string) { fragments = append(fragments, s) })
	require.NoError(t, err)
	assert.Equal(t, "Hi there", res.Outcome.Reply)
	assert.Equal(t, "Greeting Exchange", res.Title)
	assert.NotEmpty(t, fragments)

	local, err := sess.Cache.Get(convID)
	require.NoError(t, err)
	assert.Equal(t, []chat.Message{
		{Role: chat.RoleUser, Content: "Hello"},
		{Role: chat.RoleAssistant, Content: "Hi there"},
	}, local.Messages)
	assert.Equal(t, "Greeting Exchange", local.Title)

	remote, err := svc.GetConversation(convID)
	require.NoError(t, err)
	assert.Equal(t, local.Messages, remote.Messages)
	assert.Equal(t, "Greeting Exchange", remote.Title)

	// third message does not infer again
	res, err = sess.Send(ctx, "again", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Title)
}

func TestSendRelayFailureKeepsMirrorClean(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{reply: []string{"par"}, fail: assert.AnError}
	sess, _ := newTestSession(t, model)
	convID := sess.Cache.CurrentID()

	res, err := sess.Send(ctx, "Hello", nil)
	require.Error(t, err)
	assert.True(t, res.Outcome.Failed)
	assert.True(t, strings.HasPrefix(res.Outcome.View, ErrorViewPrefix))

	local, err := sess.Cache.Get(convID)
	require.NoError(t, err)
	require.Len(t, local.Messages, 1)
	assert.Equal(t, chat.RoleUser, local.Messages[0].Role)
}

func TestSendRejectsBlankMessage(t *testing.T) {
	sess, _ := newTestSession(t, &fakeModel{})
	res, err := sess.Send(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, chat.ErrValidation)
	assert.Nil(t, res)
}

func TestInferTitleTargetsTriggeringConversation(t *testing.T) {
	ctx := context.Background()
	sess, _ := newTestSession(t, &fakeModel{title: "Trip Planning"})
	first := sess.Cache.CurrentID()

	// the user moved on before the title arrived
	second, err := sess.Cache.Create(ctx)
	require.NoError(t, err)

	title, err := sess.InferTitle(ctx, first, "Plan a trip")
	require.NoError(t, err)
	assert.Equal(t, "Trip Planning", title)

	got, err := sess.Cache.Get(first)
	require.NoError(t, err)
	assert.Equal(t, "Trip Planning", got.Title)
	other, err := sess.Cache.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.DefaultTitle, other.Title)
}
