package rabbitmq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/chat-relay/internal/chat"
)

func TestDecode(t *testing.T) {
	ev := chat.ExchangeEvent{
		ID:               "01J0000000000000000000000A",
		ConversationID:   "c1",
		UserMessage:      "Hi",
		AssistantMessage: "Hello",
		MessageCount:     2,
		CommittedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	got, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestDecodeRejects(t *testing.T) {
	for name, body := range map[string]string{
		"not json":        `{`,
		"missing id":      `{"conversation_id":"c1"}`,
		"missing conv id": `{"id":"x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(body))
			assert.Error(t, err)
		})
	}
}
