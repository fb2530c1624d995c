package chat

import (
	"time"

	"github.com/suPer8Hu/chat-relay/internal/ai"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// DefaultTitle is the placeholder title a conversation carries until a title is inferred.
const DefaultTitle = "Nouvelle conversation"

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy that shares no mutable state with c.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	return &out
}

// History converts the transcript into provider messages, oldest first.
func (c *Conversation) History() []ai.Message {
	out := make([]ai.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		out = append(out, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}
