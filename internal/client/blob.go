package client

import "context"

// Fixed keys of the durable client state.
const (
	KeyConversations    = "kai_conversations"
	KeyLastConversation = "kai_last_conversation"
	KeyTheme            = "kai_theme"
)

// BlobStore is the durable key/value store the cache writes through to.
// Get reports ok=false for a missing key.
type BlobStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
