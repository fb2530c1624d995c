package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	assert.Error(t, err)
}

func TestBlobStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewBlobStore(openTestDB(t))
	require.NoError(t, err)

	_, ok, err := s.Get(ctx, "kai_conversations")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "kai_conversations", []byte(`{}`)))
	require.NoError(t, s.Put(ctx, "kai_conversations", []byte(`{"a":1}`)))
	v, ok, err := s.Get(ctx, "kai_conversations")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(v))

	require.NoError(t, s.Delete(ctx, "kai_conversations"))
	_, ok, err = s.Get(ctx, "kai_conversations")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArchiveRecordIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a, err := NewArchive(openTestDB(t))
	require.NoError(t, err)

	rec := ExchangeRecord{
		ID:               "01J0000000000000000000000A",
		ConversationID:   "c1",
		UserMessage:      "Hi",
		AssistantMessage: "Hello",
		MessageCount:     2,
		CommittedAt:      time.Now(),
	}
	created, err := a.Record(ctx, &rec)
	require.NoError(t, err)
	assert.True(t, created)

	dup := rec
	created, err = a.Record(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, created)

	n, err := a.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestArchiveListPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	a, err := NewArchive(openTestDB(t))
	require.NoError(t, err)

	ids := []string{"01J0000000000000000000000A", "01J0000000000000000000000B", "01J0000000000000000000000C"}
	for _, id := range ids {
		_, err := a.Record(ctx, &ExchangeRecord{ID: id, ConversationID: "c1"})
		require.NoError(t, err)
	}
	_, err = a.Record(ctx, &ExchangeRecord{ID: "01J0000000000000000000000D", ConversationID: "other"})
	require.NoError(t, err)

	page, err := a.ListByConversation(ctx, "c1", 2, "")
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	page, err = a.ListByConversation(ctx, "c1", 2, page[1].ID)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)
}
