package chat

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func TestStoreUpsert_IsIdempotent(t *testing.T) {
	s := NewStore()

	c, err := s.Upsert("c1", "")
	require.NoError(t, err)
	require.Equal(t, DefaultTitle, c.Title)
	require.Empty(t, c.Messages)
	require.False(t, c.CreatedAt.IsZero())
	require.Equal(t, c.CreatedAt, c.UpdatedAt)

	_, err = s.Append("c1", RoleUser, "Hello")
	require.NoError(t, err)

	again, err := s.Upsert("c1", "Other title")
	require.NoError(t, err)
	require.Equal(t, DefaultTitle, again.Title)
	require.Len(t, again.Messages, 1)
}

func TestStoreUpsert_UsesGivenTitle(t *testing.T) {
	s := NewStore()
	c, err := s.Upsert("c2", "Plans")
	require.NoError(t, err)
	require.Equal(t, "Plans", c.Title)
}

func TestStoreUpsert_RequiresID(t *testing.T) {
	_, err := NewStore().Upsert("  ", "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestStoreAppend_NotFound(t *testing.T) {
	_, err := NewStore().Append("missing", RoleUser, "hi")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreAppend_RejectsUnknownRole(t *testing.T) {
	s := NewStore()
	_, _ = s.Upsert("c1", "")
	_, err := s.Append("c1", Role("system"), "be nice")
	require.ErrorIs(t, err, ErrValidation)
}

func TestStoreAppend_RefreshesUpdatedAt(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore(WithClock(clock.Now))

	created, _ := s.Upsert("c1", "")
	appended, err := s.Append("c1", RoleUser, "Hello")
	require.NoError(t, err)
	require.True(t, appended.UpdatedAt.After(created.UpdatedAt))
	require.Equal(t, created.CreatedAt, appended.CreatedAt)

	renamed, err := s.Rename("c1", "Greeting")
	require.NoError(t, err)
	require.True(t, renamed.UpdatedAt.After(appended.UpdatedAt))
}

func TestStoreSnapshotsAreIsolated(t *testing.T) {
	s := NewStore()
	_, _ = s.Upsert("c1", "")
	c, _ := s.Append("c1", RoleUser, "Hello")

	c.Messages[0].Content = "tampered"
	c.Messages = append(c.Messages, Message{Role: RoleAssistant, Content: "fake"})

	got, err := s.Get("c1")
	require.NoError(t, err)
	if diff := cmp.Diff([]Message{{Role: RoleUser, Content: "Hello"}}, got.Messages); diff != "" {
		t.Fatalf("store state changed through snapshot (-want +got):\n%s", diff)
	}
}

func TestStoreRenameAndRemove(t *testing.T) {
	s := NewStore()
	_, err := s.Rename("nope", "x")
	require.ErrorIs(t, err, ErrNotFound)

	_, _ = s.Upsert("c1", "")
	require.True(t, s.Remove("c1"))
	require.False(t, s.Remove("c1"))

	_, err = s.Get("c1")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 0, s.Len())
}

func TestStoreList_MostRecentFirst(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore(WithClock(clock.Now))
	_, _ = s.Upsert("a", "")
	_, _ = s.Upsert("b", "")
	_, _ = s.Append("a", RoleUser, "bump")

	var ids []string
	for _, c := range s.List() {
		ids = append(ids, c.ID)
	}
	require.Equal(t, []string{"a", "b"}, ids)
}

// Message counts never decrease unless the whole conversation is removed.
func TestStore_AppendOnlyUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewStore()
	ids := []string{"c1", "c2", "c3"}
	last := map[string]int{}

	for i := 0; i < 500; i++ {
		id := ids[rng.Intn(len(ids))]
		removed := false
		switch rng.Intn(5) {
		case 0:
			_, _ = s.Upsert(id, "")
		case 1:
			_, _ = s.Append(id, RoleUser, fmt.Sprintf("u%d", i))
		case 2:
			_, _ = s.Append(id, RoleAssistant, fmt.Sprintf("a%d", i))
		case 3:
			_, _ = s.Rename(id, fmt.Sprintf("t%d", i))
		case 4:
			removed = s.Remove(id)
		}

		c, err := s.Get(id)
		if err != nil {
			delete(last, id)
			continue
		}
		if !removed {
			require.GreaterOrEqual(t, len(c.Messages), last[id], "op %d shrank %s", i, id)
		}
		last[id] = len(c.Messages)
	}
}
