// ABOUTME: Tests for the conversation Service
// ABOUTME: Verifies find-or-create idempotence, race recovery, and message recording

package conversation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machu87/whatsapp-support-backend/internal/store"
)

func createTestStore(t *testing.T) *store.SQLiteStore {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestService_Ensure_CreatesConversation(t *testing.T) {
	svc := New(createTestStore(t), nil)
	ctx := context.Background()

	conv, err := svc.Ensure(ctx, "+15551112222")
	require.NoError(t, err)
	require.NotNil(t, conv)

	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "+15551112222", conv.Participant)
	assert.Equal(t, store.StatusOpen, conv.Status)
	assert.False(t, conv.CreatedAt.IsZero())
}

func TestService_Ensure_Idempotent(t *testing.T) {
	svc := New(createTestStore(t), nil)
	ctx := context.Background()

	first, err := svc.Ensure(ctx, "+15551112222")
	require.NoError(t, err)

	second, err := svc.Ensure(ctx, "+15551112222")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	conversations, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, conversations, 1)
}

// racingStore simulates a concurrent first contact: the lookup misses,
// then the insert collides with a row another request created in between.
type racingStore struct {
	ConversationStore
	raced bool
}

func (r *racingStore) GetConversationByParticipant(ctx context.Context, participant string) (*store.Conversation, error) {
	if !r.raced {
		// First lookup misses; the "other request" wins the insert race
		r.raced = true
		now := time.Now()
		_ = r.ConversationStore.CreateConversation(ctx, &store.Conversation{
			ID:          "winner",
			Participant: participant,
			Status:      store.StatusOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return nil, store.ErrNotFound
	}
	return r.ConversationStore.GetConversationByParticipant(ctx, participant)
}

func TestService_Ensure_DuplicateRace(t *testing.T) {
	svc := New(&racingStore{ConversationStore: createTestStore(t)}, nil)
	ctx := context.Background()

	conv, err := svc.Ensure(ctx, "+15551112222")
	require.NoError(t, err)

	// The loser of the race must return the winner's row, not a duplicate
	assert.Equal(t, "winner", conv.ID)
}

func TestService_Ensure_RequiresParticipant(t *testing.T) {
	svc := New(createTestStore(t), nil)

	_, err := svc.Ensure(context.Background(), "")
	assert.Error(t, err)
}

func TestService_Record(t *testing.T) {
	svc := New(createTestStore(t), nil)
	ctx := context.Background()

	conv, err := svc.Ensure(ctx, "+15551112222")
	require.NoError(t, err)

	msg, err := svc.Record(ctx, RecordRequest{
		ConversationID: conv.ID,
		Direction:      store.DirectionInbound,
		From:           "+15551112222",
		To:             "+15550009999",
		Body:           "Hello",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, conv.ID, msg.ConversationID)
	assert.Equal(t, store.DirectionInbound, msg.Direction)
	assert.False(t, msg.CreatedAt.IsZero())

	history, err := svc.History(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Hello", history[0].Body)
}

func TestService_Record_TouchesConversation(t *testing.T) {
	testStore := createTestStore(t)
	svc := New(testStore, nil)
	ctx := context.Background()

	conv, err := svc.Ensure(ctx, "+15551112222")
	require.NoError(t, err)

	// Backdate the conversation so the touch is observable
	earlier := time.Now().Add(-time.Hour)
	require.NoError(t, testStore.TouchConversation(ctx, conv.ID, earlier))

	_, err = svc.Record(ctx, RecordRequest{
		ConversationID: conv.ID,
		Direction:      store.DirectionOutbound,
		From:           "+15550009999",
		To:             "+15551112222",
		Body:           "Hi there",
	})
	require.NoError(t, err)

	updated, err := testStore.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(earlier))
}

func TestService_Record_InvalidDirection(t *testing.T) {
	svc := New(createTestStore(t), nil)
	ctx := context.Background()

	conv, err := svc.Ensure(ctx, "+15551112222")
	require.NoError(t, err)

	_, err = svc.Record(ctx, RecordRequest{
		ConversationID: conv.ID,
		Direction:      "sideways",
		From:           "a",
		To:             "b",
	})
	assert.Error(t, err)
}

func TestService_History_Order(t *testing.T) {
	svc := New(createTestStore(t), nil)
	ctx := context.Background()

	conv, err := svc.Ensure(ctx, "+15551112222")
	require.NoError(t, err)

	for _, body := range []string{"first", "second", "third"} {
		_, err := svc.Record(ctx, RecordRequest{
			ConversationID: conv.ID,
			Direction:      store.DirectionInbound,
			From:           "+15551112222",
			To:             "+15550009999",
			Body:           body,
		})
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "first", history[0].Body)
	assert.Equal(t, "second", history[1].Body)
	assert.Equal(t, "third", history[2].Body)
}

func TestService_History_UnknownConversation(t *testing.T) {
	svc := New(createTestStore(t), nil)

	history, err := svc.History(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestService_List_NewestFirst(t *testing.T) {
	svc := New(createTestStore(t), nil)
	ctx := context.Background()

	a, err := svc.Ensure(ctx, "+15550000001")
	require.NoError(t, err)
	b, err := svc.Ensure(ctx, "+15550000002")
	require.NoError(t, err)

	// A message to the older conversation moves it to the front
	time.Sleep(1100 * time.Millisecond) // RFC3339 storage has second precision
	_, err = svc.Record(ctx, RecordRequest{
		ConversationID: a.ID,
		Direction:      store.DirectionInbound,
		From:           "+15550000001",
		To:             "+15550009999",
		Body:           "bump",
	})
	require.NoError(t, err)

	conversations, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, a.ID, conversations[0].ID)
	assert.Equal(t, b.ID, conversations[1].ID)
}
