package test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/usetaskchat/taskchat/store"
)

func createTestUser(ctx context.Context, t *testing.T, ts *store.Store, email string) *store.User {
	t.Helper()
	user, err := ts.CreateUser(ctx, &store.User{
		Email:        email,
		Nickname:     "tester",
		PasswordHash: "not-a-real-hash",
		CreatedTs:    1000,
		UpdatedTs:    1000,
	})
	require.NoError(t, err)
	return user
}

func newTurn(userContent, assistantContent string, ts int64) []*store.Message {
	return []*store.Message{
		{UID: fmt.Sprintf("u-%d", ts), Role: store.MessageRoleUser, Content: userContent, CreatedTs: ts},
		{UID: fmt.Sprintf("a-%d", ts), Role: store.MessageRoleAssistant, Content: assistantContent, CreatedTs: ts},
	}
}

func TestCreateConversationWithFirstTurn(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	user := createTestUser(ctx, t, ts, "alice@example.com")

	conv, err := ts.CreateConversation(ctx, &store.Conversation{
		UID:       "conv-1",
		CreatorID: user.ID,
		Title:     "Groceries",
		Metadata:  "{}",
		CreatedTs: 2000,
		UpdatedTs: 2000,
	}, newTurn("add milk to my list", "Added a task: buy milk.", 2000))
	require.NoError(t, err)
	require.NotZero(t, conv.ID)

	msgs, err := ts.ListMessages(ctx, &store.FindMessage{ConversationID: &conv.ID})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, store.MessageRoleUser, msgs[0].Role)
	require.Equal(t, store.MessageRoleAssistant, msgs[1].Role)
	require.Equal(t, conv.ID, msgs[0].ConversationID)
}

func TestAppendMessagesBumpsUpdatedTs(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	user := createTestUser(ctx, t, ts, "alice@example.com")

	conv, err := ts.CreateConversation(ctx, &store.Conversation{
		UID: "conv-1", CreatorID: user.ID, Title: "t", Metadata: "{}", CreatedTs: 2000, UpdatedTs: 2000,
	}, newTurn("hello", "hi", 2000))
	require.NoError(t, err)

	_, err = ts.AppendMessages(ctx, conv.ID, newTurn("second", "reply", 3000))
	require.NoError(t, err)

	list, err := ts.ListConversations(ctx, &store.FindConversation{ID: &conv.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Greater(t, list[0].UpdatedTs, int64(2000))
}

func TestAppendMessagesUnknownConversation(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	missing := int32(999)
	_, err := ts.AppendMessages(ctx, missing, newTurn("hello", "hi", 2000))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListMessagesWindowIsChronological(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	user := createTestUser(ctx, t, ts, "alice@example.com")

	conv, err := ts.CreateConversation(ctx, &store.Conversation{
		UID: "conv-1", CreatorID: user.ID, Title: "t", Metadata: "{}", CreatedTs: 2000, UpdatedTs: 2000,
	}, newTurn("m1", "r1", 2000))
	require.NoError(t, err)

	for i := 2; i <= 5; i++ {
		_, err = ts.AppendMessages(ctx, conv.ID, newTurn(
			fmt.Sprintf("m%d", i), fmt.Sprintf("r%d", i), int64(2000+i*10)))
		require.NoError(t, err)
	}

	// 10 messages total; a window of 4 must hold the newest four in
	// chronological order.
	limit := 4
	msgs, err := ts.ListMessages(ctx, &store.FindMessage{ConversationID: &conv.ID, Limit: &limit})
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	require.Equal(t, "m4", msgs[0].Content)
	require.Equal(t, "r4", msgs[1].Content)
	require.Equal(t, "m5", msgs[2].Content)
	require.Equal(t, "r5", msgs[3].Content)

	// A window larger than the log returns everything.
	limit = 50
	msgs, err = ts.ListMessages(ctx, &store.FindMessage{ConversationID: &conv.ID, Limit: &limit})
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	require.Equal(t, "m1", msgs[0].Content)
}

func TestDeleteConversationOwnerScoped(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	alice := createTestUser(ctx, t, ts, "alice@example.com")
	bob := createTestUser(ctx, t, ts, "bob@example.com")

	conv, err := ts.CreateConversation(ctx, &store.Conversation{
		UID: "conv-1", CreatorID: alice.ID, Title: "t", Metadata: "{}", CreatedTs: 2000, UpdatedTs: 2000,
	}, newTurn("hello", "hi", 2000))
	require.NoError(t, err)

	// Bob cannot delete Alice's conversation; the failure looks identical
	// to deleting a conversation that does not exist.
	err = ts.DeleteConversation(ctx, &store.DeleteConversation{ID: conv.ID, CreatorID: bob.ID})
	require.ErrorIs(t, err, store.ErrNotFound)

	err = ts.DeleteConversation(ctx, &store.DeleteConversation{ID: conv.ID, CreatorID: alice.ID})
	require.NoError(t, err)

	msgs, err := ts.ListMessages(ctx, &store.FindMessage{ConversationID: &conv.ID})
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestListConversationsOrderedByUpdated(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	user := createTestUser(ctx, t, ts, "alice@example.com")

	first, err := ts.CreateConversation(ctx, &store.Conversation{
		UID: "conv-1", CreatorID: user.ID, Title: "first", Metadata: "{}", CreatedTs: 2000, UpdatedTs: 2000,
	}, newTurn("a", "b", 2000))
	require.NoError(t, err)
	_, err = ts.CreateConversation(ctx, &store.Conversation{
		UID: "conv-2", CreatorID: user.ID, Title: "second", Metadata: "{}", CreatedTs: 3000, UpdatedTs: 3000,
	}, newTurn("c", "d", 3000))
	require.NoError(t, err)

	// Touching the first conversation moves it back to the front.
	_, err = ts.AppendMessages(ctx, first.ID, newTurn("e", "f", 4000))
	require.NoError(t, err)

	list, err := ts.ListConversations(ctx, &store.FindConversation{CreatorID: &user.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "first", list[0].Title)

	total, err := ts.CountConversations(ctx, &store.FindConversation{CreatorID: &user.ID})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
}
