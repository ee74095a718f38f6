package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	errs "github.com/usetaskchat/taskchat/internal/errors"
	"github.com/usetaskchat/taskchat/store"
	storetest "github.com/usetaskchat/taskchat/store/test"
)

func TestDeriveTitle(t *testing.T) {
	require.Equal(t, "buy milk", DeriveTitle("buy milk"))
	require.Equal(t, "buy milk", DeriveTitle("  buy\n  milk \t"))

	long := strings.Repeat("a", 250)
	title := DeriveTitle(long)
	require.Len(t, []rune(title), 200)
	require.True(t, strings.HasSuffix(title, "..."))

	exact := strings.Repeat("b", 200)
	require.Equal(t, exact, DeriveTitle(exact))
}

func newServiceWithUser(ctx context.Context, t *testing.T) (*Service, *store.User) {
	t.Helper()
	ts := storetest.NewTestingStore(ctx, t)
	user, err := ts.CreateUser(ctx, &store.User{
		Email:        "alice@example.com",
		Nickname:     "alice",
		PasswordHash: "hash",
		CreatedTs:    1000,
		UpdatedTs:    1000,
	})
	require.NoError(t, err)
	return NewService(ts), user
}

func TestCreateWithTurnAndFindOwned(t *testing.T) {
	ctx := context.Background()
	svc, user := newServiceWithUser(ctx, t)

	pending := svc.NewPending(user.ID, "remind me to water the plants")
	require.Zero(t, pending.ID)
	require.NotEmpty(t, pending.UID)
	require.Equal(t, "remind me to water the plants", pending.Title)

	turn := []*store.Message{
		NewMessage(store.MessageRoleUser, "remind me to water the plants", ""),
		NewMessage(store.MessageRoleAssistant, "Added a task.", ""),
	}
	created, err := svc.CreateWithTurn(ctx, pending, turn)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	found, err := svc.FindOwned(ctx, user.ID, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	// A different owner gets not-found, not forbidden.
	_, err = svc.FindOwned(ctx, user.ID+1, created.ID)
	require.True(t, errs.IsCode(err, errs.ErrCodeNotFound))

	_, err = svc.FindOwned(ctx, user.ID, created.ID+100)
	require.True(t, errs.IsCode(err, errs.ErrCodeNotFound))
}

func TestLoadRecentHistoryWindow(t *testing.T) {
	ctx := context.Background()
	svc, user := newServiceWithUser(ctx, t)

	pending := svc.NewPending(user.ID, "first")
	created, err := svc.CreateWithTurn(ctx, pending, []*store.Message{
		NewMessage(store.MessageRoleUser, "first", ""),
		NewMessage(store.MessageRoleAssistant, "reply 1", ""),
	})
	require.NoError(t, err)

	// Fewer messages than the window: everything comes back.
	history, err := svc.LoadRecentHistory(ctx, created.ID, DefaultHistoryLimit)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, store.MessageRoleUser, history[0].Role)

	// An unknown conversation yields an empty history, not an error.
	history, err = svc.LoadRecentHistory(ctx, created.ID+50, DefaultHistoryLimit)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestAppendTurnUnknownConversation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newServiceWithUser(ctx, t)

	err := svc.AppendTurn(ctx, 12345, []*store.Message{
		NewMessage(store.MessageRoleUser, "hello", ""),
		NewMessage(store.MessageRoleAssistant, "hi", ""),
	})
	require.True(t, errs.IsCode(err, errs.ErrCodeNotFound))
}

func TestDeleteConversationNotFoundForForeignOwner(t *testing.T) {
	ctx := context.Background()
	svc, user := newServiceWithUser(ctx, t)

	created, err := svc.CreateWithTurn(ctx, svc.NewPending(user.ID, "hello"), []*store.Message{
		NewMessage(store.MessageRoleUser, "hello", ""),
		NewMessage(store.MessageRoleAssistant, "hi", ""),
	})
	require.NoError(t, err)

	err = svc.DeleteConversation(ctx, user.ID+1, created.ID)
	require.True(t, errs.IsCode(err, errs.ErrCodeNotFound))

	err = svc.DeleteConversation(ctx, user.ID, created.ID)
	require.NoError(t, err)

	err = svc.DeleteConversation(ctx, user.ID, created.ID)
	require.True(t, errs.IsCode(err, errs.ErrCodeNotFound))
}
