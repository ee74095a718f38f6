package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/usetaskchat/taskchat/store"
)

func TestTaskCRUDOwnerScoped(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	alice := createTestUser(ctx, t, ts, "alice@example.com")
	bob := createTestUser(ctx, t, ts, "bob@example.com")

	task, err := ts.CreateTask(ctx, &store.Task{
		CreatorID:   alice.ID,
		Title:       "buy milk",
		Description: "oat milk",
		CreatedTs:   1000,
		UpdatedTs:   1000,
	})
	require.NoError(t, err)
	require.NotZero(t, task.ID)

	// Bob cannot see, update or delete Alice's task.
	got, err := ts.GetTask(ctx, &store.FindTask{ID: &task.ID, CreatorID: &bob.ID})
	require.NoError(t, err)
	require.Nil(t, got)

	title := "hijacked"
	_, err = ts.UpdateTask(ctx, &store.UpdateTask{ID: task.ID, CreatorID: bob.ID, Title: &title})
	require.ErrorIs(t, err, store.ErrNotFound)

	err = ts.DeleteTask(ctx, &store.DeleteTask{ID: task.ID, CreatorID: bob.ID})
	require.ErrorIs(t, err, store.ErrNotFound)

	// Alice can.
	completed := true
	updated, err := ts.UpdateTask(ctx, &store.UpdateTask{ID: task.ID, CreatorID: alice.ID, Completed: &completed})
	require.NoError(t, err)
	require.True(t, updated.Completed)
	require.Equal(t, "buy milk", updated.Title)

	err = ts.DeleteTask(ctx, &store.DeleteTask{ID: task.ID, CreatorID: alice.ID})
	require.NoError(t, err)

	got, err = ts.GetTask(ctx, &store.FindTask{ID: &task.ID, CreatorID: &alice.ID})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestTaskDueDateClearing(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	user := createTestUser(ctx, t, ts, "alice@example.com")

	due := int64(1700000000)
	task, err := ts.CreateTask(ctx, &store.Task{
		CreatorID: user.ID,
		Title:     "renew passport",
		DueTs:     &due,
		CreatedTs: 1000,
		UpdatedTs: 1000,
	})
	require.NoError(t, err)
	require.NotNil(t, task.DueTs)

	// An update that does not mention the due date leaves it alone.
	title := "renew passport soon"
	updated, err := ts.UpdateTask(ctx, &store.UpdateTask{ID: task.ID, CreatorID: user.ID, Title: &title})
	require.NoError(t, err)
	require.NotNil(t, updated.DueTs)
	require.Equal(t, due, *updated.DueTs)

	// An explicit nil clears it.
	var cleared *int64
	updated, err = ts.UpdateTask(ctx, &store.UpdateTask{ID: task.ID, CreatorID: user.ID, DueTs: &cleared})
	require.NoError(t, err)
	require.Nil(t, updated.DueTs)
}

func TestListTasksByStatus(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	user := createTestUser(ctx, t, ts, "alice@example.com")

	for i, completed := range []bool{false, false, false, true, true} {
		_, err := ts.CreateTask(ctx, &store.Task{
			CreatorID: user.ID,
			Title:     "task",
			Completed: completed,
			CreatedTs: int64(1000 + i),
			UpdatedTs: int64(1000 + i),
		})
		require.NoError(t, err)
	}

	incomplete := false
	list, err := ts.ListTasks(ctx, &store.FindTask{CreatorID: &user.ID, Completed: &incomplete})
	require.NoError(t, err)
	require.Len(t, list, 3)

	count, err := ts.CountTasks(ctx, &store.FindTask{CreatorID: &user.ID, Completed: &incomplete})
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	all, err := ts.ListTasks(ctx, &store.FindTask{CreatorID: &user.ID})
	require.NoError(t, err)
	require.Len(t, all, 5)

	limit, offset := 2, 2
	page, err := ts.ListTasks(ctx, &store.FindTask{CreatorID: &user.ID, Limit: &limit, Offset: &offset})
	require.NoError(t, err)
	require.Len(t, page, 2)
}
