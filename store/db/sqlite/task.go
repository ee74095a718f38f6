package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/usetaskchat/taskchat/store"
)

func (d *DB) CreateTask(ctx context.Context, create *store.Task) (*store.Task, error) {
	fields := []string{"creator_id", "title", "description", "completed", "due_ts", "created_ts", "updated_ts"}
	args := []any{create.CreatorID, create.Title, create.Description, create.Completed, create.DueTs, create.CreatedTs, create.UpdatedTs}
	stmt := `INSERT INTO task (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(args)) + `)`
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create task")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get task id")
	}
	create.ID = int32(id)
	return create, nil
}

func taskFilter(find *store.FindTask) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.CreatorID != nil {
		where, args = append(where, "creator_id = ?"), append(args, *find.CreatorID)
	}
	if find.Completed != nil {
		where, args = append(where, "completed = ?"), append(args, *find.Completed)
	}
	return where, args
}

func (d *DB) ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error) {
	where, args := taskFilter(find)

	query := `SELECT id, creator_id, title, description, completed, due_ts, created_ts, updated_ts FROM task WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_ts DESC, id DESC`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += " OFFSET ?"
			args = append(args, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tasks")
	}
	defer rows.Close()

	list := make([]*store.Task, 0)
	for rows.Next() {
		t := &store.Task{}
		if err := rows.Scan(&t.ID, &t.CreatorID, &t.Title, &t.Description, &t.Completed, &t.DueTs, &t.CreatedTs, &t.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan task")
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate tasks")
	}
	return list, nil
}

func (d *DB) CountTasks(ctx context.Context, find *store.FindTask) (int64, error) {
	where, args := taskFilter(find)
	var count int64
	query := `SELECT COUNT(*) FROM task WHERE ` + strings.Join(where, " AND ")
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count tasks")
	}
	return count, nil
}

func (d *DB) UpdateTask(ctx context.Context, update *store.UpdateTask) (*store.Task, error) {
	set, args := []string{}, []any{}
	if update.Title != nil {
		set, args = append(set, "title = ?"), append(args, *update.Title)
	}
	if update.Description != nil {
		set, args = append(set, "description = ?"), append(args, *update.Description)
	}
	if update.Completed != nil {
		set, args = append(set, "completed = ?"), append(args, *update.Completed)
	}
	if update.DueTs != nil {
		// A nil inner pointer clears the due date.
		set, args = append(set, "due_ts = ?"), append(args, *update.DueTs)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = ?"), append(args, *update.UpdatedTs)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	args = append(args, update.ID, update.CreatorID)
	stmt := `UPDATE task SET ` + strings.Join(set, ", ") + ` WHERE id = ? AND creator_id = ?`
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update task")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, store.ErrNotFound
	}

	t := &store.Task{}
	query := `SELECT id, creator_id, title, description, completed, due_ts, created_ts, updated_ts FROM task WHERE id = ?`
	if err := d.db.QueryRowContext(ctx, query, update.ID).Scan(&t.ID, &t.CreatorID, &t.Title, &t.Description, &t.Completed, &t.DueTs, &t.CreatedTs, &t.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to read task back")
	}
	return t, nil
}

func (d *DB) DeleteTask(ctx context.Context, delete *store.DeleteTask) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM task WHERE id = ? AND creator_id = ?`, delete.ID, delete.CreatorID)
	if err != nil {
		return errors.Wrap(err, "failed to delete task")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}
