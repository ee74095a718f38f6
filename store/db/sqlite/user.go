package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/usetaskchat/taskchat/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	fields := []string{"email", "nickname", "password_hash", "created_ts", "updated_ts"}
	args := []any{create.Email, create.Nickname, create.PasswordHash, create.CreatedTs, create.UpdatedTs}
	stmt := `INSERT INTO "user" (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(args)) + `)`
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user id")
	}
	create.ID = int32(id)
	return create, nil
}

func (d *DB) GetUser(ctx context.Context, find *store.FindUser) (*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.Email != nil {
		where, args = append(where, "email = ?"), append(args, *find.Email)
	}

	u := &store.User{}
	query := `SELECT id, email, nickname, password_hash, created_ts, updated_ts FROM "user" WHERE ` + strings.Join(where, " AND ")
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Email, &u.Nickname, &u.PasswordHash, &u.CreatedTs, &u.UpdatedTs); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get user")
	}
	return u, nil
}

func (d *DB) DeleteUser(ctx context.Context, delete *store.DeleteUser) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM message WHERE conversation_id IN (SELECT id FROM conversation WHERE creator_id = ?)`, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete messages")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation WHERE creator_id = ?`, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete conversations")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task WHERE creator_id = ?`, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete tasks")
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM "user" WHERE id = ?`, delete.ID)
	if err != nil {
		return errors.Wrap(err, "failed to delete user")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}
