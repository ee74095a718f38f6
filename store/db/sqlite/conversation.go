package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/usetaskchat/taskchat/store"
)

func (d *DB) CreateConversation(ctx context.Context, create *store.Conversation, firstTurn []*store.Message) (*store.Conversation, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin tx")
	}
	defer tx.Rollback()

	fields := []string{"uid", "creator_id", "title", "metadata", "created_ts", "updated_ts"}
	args := []any{create.UID, create.CreatorID, create.Title, create.Metadata, create.CreatedTs, create.UpdatedTs}
	stmt := `INSERT INTO conversation (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(args)) + `)`
	result, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get conversation id")
	}
	create.ID = int32(id)

	for _, msg := range firstTurn {
		msg.ConversationID = create.ID
		if err := insertMessage(ctx, tx, msg); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit tx")
	}
	return create, nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.CreatorID != nil {
		where, args = append(where, "creator_id = ?"), append(args, *find.CreatorID)
	}

	query := `SELECT id, uid, creator_id, title, metadata, created_ts, updated_ts FROM conversation WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY updated_ts DESC, id DESC`
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
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	defer rows.Close()

	list := make([]*store.Conversation, 0)
	for rows.Next() {
		c := &store.Conversation{}
		if err := rows.Scan(&c.ID, &c.UID, &c.CreatorID, &c.Title, &c.Metadata, &c.CreatedTs, &c.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation")
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate conversations")
	}
	return list, nil
}

func (d *DB) CountConversations(ctx context.Context, find *store.FindConversation) (int64, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.CreatorID != nil {
		where, args = append(where, "creator_id = ?"), append(args, *find.CreatorID)
	}
	var count int64
	query := `SELECT COUNT(*) FROM conversation WHERE ` + strings.Join(where, " AND ")
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count conversations")
	}
	return count, nil
}

func (d *DB) UpdateConversation(ctx context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	set, args := []string{}, []any{}
	if update.Title != nil {
		set, args = append(set, "title = ?"), append(args, *update.Title)
	}
	if update.Metadata != nil {
		set, args = append(set, "metadata = ?"), append(args, *update.Metadata)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = ?"), append(args, *update.UpdatedTs)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE conversation SET ` + strings.Join(set, ", ") + ` WHERE id = ?`
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update conversation")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, store.ErrNotFound
	}

	c := &store.Conversation{}
	query := `SELECT id, uid, creator_id, title, metadata, created_ts, updated_ts FROM conversation WHERE id = ?`
	if err := d.db.QueryRowContext(ctx, query, update.ID).Scan(&c.ID, &c.UID, &c.CreatorID, &c.Title, &c.Metadata, &c.CreatedTs, &c.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to read conversation back")
	}
	return c, nil
}

func (d *DB) DeleteConversation(ctx context.Context, delete *store.DeleteConversation) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin tx")
	}
	defer tx.Rollback()

	// Creator scope in the WHERE clause keeps absence and foreign ownership
	// indistinguishable.
	result, err := tx.ExecContext(ctx, `DELETE FROM conversation WHERE id = ? AND creator_id = ?`, delete.ID, delete.CreatorID)
	if err != nil {
		return errors.Wrap(err, "failed to delete conversation")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM message WHERE conversation_id = ?`, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete messages")
	}

	return tx.Commit()
}

func (d *DB) AppendMessages(ctx context.Context, conversationID int32, msgs []*store.Message) ([]*store.Message, error) {
	if len(msgs) == 0 {
		return msgs, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin tx")
	}
	defer tx.Rollback()

	updatedTs := msgs[len(msgs)-1].CreatedTs
	result, err := tx.ExecContext(ctx, `UPDATE conversation SET updated_ts = ? WHERE id = ?`, updatedTs, conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to bump conversation timestamp")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, store.ErrNotFound
	}

	for _, msg := range msgs {
		msg.ConversationID = conversationID
		if err := insertMessage(ctx, tx, msg); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit tx")
	}
	return msgs, nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, msg *store.Message) error {
	fields := []string{"uid", "conversation_id", "role", "content", "tool_calls", "created_ts"}
	args := []any{msg.UID, msg.ConversationID, string(msg.Role), msg.Content, msg.ToolCalls, msg.CreatedTs}
	stmt := `INSERT INTO message (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(args)) + `)`
	result, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return errors.Wrap(err, "failed to create message")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to get message id")
	}
	msg.ID = int32(id)
	return nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.ConversationID != nil {
		where, args = append(where, "conversation_id = ?"), append(args, *find.ConversationID)
	}

	// A bounded read selects the newest window; the store facade restores
	// chronological order.
	order := ` ORDER BY created_ts ASC, id ASC`
	if find.Limit != nil {
		order = ` ORDER BY created_ts DESC, id DESC LIMIT ?`
	}
	query := `SELECT id, uid, conversation_id, role, content, tool_calls, created_ts FROM message WHERE ` +
		strings.Join(where, " AND ") + order
	if find.Limit != nil {
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	defer rows.Close()

	list := make([]*store.Message, 0)
	for rows.Next() {
		m := &store.Message{}
		var role string
		if err := rows.Scan(&m.ID, &m.UID, &m.ConversationID, &role, &m.Content, &m.ToolCalls, &m.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan message")
		}
		m.Role = store.MessageRole(role)
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate messages")
	}
	return list, nil
}
