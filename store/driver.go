package store

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by drivers when an operation targets a row that
// does not exist or is not visible under the given creator scope. Callers
// translate it into the API-level not-found code.
var ErrNotFound = errors.New("not found")

// Driver is an interface for store driver.
type Driver interface {
	Close() error

	// Migrate applies the schema. Safe to call on every start.
	Migrate(ctx context.Context) error

	// CreateConversation persists a conversation together with its first
	// turn in one transaction. A conversation with zero messages must never
	// become visible.
	CreateConversation(ctx context.Context, create *Conversation, firstTurn []*Message) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	CountConversations(ctx context.Context, find *FindConversation) (int64, error)
	UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error)
	DeleteConversation(ctx context.Context, delete *DeleteConversation) error

	// AppendMessages inserts messages and bumps the parent conversation's
	// updated timestamp in the same transaction. Returns ErrNotFound when
	// the conversation does not exist.
	AppendMessages(ctx context.Context, conversationID int32, msgs []*Message) ([]*Message, error)
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)

	CreateTask(ctx context.Context, create *Task) (*Task, error)
	ListTasks(ctx context.Context, find *FindTask) ([]*Task, error)
	CountTasks(ctx context.Context, find *FindTask) (int64, error)
	UpdateTask(ctx context.Context, update *UpdateTask) (*Task, error)
	DeleteTask(ctx context.Context, delete *DeleteTask) error

	CreateUser(ctx context.Context, create *User) (*User, error)
	GetUser(ctx context.Context, find *FindUser) (*User, error)
	DeleteUser(ctx context.Context, delete *DeleteUser) error
}
