// Package conversation owns conversation persistence: titled, owned
// containers of append-only messages, with history retrieval bounded to the
// most recent window.
package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	errs "github.com/usetaskchat/taskchat/internal/errors"
	"github.com/usetaskchat/taskchat/store"
)

const (
	// maxTitleLength bounds conversation titles derived from the first
	// message.
	maxTitleLength = 200
	// DefaultHistoryLimit is the bounded context window supplied to the
	// model. Enforced here, not left to caller discipline.
	DefaultHistoryLimit = 20
)

// Service handles conversation persistence.
type Service struct {
	store *store.Store
}

// NewService creates a new conversation service.
func NewService(store *store.Store) *Service {
	return &Service{store: store}
}

// DeriveTitle derives a conversation title from the seed message, truncating
// to the bounded length with an ellipsis marker when longer.
func DeriveTitle(seed string) string {
	title := strings.Join(strings.Fields(seed), " ")
	runes := []rune(title)
	if len(runes) <= maxTitleLength {
		return title
	}
	return string(runes[:maxTitleLength-3]) + "..."
}

// NewPending builds a conversation seeded from the first message without
// persisting it. The caller persists it together with the first turn, so a
// zero-message conversation is never observable.
func (s *Service) NewPending(ownerID int32, seed string) *store.Conversation {
	now := time.Now().Unix()
	return &store.Conversation{
		UID:       shortuuid.New(),
		CreatorID: ownerID,
		Title:     DeriveTitle(seed),
		Metadata:  "{}",
		CreatedTs: now,
		UpdatedTs: now,
	}
}

// NewMessage builds an unpersisted message.
func NewMessage(role store.MessageRole, content, toolCalls string) *store.Message {
	return &store.Message{
		UID:       shortuuid.New(),
		Role:      role,
		Content:   content,
		ToolCalls: toolCalls,
		CreatedTs: time.Now().Unix(),
	}
}

// CreateWithTurn persists a pending conversation together with its first turn
// in one transaction.
func (s *Service) CreateWithTurn(ctx context.Context, conv *store.Conversation, turn []*store.Message) (*store.Conversation, error) {
	created, err := s.store.CreateConversation(ctx, conv, turn)
	if err != nil {
		return nil, errs.StorageError("failed to create conversation", err)
	}
	return created, nil
}

// FindOwned loads a conversation by id scoped to the owner. Absence and
// foreign ownership both surface as not-found.
func (s *Service) FindOwned(ctx context.Context, ownerID, conversationID int32) (*store.Conversation, error) {
	list, err := s.store.ListConversations(ctx, &store.FindConversation{
		ID:        &conversationID,
		CreatorID: &ownerID,
	})
	if err != nil {
		return nil, errs.StorageError("failed to load conversation", err)
	}
	if len(list) == 0 {
		return nil, errs.NotFound("conversation not found")
	}
	return list[0], nil
}

// AppendMessage appends a single message and bumps the conversation's updated
// timestamp atomically.
func (s *Service) AppendMessage(ctx context.Context, conversationID int32, role store.MessageRole, content, toolCalls string) (*store.Message, error) {
	msg := NewMessage(role, content, toolCalls)
	if _, err := s.store.AppendMessages(ctx, conversationID, []*store.Message{msg}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.NotFound("conversation not found")
		}
		return nil, errs.StorageError("failed to append message", err)
	}
	return msg, nil
}

// AppendTurn appends one logical turn (user message plus assistant message)
// in a single transaction.
func (s *Service) AppendTurn(ctx context.Context, conversationID int32, turn []*store.Message) error {
	if _, err := s.store.AppendMessages(ctx, conversationID, turn); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.NotFound("conversation not found")
		}
		return errs.StorageError("failed to append turn", err)
	}
	return nil
}

// LoadRecentHistory returns the most recent limit messages in chronological
// order. Unknown or empty conversations yield an empty slice, not an error.
func (s *Service) LoadRecentHistory(ctx context.Context, conversationID int32, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	list, err := s.store.ListMessages(ctx, &store.FindMessage{
		ConversationID: &conversationID,
		Limit:          &limit,
	})
	if err != nil {
		return nil, errs.StorageError("failed to load history", err)
	}
	return list, nil
}

// ListConversations returns the owner's conversations ordered by most
// recently updated first, plus the total count for pagination.
func (s *Service) ListConversations(ctx context.Context, ownerID int32, limit, offset int) ([]*store.Conversation, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	find := &store.FindConversation{
		CreatorID: &ownerID,
		Limit:     &limit,
		Offset:    &offset,
	}
	list, err := s.store.ListConversations(ctx, find)
	if err != nil {
		return nil, 0, errs.StorageError("failed to list conversations", err)
	}
	total, err := s.store.CountConversations(ctx, &store.FindConversation{CreatorID: &ownerID})
	if err != nil {
		return nil, 0, errs.StorageError("failed to count conversations", err)
	}
	return list, total, nil
}

// ListMessages returns the full message log in chronological order, owner
// checked.
func (s *Service) ListMessages(ctx context.Context, ownerID, conversationID int32) (*store.Conversation, []*store.Message, error) {
	conv, err := s.FindOwned(ctx, ownerID, conversationID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.store.ListMessages(ctx, &store.FindMessage{ConversationID: &conversationID})
	if err != nil {
		return nil, nil, errs.StorageError("failed to list messages", err)
	}
	return conv, msgs, nil
}

// DeleteConversation deletes an owned conversation and cascades its messages.
// Absence and foreign ownership both surface as not-found.
func (s *Service) DeleteConversation(ctx context.Context, ownerID, conversationID int32) error {
	err := s.store.DeleteConversation(ctx, &store.DeleteConversation{
		ID:        conversationID,
		CreatorID: ownerID,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.NotFound("conversation not found")
		}
		return errs.StorageError("failed to delete conversation", err)
	}
	return nil
}
