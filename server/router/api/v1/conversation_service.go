package v1

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	errs "github.com/usetaskchat/taskchat/internal/errors"
	"github.com/usetaskchat/taskchat/plugin/ai/agent"
	"github.com/usetaskchat/taskchat/store"
)

type conversationPayload struct {
	ID        int32  `json:"id"`
	UID       string `json:"uid"`
	Title     string `json:"title"`
	CreatedTs int64  `json:"created_ts"`
	UpdatedTs int64  `json:"updated_ts"`
}

type messagePayload struct {
	ID        int32                  `json:"id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	ToolCalls []agent.ToolCallRecord `json:"tool_calls,omitempty"`
	CreatedTs int64                  `json:"created_ts"`
}

type conversationListResponse struct {
	Conversations []*conversationPayload `json:"conversations"`
	Total         int64                  `json:"total"`
}

type conversationDetailResponse struct {
	Conversation *conversationPayload `json:"conversation"`
	Messages     []*messagePayload    `json:"messages"`
}

// ListConversations returns the caller's conversations, most recently updated
// first.
func (s *APIV1Service) ListConversations(c echo.Context) error {
	ownerID, err := s.ownerID(c)
	if err != nil {
		return s.respondError(c, err)
	}
	limit, offset := paginationParams(c)

	list, total, err := s.conversations.ListConversations(c.Request().Context(), ownerID, limit, offset)
	if err != nil {
		return s.respondError(c, err)
	}

	payloads := make([]*conversationPayload, 0, len(list))
	for _, conv := range list {
		payloads = append(payloads, toConversationPayload(conv))
	}
	return c.JSON(http.StatusOK, &conversationListResponse{Conversations: payloads, Total: total})
}

// GetConversation returns one conversation with its full message log.
func (s *APIV1Service) GetConversation(c echo.Context) error {
	ownerID, err := s.ownerID(c)
	if err != nil {
		return s.respondError(c, err)
	}
	conversationID, err := pathID(c)
	if err != nil {
		return s.respondError(c, err)
	}

	conv, msgs, err := s.conversations.ListMessages(c.Request().Context(), ownerID, conversationID)
	if err != nil {
		return s.respondError(c, err)
	}

	payloads := make([]*messagePayload, 0, len(msgs))
	for _, msg := range msgs {
		payloads = append(payloads, toMessagePayload(msg))
	}
	return c.JSON(http.StatusOK, &conversationDetailResponse{
		Conversation: toConversationPayload(conv),
		Messages:     payloads,
	})
}

// DeleteConversation removes a conversation and its messages.
func (s *APIV1Service) DeleteConversation(c echo.Context) error {
	ownerID, err := s.ownerID(c)
	if err != nil {
		return s.respondError(c, err)
	}
	conversationID, err := pathID(c)
	if err != nil {
		return s.respondError(c, err)
	}

	if err := s.conversations.DeleteConversation(c.Request().Context(), ownerID, conversationID); err != nil {
		return s.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func toConversationPayload(conv *store.Conversation) *conversationPayload {
	return &conversationPayload{
		ID:        conv.ID,
		UID:       conv.UID,
		Title:     conv.Title,
		CreatedTs: conv.CreatedTs,
		UpdatedTs: conv.UpdatedTs,
	}
}

func toMessagePayload(msg *store.Message) *messagePayload {
	payload := &messagePayload{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		CreatedTs: msg.CreatedTs,
	}
	if msg.ToolCalls != "" {
		// Tolerate unparseable records from older rows; the text content
		// still renders.
		_ = json.Unmarshal([]byte(msg.ToolCalls), &payload.ToolCalls)
	}
	return payload
}

func pathID(c echo.Context) (int32, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, errs.InvalidArgument("id", "must be a positive integer")
	}
	return int32(id), nil
}

func paginationParams(c echo.Context) (limit, offset int) {
	limit = 50
	offset = 0
	if raw := c.QueryParam("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
