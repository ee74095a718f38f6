package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	errs "github.com/usetaskchat/taskchat/internal/errors"
	"github.com/usetaskchat/taskchat/plugin/ai/agent"
	"github.com/usetaskchat/taskchat/server/internal/observability"
)

type chatRequest struct {
	ConversationID *int32 `json:"conversation_id"`
	Message        string `json:"message"`
}

type chatResponse struct {
	ConversationID    int32            `json:"conversation_id"`
	ConversationTitle string           `json:"conversation_title"`
	Created           bool             `json:"created"`
	Reply             string           `json:"reply"`
	ToolCalls         []toolCallRecord `json:"tool_calls,omitempty"`
}

type toolCallRecord struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Chat handles one synchronous chat turn.
func (s *APIV1Service) Chat(c echo.Context) error {
	ownerID, err := s.ownerID(c)
	if err != nil {
		return s.respondError(c, err)
	}
	if !s.chatLimiter.Allow(rateKey(ownerID)) {
		return s.respondError(c, errs.RateLimitExceeded("too many chat requests, slow down"))
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return s.respondError(c, errs.InvalidArgument("", "malformed request body"))
	}

	ctx := c.Request().Context()
	if err := s.chatSem.Acquire(ctx, 1); err != nil {
		return s.respondError(c, errs.UpstreamUnavailable("request canceled while waiting for capacity", err))
	}
	defer s.chatSem.Release(1)

	reqCtx := observability.NewRequestContext(s.logger, ownerID)
	ctx = observability.WithRequestContext(ctx, reqCtx)

	result, err := s.orchestrator.Chat(ctx, &agent.ChatRequest{
		OwnerID:        ownerID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		reqCtx.Error("chat turn failed", err,
			slog.String(observability.LogFieldErrorCode, string(errs.GetCodeFromError(err, "INTERNAL"))),
			slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
		return s.respondError(c, err)
	}

	reqCtx.Info("chat turn completed",
		slog.Int64(observability.LogFieldConversationID, int64(result.Conversation.ID)),
		slog.Int("tool_calls", len(result.ToolCalls)),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	return c.JSON(http.StatusOK, toChatResponse(result))
}

// ChatStream handles one chat turn, streaming the reply as server-sent
// events: "delta" events carry text fragments, a final "done" event carries
// the turn summary.
func (s *APIV1Service) ChatStream(c echo.Context) error {
	ownerID, err := s.ownerID(c)
	if err != nil {
		return s.respondError(c, err)
	}
	if !s.chatLimiter.Allow(rateKey(ownerID)) {
		return s.respondError(c, errs.RateLimitExceeded("too many chat requests, slow down"))
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return s.respondError(c, errs.InvalidArgument("", "malformed request body"))
	}

	ctx := c.Request().Context()
	if err := s.chatSem.Acquire(ctx, 1); err != nil {
		return s.respondError(c, errs.UpstreamUnavailable("request canceled while waiting for capacity", err))
	}
	defer s.chatSem.Release(1)

	reqCtx := observability.NewRequestContext(s.logger, ownerID)
	ctx = observability.WithRequestContext(ctx, reqCtx)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")

	headerSent := false
	onDelta := func(delta string) error {
		if !headerSent {
			resp.WriteHeader(http.StatusOK)
			headerSent = true
		}
		if err := writeSSE(resp, "delta", map[string]string{"text": delta}); err != nil {
			return err
		}
		resp.Flush()
		return nil
	}

	result, err := s.orchestrator.ChatStream(ctx, &agent.ChatRequest{
		OwnerID:        ownerID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
	}, onDelta)
	if err != nil {
		reqCtx.Error("chat stream failed", err,
			slog.String(observability.LogFieldErrorCode, string(errs.GetCodeFromError(err, "INTERNAL"))),
			slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
		if !headerSent {
			return s.respondError(c, err)
		}
		// Headers already on the wire; signal the failure in-band.
		_ = writeSSE(resp, "error", errorBody{
			Code:    string(errs.GetCodeFromError(err, "INTERNAL")),
			Message: "stream interrupted",
		})
		resp.Flush()
		return nil
	}

	if !headerSent {
		resp.WriteHeader(http.StatusOK)
	}
	if err := writeSSE(resp, "done", toChatResponse(result)); err != nil {
		return nil
	}
	resp.Flush()

	reqCtx.Info("chat stream completed",
		slog.Int64(observability.LogFieldConversationID, int64(result.Conversation.ID)),
		slog.Int("tool_calls", len(result.ToolCalls)),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	return nil
}

func toChatResponse(result *agent.ChatResult) *chatResponse {
	resp := &chatResponse{
		ConversationID:    result.Conversation.ID,
		ConversationTitle: result.Conversation.Title,
		Created:           result.Created,
		Reply:             result.Reply,
	}
	for _, record := range result.ToolCalls {
		rec := toolCallRecord{Name: record.Name}
		if record.Result != nil {
			rec.Success = record.Result.Success
			rec.Data = record.Result.Data
			rec.Error = record.Result.Error
		}
		resp.ToolCalls = append(resp.ToolCalls, rec)
	}
	return resp
}

func writeSSE(resp *echo.Response, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func rateKey(ownerID int32) string {
	return "chat:" + strconv.FormatInt(int64(ownerID), 10)
}
