// Package v1 exposes the HTTP API: authentication, chat, conversation and
// task endpoints. Handlers translate between the wire and the services; all
// business rules live below them.
package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	errs "github.com/usetaskchat/taskchat/internal/errors"
	"github.com/usetaskchat/taskchat/internal/profile"
	"github.com/usetaskchat/taskchat/plugin/ai/agent"
	"github.com/usetaskchat/taskchat/server/auth"
	"github.com/usetaskchat/taskchat/server/middleware"
	"github.com/usetaskchat/taskchat/server/service/conversation"
	"github.com/usetaskchat/taskchat/store"
)

// maxConcurrentChats bounds in-flight model calls across all users. Requests
// beyond the bound wait rather than fail.
const maxConcurrentChats = 32

// APIV1Service wires the v1 routes to the underlying services.
type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store

	conversations *conversation.Service
	orchestrator  *agent.Orchestrator
	chatLimiter   *middleware.RateLimiter
	chatSem       *semaphore.Weighted
	logger        *slog.Logger
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(p *profile.Profile, st *store.Store, conversations *conversation.Service, orchestrator *agent.Orchestrator, logger *slog.Logger) *APIV1Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIV1Service{
		Profile:       p,
		Store:         st,
		conversations: conversations,
		orchestrator:  orchestrator,
		chatLimiter:   middleware.NewRateLimiter(p.ChatRateLimit),
		chatSem:       semaphore.NewWeighted(maxConcurrentChats),
		logger:        logger,
	}
}

// RegisterRoutes registers all v1 routes on the echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", s.Healthz)

	apiV1 := e.Group("/api/v1")
	apiV1.POST("/auth/signup", s.SignUp)
	apiV1.POST("/auth/signin", s.SignIn)

	protected := apiV1.Group("", auth.Middleware(s.Profile.Secret))
	protected.POST("/chat", s.Chat)
	protected.POST("/chat/stream", s.ChatStream)

	protected.GET("/conversations", s.ListConversations)
	protected.GET("/conversations/:id", s.GetConversation)
	protected.DELETE("/conversations/:id", s.DeleteConversation)

	protected.GET("/tasks", s.ListTasks)
	protected.GET("/tasks/stats", s.TaskStats)
	protected.POST("/tasks", s.CreateTask)
	protected.GET("/tasks/:id", s.GetTask)
	protected.PATCH("/tasks/:id", s.UpdateTask)
	protected.DELETE("/tasks/:id", s.DeleteTask)
}

// Healthz reports liveness.
func (s *APIV1Service) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.Profile.Version,
	})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// respondError maps the typed error taxonomy to HTTP. Storage and unknown
// errors stay generic on the wire; full details go to the server log only.
func (s *APIV1Service) respondError(c echo.Context, err error) error {
	var httpErr *echo.HTTPError
	if chatErr, ok := err.(*errs.ChatError); ok {
		body := errorBody{Code: string(chatErr.Code), Message: chatErr.Message}
		if field, ok := chatErr.Context["field"].(string); ok {
			body.Field = field
		}
		switch chatErr.Code {
		case errs.ErrCodeInvalidArgument:
			return c.JSON(http.StatusBadRequest, body)
		case errs.ErrCodeUnauthorized:
			return c.JSON(http.StatusUnauthorized, body)
		case errs.ErrCodeNotFound:
			return c.JSON(http.StatusNotFound, body)
		case errs.ErrCodeRateLimitExceeded:
			return c.JSON(http.StatusTooManyRequests, body)
		case errs.ErrCodeUpstreamUnavailable:
			return c.JSON(http.StatusServiceUnavailable, body)
		case errs.ErrCodeUpstreamRejected:
			return c.JSON(http.StatusBadGateway, body)
		case errs.ErrCodeStorageError:
			s.logger.Error("storage failure", slog.String("error", err.Error()))
			return c.JSON(http.StatusInternalServerError, errorBody{
				Code:    string(errs.ErrCodeStorageError),
				Message: "internal storage error",
			})
		}
	}
	if errors.As(err, &httpErr) {
		return err
	}
	s.logger.Error("unhandled error", slog.String("error", err.Error()))
	return c.JSON(http.StatusInternalServerError, errorBody{
		Code:    "INTERNAL",
		Message: "internal server error",
	})
}

// ownerID extracts the authenticated user id or fails the request.
func (s *APIV1Service) ownerID(c echo.Context) (int32, error) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return 0, errs.Unauthorized("missing authentication")
	}
	return userID, nil
}
