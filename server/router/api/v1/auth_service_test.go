package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/usetaskchat/taskchat/internal/profile"
	"github.com/usetaskchat/taskchat/server/auth"
	"github.com/usetaskchat/taskchat/server/service/conversation"
	storetest "github.com/usetaskchat/taskchat/store/test"
)

func newTestAPI(ctx context.Context, t *testing.T) (*echo.Echo, *APIV1Service) {
	t.Helper()
	p := &profile.Profile{
		Mode:          "dev",
		Driver:        "sqlite",
		Secret:        "test-secret",
		ChatRateLimit: 30,
		HistoryLimit:  20,
	}
	ts := storetest.NewTestingStore(ctx, t)
	svc := NewAPIV1Service(p, ts, conversation.NewService(ts), nil, nil)

	e := echo.New()
	svc.RegisterRoutes(e)
	return e, svc
}

func doJSON(e *echo.Echo, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = strings.NewReader(string(payload))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func signUpTestUser(t *testing.T, e *echo.Echo, email string) string {
	t.Helper()
	rec := doJSON(e, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    email,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestSignUpAndSignIn(t *testing.T) {
	e, svc := newTestAPI(context.Background(), t)

	token := signUpTestUser(t, e, "alice@example.com")
	userID, err := auth.ParseAccessToken(token, svc.Profile.Secret)
	require.NoError(t, err)
	require.NotZero(t, userID)

	// Duplicate email is rejected.
	rec := doJSON(e, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    "alice@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{
		"email":    "alice@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Wrong password and unknown email read identically.
	rec = doJSON(e, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignUpValidation(t *testing.T) {
	e, _ := newTestAPI(context.Background(), t)

	rec := doJSON(e, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    "not-an-email",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    "alice@example.com",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e, _ := newTestAPI(context.Background(), t)

	rec := doJSON(e, http.MethodGet, "/api/v1/tasks", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/v1/tasks", "bogus-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
