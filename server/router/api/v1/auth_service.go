package v1

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	errs "github.com/usetaskchat/taskchat/internal/errors"
	"github.com/usetaskchat/taskchat/server/auth"
	"github.com/usetaskchat/taskchat/store"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string       `json:"access_token"`
	User        *userPayload `json:"user"`
}

type userPayload struct {
	ID       int32  `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// SignUp creates a user account and returns an access token.
func (s *APIV1Service) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return s.respondError(c, errs.InvalidArgument("", "malformed request body"))
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return s.respondError(c, errs.InvalidArgument("email", "must be a valid email address"))
	}
	if len(req.Password) < 8 {
		return s.respondError(c, errs.InvalidArgument("password", "must be at least 8 characters"))
	}
	nickname := strings.TrimSpace(req.Nickname)
	if nickname == "" {
		nickname = strings.SplitN(email, "@", 2)[0]
	}

	existing, err := s.Store.GetUser(c.Request().Context(), &store.FindUser{Email: &email})
	if err != nil {
		return s.respondError(c, errs.StorageError("failed to look up user", err))
	}
	if existing != nil {
		return s.respondError(c, errs.InvalidArgument("email", "already registered"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return s.respondError(c, errs.StorageError("failed to hash password", err))
	}

	now := time.Now().Unix()
	user, err := s.Store.CreateUser(c.Request().Context(), &store.User{
		Email:        email,
		Nickname:     nickname,
		PasswordHash: string(hash),
		CreatedTs:    now,
		UpdatedTs:    now,
	})
	if err != nil {
		return s.respondError(c, errs.StorageError("failed to create user", err))
	}

	token, err := auth.GenerateAccessToken(user.ID, s.Profile.Secret)
	if err != nil {
		return s.respondError(c, errs.StorageError("failed to issue token", err))
	}
	return c.JSON(http.StatusCreated, &authResponse{
		AccessToken: token,
		User:        &userPayload{ID: user.ID, Email: user.Email, Nickname: user.Nickname},
	})
}

// SignIn verifies credentials and returns an access token. Wrong email and
// wrong password produce the same response.
func (s *APIV1Service) SignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return s.respondError(c, errs.InvalidArgument("", "malformed request body"))
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.Store.GetUser(c.Request().Context(), &store.FindUser{Email: &email})
	if err != nil {
		return s.respondError(c, errs.StorageError("failed to look up user", err))
	}
	if user == nil {
		return s.respondError(c, errs.Unauthorized("invalid email or password"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return s.respondError(c, errs.Unauthorized("invalid email or password"))
	}

	token, err := auth.GenerateAccessToken(user.ID, s.Profile.Secret)
	if err != nil {
		return s.respondError(c, errs.StorageError("failed to issue token", err))
	}
	return c.JSON(http.StatusOK, &authResponse{
		AccessToken: token,
		User:        &userPayload{ID: user.ID, Email: user.Email, Nickname: user.Nickname},
	})
}
