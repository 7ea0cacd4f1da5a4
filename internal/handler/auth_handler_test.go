package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type authenticatorMock struct {
	login      dto.LoginRequest
	client     models.ClientInfo
	refreshed  string
	loggedOut  string
	changedFor string
}

func (m *authenticatorMock) Login(ctx context.Context, req dto.LoginRequest, client models.ClientInfo) (*dto.Session, error) {
	m.login, m.client = req, client
	if req.Password != "secret" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &dto.Session{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}, nil
}

func (m *authenticatorMock) Refresh(ctx context.Context, refreshToken string, client models.ClientInfo) (*dto.Session, error) {
	m.refreshed = refreshToken
	return &dto.Session{AccessToken: "access-2", RefreshToken: "refresh-2", TokenType: "Bearer"}, nil
}

func (m *authenticatorMock) Logout(ctx context.Context, refreshToken, userID string) error {
	m.loggedOut = userID + ":" + refreshToken
	return nil
}

func (m *authenticatorMock) ChangePassword(ctx context.Context, userID string, req dto.ChangePasswordRequest) error {
	m.changedFor = userID
	return nil
}

func authRouter(svc authenticator, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(svc)
	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	authed := r.Group("/auth", func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ContextUserKey, claims)
		}
		c.Next()
	})
	authed.POST("/logout", h.Logout)
	authed.POST("/change-password", h.ChangePassword)
	authed.GET("/me", h.Me)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthHandlerLogin(t *testing.T) {
	mock := &authenticatorMock{}
	r := authRouter(mock, nil)

	w := postJSON(r, "/auth/login", `{"email":"admin@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test-agent", mock.client.UserAgent)
	assert.Equal(t, "admin@example.com", mock.login.Email)
	assert.Contains(t, w.Body.String(), `"token_type":"Bearer"`)

	w = postJSON(r, "/auth/login", `{"email":"admin@example.com","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(r, "/auth/login", `not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerRefresh(t *testing.T) {
	mock := &authenticatorMock{}
	r := authRouter(mock, nil)

	w := postJSON(r, "/auth/refresh", `{"refresh_token":"refresh"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "refresh", mock.refreshed)

	assert.Equal(t, http.StatusBadRequest, postJSON(r, "/auth/refresh", `{}`).Code)
}

func TestAuthHandlerSessionEndpointsNeedClaims(t *testing.T) {
	r := authRouter(&authenticatorMock{}, nil)

	assert.Equal(t, http.StatusUnauthorized, postJSON(r, "/auth/logout", `{"refresh_token":"r"}`).Code)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLogoutAndChangePassword(t *testing.T) {
	mock := &authenticatorMock{}
	r := authRouter(mock, &models.JWTClaims{UserID: "u-1", Role: models.RoleAdmin})

	require.Equal(t, http.StatusNoContent, postJSON(r, "/auth/logout", `{"refresh_token":"r-1"}`).Code)
	assert.Equal(t, "u-1:r-1", mock.loggedOut)

	require.Equal(t, http.StatusBadRequest, postJSON(r, "/auth/logout", `{}`).Code)

	require.Equal(t, http.StatusNoContent, postJSON(r, "/auth/change-password", `{"current_password":"a","new_password":"abcdefgh"}`).Code)
	assert.Equal(t, "u-1", mock.changedFor)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"ADMIN"`)
}
