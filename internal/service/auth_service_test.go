package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	findByEmailErr   error
	refreshTokens    map[string]*models.RefreshToken
	revokedUsers     []string
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
	created          []*models.User
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil || m.userByEmail.Email != email {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.userByEmail == nil || m.userByEmail.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	m.created = append(m.created, user)
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.TokenHash] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[tokenHash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) (bool, error) {
	for _, token := range m.refreshTokens {
		if token.ID == id && !token.Revoked {
			token.Revoked = true
			token.RevokedAt = &revokedAt
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthFixture(t *testing.T, password string, active bool) (*AuthService, *mockAuthRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "hod@example.com", FullName: "Head", PasswordHash: string(hash), Active: active, Role: models.RoleHOD}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "timetable-api",
	})
	return svc, repo
}

func TestAuthServiceLoginIssuesSession(t *testing.T) {
	svc, repo := newAuthFixture(t, "password", true)

	ctx := requestid.WithID(context.Background(), "req-1")
	session, err := svc.Login(ctx, dto.LoginRequest{Email: " HOD@example.com", Password: "password"}, models.ClientInfo{IP: "10.0.0.1", UserAgent: "cli"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", session.TokenType)
	assert.Equal(t, models.RoleHOD, session.User.Role)
	assert.True(t, repo.lastLoginUpdated)

	require.Len(t, repo.refreshTokens, 1)
	for hash, stored := range repo.refreshTokens {
		assert.NotEqual(t, session.RefreshToken, hash)
		assert.Equal(t, hashRefreshToken(session.RefreshToken), hash)
		assert.Equal(t, "10.0.0.1", stored.IPAddress)
	}
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
	assert.JSONEq(t, `{"role":"HOD","request_id":"req-1"}`, string(repo.auditLogs[0].NewValues))

	claims, err := svc.ValidateToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	svc, _ := newAuthFixture(t, "password", true)

	_, err := svc.Login(context.Background(), dto.LoginRequest{Email: "hod@example.com", Password: "nope"}, models.ClientInfo{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "ghost@example.com", Password: "password"}, models.ClientInfo{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "not-an-email", Password: "password"}, models.ClientInfo{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	inactive, _ := newAuthFixture(t, "password", false)
	_, err = inactive.Login(context.Background(), dto.LoginRequest{Email: "hod@example.com", Password: "password"}, models.ClientInfo{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceRefreshRotatesOnce(t *testing.T) {
	svc, repo := newAuthFixture(t, "password", true)
	first, err := svc.Login(context.Background(), dto.LoginRequest{Email: "hod@example.com", Password: "password"}, models.ClientInfo{})
	require.NoError(t, err)

	second, err := svc.Refresh(context.Background(), first.RefreshToken, models.ClientInfo{})
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.True(t, repo.refreshTokens[hashRefreshToken(first.RefreshToken)].Revoked)

	_, err = svc.Refresh(context.Background(), first.RefreshToken, models.ClientInfo{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))

	_, err = svc.Refresh(context.Background(), "unknown", models.ClientInfo{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceRefreshRejectsExpired(t *testing.T) {
	svc, repo := newAuthFixture(t, "password", true)
	session, err := svc.Login(context.Background(), dto.LoginRequest{Email: "hod@example.com", Password: "password"}, models.ClientInfo{})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }
	_, err = svc.Refresh(context.Background(), session.RefreshToken, models.ClientInfo{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
	assert.False(t, repo.refreshTokens[hashRefreshToken(session.RefreshToken)].Revoked)
}

func TestAuthServiceLogout(t *testing.T) {
	svc, repo := newAuthFixture(t, "password", true)
	session, err := svc.Login(context.Background(), dto.LoginRequest{Email: "hod@example.com", Password: "password"}, models.ClientInfo{})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), session.RefreshToken, "someone-else")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Logout(context.Background(), session.RefreshToken, "u1"))
	assert.True(t, repo.refreshTokens[hashRefreshToken(session.RefreshToken)].Revoked)
}

func TestAuthServiceChangePassword(t *testing.T) {
	svc, repo := newAuthFixture(t, "old-password", true)
	oldHash := repo.userByEmail.PasswordHash

	err := svc.ChangePassword(context.Background(), "u1", dto.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "new-password"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))

	err = svc.ChangePassword(context.Background(), "u1", dto.ChangePasswordRequest{CurrentPassword: "old-password", NewPassword: "old-password"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	require.NoError(t, svc.ChangePassword(context.Background(), "u1", dto.ChangePasswordRequest{CurrentPassword: "old-password", NewPassword: "new-password"}))
	assert.NotEqual(t, oldHash, repo.userByEmail.PasswordHash)
	assert.Equal(t, []string{"u1"}, repo.revokedUsers)
}

func TestValidateTokenRejectsForeignTokens(t *testing.T) {
	svc, _ := newAuthFixture(t, "password", true)

	token, _, err := svc.signAccessToken(&models.User{ID: "u1", Role: models.UserRole("GUEST")}, time.Now())
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID:           "u1",
		Role:             models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err := other.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceEnsureAdminCreatesMissingAccount(t *testing.T) {
	repo := &mockAuthRepo{findByEmailErr: sql.ErrNoRows}
	svc := NewAuthService(repo, nil, nil, AuthConfig{})

	created, err := svc.EnsureAdmin(context.Background(), " Admin@Example.com ", "s3cret")
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "admin@example.com", repo.created[0].Email)
	assert.Equal(t, models.RoleAdmin, repo.created[0].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.created[0].PasswordHash), []byte("s3cret")))
}

func TestAuthServiceEnsureAdminKeepsExistingAccount(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "admin@example.com"}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{})

	created, err := svc.EnsureAdmin(context.Background(), "admin@example.com", "s3cret")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, repo.created)

	created, err = svc.EnsureAdmin(context.Background(), "", "")
	require.NoError(t, err)
	assert.False(t, created)
}
