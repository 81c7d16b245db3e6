package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camp-booking-api/internal/models"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
)

type fakeAuthSrv struct {
	login    models.LoginRequest
	meta     models.LoginRequest
	logoutID string
	forgot   string
	err      error
}

func (f *fakeAuthSrv) Register(_ context.Context, req models.RegisterRequest, meta models.LoginRequest) (*models.LoginResponse, error) {
	f.meta = meta
	if f.err != nil {
		return nil, f.err
	}
	return &models.LoginResponse{AccessToken: "access", User: models.UserInfo{Email: req.Email, Role: models.RoleParent}}, nil
}

func (f *fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	f.login = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (f *fakeAuthSrv) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.LoginResponse, error) {
	return &models.LoginResponse{AccessToken: "access-2"}, f.err
}

func (f *fakeAuthSrv) Logout(_ context.Context, userID, _ string) error {
	f.logoutID = userID
	return f.err
}

func (f *fakeAuthSrv) Me(_ context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID, CommunityLevel: 2}, f.err
}

func (f *fakeAuthSrv) UpdateProfile(_ context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	return &models.User{ID: userID, Name: *req.Name}, f.err
}

func (f *fakeAuthSrv) ChangePassword(context.Context, string, models.ChangePasswordRequest) error {
	return f.err
}

func (f *fakeAuthSrv) ForgotPassword(_ context.Context, req models.ForgotPasswordRequest) error {
	f.forgot = req.Email
	return f.err
}

func (f *fakeAuthSrv) ResetPassword(context.Context, models.ResetPasswordRequest) error { return f.err }

func (f *fakeAuthSrv) DeleteAccount(context.Context, string, models.DeleteAccountRequest) error {
	return f.err
}

type fakeLevels struct{}

func (fakeLevels) LevelProgress(_ context.Context, _ string) (*models.LevelProgress, error) {
	progress := models.LevelProgressFor(120)
	return &progress, nil
}

func (fakeLevels) Badges(_ context.Context, accountID string, _ int) ([]models.Badge, error) {
	return []models.Badge{{UserID: accountID, Name: "Explorer"}}, nil
}

func TestAuthLoginCapturesClientMeta(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv, fakeLevels{})
	c, rec := newTestContext(http.MethodPost, "/auth/login", []byte(`{"email":"p@example.com","password":"secret123"}`), models.Actor{})
	c.Request.Header.Set("User-Agent", "camp-test")

	handler.Login(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "access", decode(t, rec).Data["access_token"])
	assert.Equal(t, "p@example.com", srv.login.Email)
	assert.Equal(t, "camp-test", srv.login.UserAgent)
	assert.NotEmpty(t, srv.login.IP)
}

func TestAuthLoginInvalidCredentials(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{err: appErrors.ErrInvalidCredentials}, fakeLevels{})
	c, rec := newTestContext(http.MethodPost, "/auth/login", []byte(`{"email":"p@example.com","password":"nope"}`), models.Actor{})

	handler.Login(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, rec).Error["code"])
}

func TestAuthRegisterCreated(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv, fakeLevels{})
	c, rec := newTestContext(http.MethodPost, "/auth/register", []byte(`{"email":"new@example.com","password":"longenough","name":"New"}`), models.Actor{})

	handler.Register(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	user := decode(t, rec).Data["user"].(map[string]interface{})
	assert.Equal(t, "new@example.com", user["email"])
	assert.NotEmpty(t, srv.meta.IP)
}

func TestAuthForgotPasswordAlwaysAccepted(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv, fakeLevels{})
	c, rec := newTestContext(http.MethodPost, "/auth/forgot-password", []byte(`{"email":"ghost@example.com"}`), models.Actor{})

	handler.ForgotPassword(c)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "ghost@example.com", srv.forgot)
}

func TestAuthLogoutRequiresSession(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv, fakeLevels{})

	c, rec := newTestContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"r"}`), models.Actor{})
	handler.Logout(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newTestContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"r"}`), parentActor)
	handler.Logout(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, parentActor.ID, srv.logoutID)
}

func TestAuthLevel(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{}, fakeLevels{})
	c, rec := newTestContext(http.MethodGet, "/auth/me/level?limit=5", nil, parentActor)

	handler.Level(c)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec).Data
	assert.Contains(t, data, "progress")
	badges := data["badges"].([]interface{})
	require.Len(t, badges, 1)
	assert.Equal(t, "Explorer", badges[0].(map[string]interface{})["name"])
}

func TestAuthUpdateProfile(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{}, fakeLevels{})
	c, rec := newTestContext(http.MethodPatch, "/auth/me", []byte(`{"name":"Renamed"}`), parentActor)

	handler.UpdateProfile(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", decode(t, rec).Data["name"])
}
