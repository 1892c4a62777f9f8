package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studycircle/studycircle-api/internal/application"
	"github.com/studycircle/studycircle-api/internal/domain/entity"
	"github.com/studycircle/studycircle-api/pkg/helpers"
)

// newSettingsRouter wires the settings routes behind a stand-in for the auth
// middleware that injects the session context keys.
func newSettingsRouter(repo *stubRepo, email string) *gin.Engine {
	logger := logrus.New()
	logger.SetOutput(discard{})
	jwt := helpers.NewJWTManager("a-secret", "r-secret", 15*time.Minute, 24*time.Hour)
	svc := application.NewService(repo, stubHasher{}, &stubSender{}, jwt, nil, logger, "studycircle", "http://localhost:8080")
	cookies := helpers.NewCookieManager("localhost", false)
	h := NewSettingsHandler(svc, cookies, logger)

	r := gin.New()
	api := r.Group("/api")
	api.Use(func(c *gin.Context) {
		c.Set("accountID", "acc-1")
		c.Set("accountEmail", email)
		c.Next()
	})
	api.GET("/settings/profile", h.GetProfile)
	api.PUT("/settings/profile", h.UpdateProfile)
	api.PUT("/settings/password", h.UpdatePassword)
	api.PUT("/settings/notifications", h.UpdateNotifications)
	api.PUT("/settings/nickname", h.UpdateNickname)
	api.POST("/settings/avatar", h.UploadAvatar)
	api.GET("/accounts/search", h.SearchAccounts)
	return r
}

func putJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func settingsAccount() *entity.Account {
	return &entity.Account{
		ID: "acc-1", Email: "a@x.com", Nickname: "amara",
		PasswordHash: "hashed:secret123",
		Bio:          "old bio", Location: "Seoul",
	}
}

func TestGetProfile(t *testing.T) {
	a := settingsAccount()
	r := newSettingsRouter(newStubRepo(a), a.Email)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/settings/profile", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"nickname":"amara"`)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestGetProfile_StaleSession(t *testing.T) {
	r := newSettingsRouter(newStubRepo(), "gone@x.com")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/settings/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateProfile(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "replaces and clears fields",
			body:       map[string]any{"bio": "gopher", "occupation": "engineer"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "bad url rejected",
			body:       map[string]any{"url": "not a url"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "oversized bio rejected",
			body:       map[string]any{"bio": string(bytes.Repeat([]byte("x"), 161))},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := settingsAccount()
			r := newSettingsRouter(newStubRepo(a), a.Email)

			w := putJSON(t, r, "/api/settings/profile", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "gopher", a.Bio)
				assert.Equal(t, "engineer", a.Occupation)
				assert.Empty(t, a.Location, "omitted fields are cleared, not kept")
			} else {
				assert.Equal(t, "old bio", a.Bio, "rejected payloads change nothing")
			}
		})
	}
}

func TestUpdatePassword(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "updated",
			body:       map[string]any{"new_password": "newsecret1", "new_password_confirm": "newsecret1"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "confirmation mismatch",
			body:       map[string]any{"new_password": "newsecret1", "new_password_confirm": "different1"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "too short",
			body:       map[string]any{"new_password": "short", "new_password_confirm": "short"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := settingsAccount()
			r := newSettingsRouter(newStubRepo(a), a.Email)

			w := putJSON(t, r, "/api/settings/password", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "hashed:newsecret1", a.PasswordHash)
			} else {
				assert.Equal(t, "hashed:secret123", a.PasswordHash)
			}
			if tt.name == "confirmation mismatch" {
				assert.Contains(t, w.Body.String(), "new_password_confirm")
			}
		})
	}
}

func TestUpdateNotifications(t *testing.T) {
	a := settingsAccount()
	a.StudyCreatedByWeb = true
	r := newSettingsRouter(newStubRepo(a), a.Email)

	w := putJSON(t, r, "/api/settings/notifications", map[string]any{
		"study_created_by_email": true,
		"study_updated_by_web":   true,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, a.StudyCreatedByEmail)
	assert.True(t, a.StudyUpdatedByWeb)
	assert.False(t, a.StudyCreatedByWeb, "unchecked flags are switched off")
}

func TestUpdateNickname(t *testing.T) {
	tests := []struct {
		name        string
		nickname    string
		wantStatus  int
		wantCookies bool
	}{
		{name: "changed", nickname: "amara2", wantStatus: http.StatusOK, wantCookies: true},
		{name: "taken", nickname: "bruno", wantStatus: http.StatusConflict},
		{name: "invalid format", nickname: "x!", wantStatus: http.StatusBadRequest},
		{name: "unchanged is a no-op", nickname: "amara", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := settingsAccount()
			other := &entity.Account{ID: "acc-2", Email: "b@x.com", Nickname: "bruno"}
			r := newSettingsRouter(newStubRepo(a, other), a.Email)

			w := putJSON(t, r, "/api/settings/nickname", map[string]any{"nickname": tt.nickname})
			assert.Equal(t, tt.wantStatus, w.Code)

			names := map[string]bool{}
			for _, ck := range w.Result().Cookies() {
				names[ck.Name] = true
			}
			if tt.wantCookies {
				assert.Equal(t, tt.nickname, a.Nickname)
				assert.True(t, names["access_token"], "nickname change must rotate the session cookies")
				assert.True(t, names["refresh_token"])
			} else {
				assert.Empty(t, names, "no session rotation without a successful change")
				if tt.wantStatus != http.StatusOK {
					assert.Equal(t, "amara", a.Nickname)
				}
			}
		})
	}
}

func TestUploadAvatar_RequiresFile(t *testing.T) {
	a := settingsAccount()
	r := newSettingsRouter(newStubRepo(a), a.Email)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/settings/avatar", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchAccounts(t *testing.T) {
	a := settingsAccount()
	r := newSettingsRouter(newStubRepo(a), a.Email)

	t.Run("q is required", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/accounts/search", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no index configured yields empty results", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/accounts/search?q=amara", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
