package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/studycircle/studycircle-api/internal/application"
	"github.com/studycircle/studycircle-api/internal/domain/entity"
	"github.com/studycircle/studycircle-api/pkg/helpers"
	"github.com/studycircle/studycircle-api/pkg/response"
	"github.com/studycircle/studycircle-api/pkg/validation"
)

const maxAvatarBytes = 5 << 20

// SettingsHandler carries the authenticated self-service endpoints.
type SettingsHandler struct {
	Svc     *application.Service
	Cookies *helpers.CookieManager
	Logger  *logrus.Logger
}

func NewSettingsHandler(svc *application.Service, cookies *helpers.CookieManager, logger *logrus.Logger) *SettingsHandler {
	return &SettingsHandler{Svc: svc, Cookies: cookies, Logger: logger}
}

// current loads the authenticated account set by the auth middleware.
func (h *SettingsHandler) current(c *gin.Context) (*entity.Account, bool) {
	a, err := h.Svc.Repo.GetByEmail(c.Request.Context(), c.GetString("accountEmail"))
	if err != nil {
		resp := response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
		c.JSON(resp.Status, resp)
		return nil, false
	}
	return a, true
}

// GetProfile GET /api/settings/profile
func (h *SettingsHandler) GetProfile(c *gin.Context) {
	a, ok := h.current(c)
	if !ok {
		return
	}
	resp := response.Success(c, http.StatusOK, toView(a), "profile")
	c.JSON(resp.Status, resp)
}

type profileRequest struct {
	Bio        string `json:"bio" binding:"max=160"`
	URL        string `json:"url" binding:"omitempty,url,max=255"`
	Occupation string `json:"occupation" binding:"max=50"`
	Location   string `json:"location" binding:"max=50"`
	AvatarURL  string `json:"avatar_url" binding:"omitempty,url"`
}

// UpdateProfile PUT /api/settings/profile
// Fields are replaced as submitted; a blank field clears the stored value.
func (h *SettingsHandler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	a, ok := h.current(c)
	if !ok {
		return
	}

	err := h.Svc.UpdateProfile(c.Request.Context(), a, application.ProfileInput{
		Bio:        req.Bio,
		URL:        req.URL,
		Occupation: req.Occupation,
		Location:   req.Location,
		AvatarURL:  req.AvatarURL,
	})
	if err != nil {
		h.Logger.WithError(err).Error("profile update failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "profile update failed", nil)
		c.JSON(resp.Status, resp)
		return
	}
	resp := response.Success(c, http.StatusOK, toView(a), "profile updated")
	c.JSON(resp.Status, resp)
}

type passwordRequest struct {
	NewPassword        string `json:"new_password" binding:"required,pwd"`
	NewPasswordConfirm string `json:"new_password_confirm" binding:"required,eqfield=NewPassword"`
}

// UpdatePassword PUT /api/settings/password
func (h *SettingsHandler) UpdatePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	a, ok := h.current(c)
	if !ok {
		return
	}

	if err := h.Svc.ChangePassword(c.Request.Context(), a, req.NewPassword); err != nil {
		h.Logger.WithError(err).Error("password change failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "password change failed", nil)
		c.JSON(resp.Status, resp)
		return
	}
	resp := response.Success[any](c, http.StatusOK, nil, "password updated")
	c.JSON(resp.Status, resp)
}

type notificationsRequest struct {
	StudyCreatedByEmail     bool `json:"study_created_by_email"`
	StudyCreatedByWeb       bool `json:"study_created_by_web"`
	EnrollmentResultByEmail bool `json:"enrollment_result_by_email"`
	EnrollmentResultByWeb   bool `json:"enrollment_result_by_web"`
	StudyUpdatedByEmail     bool `json:"study_updated_by_email"`
	StudyUpdatedByWeb       bool `json:"study_updated_by_web"`
}

// UpdateNotifications PUT /api/settings/notifications
func (h *SettingsHandler) UpdateNotifications(c *gin.Context) {
	var req notificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	a, ok := h.current(c)
	if !ok {
		return
	}

	err := h.Svc.UpdateNotifications(c.Request.Context(), a, application.NotificationsInput{
		StudyCreatedByEmail:     req.StudyCreatedByEmail,
		StudyCreatedByWeb:       req.StudyCreatedByWeb,
		EnrollmentResultByEmail: req.EnrollmentResultByEmail,
		EnrollmentResultByWeb:   req.EnrollmentResultByWeb,
		StudyUpdatedByEmail:     req.StudyUpdatedByEmail,
		StudyUpdatedByWeb:       req.StudyUpdatedByWeb,
	})
	if err != nil {
		h.Logger.WithError(err).Error("notifications update failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "notifications update failed", nil)
		c.JSON(resp.Status, resp)
		return
	}
	resp := response.Success(c, http.StatusOK, toView(a), "notifications updated")
	c.JSON(resp.Status, resp)
}

type nicknameRequest struct {
	Nickname string `json:"nickname" binding:"required,nickname"`
}

// UpdateNickname PUT /api/settings/nickname
// Changing the nickname re-issues the session cookies, since the nickname is
// part of the signed claims.
func (h *SettingsHandler) UpdateNickname(c *gin.Context) {
	var req nicknameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	a, ok := h.current(c)
	if !ok {
		return
	}
	if req.Nickname == a.Nickname {
		resp := response.Success(c, http.StatusOK, toView(a), "nickname unchanged")
		c.JSON(resp.Status, resp)
		return
	}

	ctx := c.Request.Context()
	if taken, err := h.Svc.Repo.ExistsByNickname(ctx, req.Nickname); err == nil && taken {
		resp := response.Error[any](c, http.StatusConflict, "nickname already in use", nil)
		c.JSON(resp.Status, resp)
		return
	}

	sess, err := h.Svc.UpdateNickname(ctx, a, req.Nickname)
	if err != nil {
		h.Logger.WithError(err).Error("nickname update failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "nickname update failed", nil)
		c.JSON(resp.Status, resp)
		return
	}
	h.Cookies.SetPair(c,
		sess.Tokens.AccessToken, sess.Tokens.AccessTokenExpiry,
		sess.Tokens.RefreshToken, sess.Tokens.RefreshTokenExpiry)

	resp := response.Success(c, http.StatusOK, toView(a), "nickname updated")
	c.JSON(resp.Status, resp)
}

// UploadAvatar POST /api/settings/avatar (multipart, field "avatar")
func (h *SettingsHandler) UploadAvatar(c *gin.Context) {
	fh, err := c.FormFile("avatar")
	if err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "avatar file is required", nil)
		c.JSON(resp.Status, resp)
		return
	}
	if fh.Size > maxAvatarBytes {
		resp := response.Error[any](c, http.StatusRequestEntityTooLarge, "avatar must be 5MB or smaller", nil)
		c.JSON(resp.Status, resp)
		return
	}
	a, ok := h.current(c)
	if !ok {
		return
	}

	f, err := fh.Open()
	if err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "could not read avatar", nil)
		c.JSON(resp.Status, resp)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := h.Svc.UploadAvatar(c.Request.Context(), a, f, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		h.Logger.WithError(err).Error("avatar upload failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "avatar upload failed", nil)
		c.JSON(resp.Status, resp)
		return
	}
	resp := response.Success(c, http.StatusOK, gin.H{"avatar_url": url}, "avatar updated")
	c.JSON(resp.Status, resp)
}

// SearchAccounts GET /api/accounts/search?q=..
func (h *SettingsHandler) SearchAccounts(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		resp := response.Error[any](c, http.StatusBadRequest, "q is required", nil)
		c.JSON(resp.Status, resp)
		return
	}

	hits, err := h.Svc.SearchAccounts(c.Request.Context(), q, 10)
	if err != nil {
		h.Logger.WithError(err).Error("account search failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "search failed", nil)
		c.JSON(resp.Status, resp)
		return
	}
	resp := response.Success(c, http.StatusOK, hits, "search results")
	c.JSON(resp.Status, resp)
}
