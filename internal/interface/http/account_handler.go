package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/studycircle/studycircle-api/internal/application"
	"github.com/studycircle/studycircle-api/internal/domain/repository"
	"github.com/studycircle/studycircle-api/pkg/helpers"
	"github.com/studycircle/studycircle-api/pkg/response"
	"github.com/studycircle/studycircle-api/pkg/validation"
)

// AccountHandler carries the sign-up, verification, and login endpoints.
type AccountHandler struct {
	Svc     *application.Service
	Cookies *helpers.CookieManager
	RDB     *redis.Client
	Logger  *logrus.Logger
}

func NewAccountHandler(svc *application.Service, cookies *helpers.CookieManager, rdb *redis.Client, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{Svc: svc, Cookies: cookies, RDB: rdb, Logger: logger}
}

func (h *AccountHandler) setSessionCookies(c *gin.Context, sess *application.Session) {
	h.Cookies.SetPair(c,
		sess.Tokens.AccessToken, sess.Tokens.AccessTokenExpiry,
		sess.Tokens.RefreshToken, sess.Tokens.RefreshTokenExpiry)
}

type signUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Nickname string `json:"nickname" binding:"required,nickname"`
	Password string `json:"password" binding:"required,pwd"`
}

// SignUp POST /api/sign-up
// Creates the account, sends the confirmation mail, and logs the new member
// in right away. Verification is not a login gate.
func (h *AccountHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}

	ctx := c.Request.Context()
	if taken, err := h.Svc.Repo.ExistsByEmail(ctx, req.Email); err == nil && taken {
		resp := response.Error[any](c, http.StatusConflict, "email already in use", nil)
		c.JSON(resp.Status, resp)
		return
	}
	if taken, err := h.Svc.Repo.ExistsByNickname(ctx, req.Nickname); err == nil && taken {
		resp := response.Error[any](c, http.StatusConflict, "nickname already in use", nil)
		c.JSON(resp.Status, resp)
		return
	}

	a, err := h.Svc.Register(ctx, application.RegisterInput{
		Email:    req.Email,
		Nickname: req.Nickname,
		Password: req.Password,
	})
	if err != nil {
		h.Logger.WithError(err).Error("sign-up failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "sign-up failed", nil)
		c.JSON(resp.Status, resp)
		return
	}

	sess, err := h.Svc.EstablishSession(ctx, a)
	if err != nil {
		h.Logger.WithError(err).Error("post-sign-up session failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "sign-up failed", nil)
		c.JSON(resp.Status, resp)
		return
	}
	h.setSessionCookies(c, sess)

	resp := response.Success(c, http.StatusCreated, toView(a), "account created, confirmation email sent")
	c.JSON(resp.Status, resp)
}

// CheckEmailToken GET /api/check-email-token?token=..&email=..
// Confirms the email and establishes a session. Any mismatch collapses into
// the same 401 so the endpoint cannot be used to probe which emails exist.
func (h *AccountHandler) CheckEmailToken(c *gin.Context) {
	token := c.Query("token")
	email := c.Query("email")

	ctx := c.Request.Context()
	a, err := h.Svc.Repo.GetByEmail(ctx, email)
	if err != nil || !a.IsValidToken(token) {
		resp := response.Error[any](c, http.StatusUnauthorized, "invalid token or email", nil)
		c.JSON(resp.Status, resp)
		return
	}

	sess, err := h.Svc.CompleteSignUp(ctx, a)
	if err != nil {
		h.Logger.WithError(err).Error("complete sign-up failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "verification failed", nil)
		c.JSON(resp.Status, resp)
		return
	}
	h.setSessionCookies(c, sess)

	count, err := h.Svc.Repo.Count(ctx)
	if err != nil {
		count = 0
	}
	resp := response.Success(c, http.StatusOK, gin.H{
		"account":      toView(a),
		"member_count": count,
	}, "email verified")
	c.JSON(resp.Status, resp)
}

// ResendConfirmEmail POST /api/resend-confirm-email (auth required)
func (h *AccountHandler) ResendConfirmEmail(c *gin.Context) {
	ctx := c.Request.Context()
	a, err := h.Svc.Repo.GetByEmail(ctx, c.GetString("accountEmail"))
	if err != nil {
		resp := response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
		c.JSON(resp.Status, resp)
		return
	}
	if a.EmailVerified {
		resp := response.Success[any](c, http.StatusOK, nil, "already verified")
		c.JSON(resp.Status, resp)
		return
	}

	if err := h.Svc.ResendConfirmationEmail(ctx, a); err != nil {
		if errors.Is(err, application.ErrThrottled) {
			resp := response.Error[any](c, http.StatusTooManyRequests, "confirmation email was sent recently, try again later", nil)
			c.JSON(resp.Status, resp)
			return
		}
		h.Logger.WithError(err).Error("resend confirmation failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "resend failed", nil)
		c.JSON(resp.Status, resp)
		return
	}
	resp := response.Success[any](c, http.StatusOK, nil, "confirmation email sent")
	c.JSON(resp.Status, resp)
}

type emailLoginRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// EmailLogin POST /api/email-login
// Sends a passwordless login link. Unknown emails get the same 200 as known
// ones; only the cooldown surfaces, as a 429.
func (h *AccountHandler) EmailLogin(c *gin.Context) {
	var req emailLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}

	ctx := c.Request.Context()
	a, err := h.Svc.Repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			h.Logger.WithError(err).Error("email login lookup failed")
		}
		resp := response.Success[any](c, http.StatusOK, nil, "if the email is registered, a login link is on its way")
		c.JSON(resp.Status, resp)
		return
	}

	if err := h.Svc.IssueLoginLink(ctx, a); err != nil {
		if errors.Is(err, application.ErrThrottled) {
			resp := response.Error[any](c, http.StatusTooManyRequests, "login link was sent recently, try again later", nil)
			c.JSON(resp.Status, resp)
			return
		}
		h.Logger.WithError(err).Error("login link failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "login link failed", nil)
		c.JSON(resp.Status, resp)
		return
	}
	resp := response.Success[any](c, http.StatusOK, nil, "if the email is registered, a login link is on its way")
	c.JSON(resp.Status, resp)
}

// LoginByEmail GET /api/login-by-email?token=..&email=..
// Logs in via the mailed link. Verification state and the token itself are
// left untouched.
func (h *AccountHandler) LoginByEmail(c *gin.Context) {
	token := c.Query("token")
	email := c.Query("email")

	ctx := c.Request.Context()
	a, err := h.Svc.Repo.GetByEmail(ctx, email)
	if err != nil || !a.IsValidToken(token) {
		resp := response.Error[any](c, http.StatusUnauthorized, "invalid token or email", nil)
		c.JSON(resp.Status, resp)
		return
	}

	sess, err := h.Svc.CompleteLoginByEmail(ctx, a)
	if err != nil {
		h.Logger.WithError(err).Error("login by email failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "login failed", nil)
		c.JSON(resp.Status, resp)
		return
	}
	h.setSessionCookies(c, sess)

	resp := response.Success(c, http.StatusOK, toView(a), "logged in")
	c.JSON(resp.Status, resp)
}

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"` // email or nickname
	Password   string `json:"password" binding:"required"`
}

// Login POST /api/login
func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}

	ctx := c.Request.Context()
	a, err := h.Svc.Authenticate(ctx, req.Identifier, req.Password)
	if err != nil {
		resp := response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
		c.JSON(resp.Status, resp)
		return
	}

	sess, err := h.Svc.EstablishSession(ctx, a)
	if err != nil {
		h.Logger.WithError(err).Error("session establish failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "login failed", nil)
		c.JSON(resp.Status, resp)
		return
	}
	h.setSessionCookies(c, sess)

	resp := response.Success(c, http.StatusOK, toView(a), "logged in")
	c.JSON(resp.Status, resp)
}

// Refresh POST /api/refresh
// Rotates the token pair using the refresh cookie.
func (h *AccountHandler) Refresh(c *gin.Context) {
	token, err := c.Cookie("refresh_token")
	if err != nil || token == "" {
		resp := response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		c.JSON(resp.Status, resp)
		return
	}

	sess, err := h.Svc.Refresh(c.Request.Context(), token)
	if err != nil {
		resp := response.Error[any](c, http.StatusUnauthorized, "invalid refresh token", nil)
		c.JSON(resp.Status, resp)
		return
	}
	h.setSessionCookies(c, sess)

	resp := response.Success[any](c, http.StatusOK, nil, "session refreshed")
	c.JSON(resp.Status, resp)
}

// Logout POST /api/logout (auth required)
func (h *AccountHandler) Logout(c *gin.Context) {
	if aid := c.GetString("accountID"); aid != "" && h.RDB != nil {
		_ = h.RDB.Del(c.Request.Context(), "account:session:"+aid).Err()
	}
	h.Cookies.Clear(c)
	resp := response.Success[any](c, http.StatusOK, nil, "logged out")
	c.JSON(resp.Status, resp)
}
