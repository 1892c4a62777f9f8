package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/studycircle/studycircle-api/internal/interface/http"
	"github.com/studycircle/studycircle-api/internal/interface/middleware"
	"github.com/studycircle/studycircle-api/pkg/helpers"
)

// AccountModule registers the sign-up, verification, and login routes.
type AccountModule struct {
	Handler *handlers.AccountHandler
	JWT     *helpers.JWTManager
	Redis   *redis.Client
}

func NewAccountModule(h *handlers.AccountHandler, jwt *helpers.JWTManager, rdb *redis.Client) *AccountModule {
	return &AccountModule{Handler: h, JWT: jwt, Redis: rdb}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	// Mail-sending endpoints get a tight per-IP budget; token checks a looser one.
	signUpLimiter := middleware.RateLimit(m.Redis, 10, time.Minute, middleware.KeyByIPAndPath(), middleware.AllowPrivateIP())
	mailLimiter := middleware.RateLimit(m.Redis, 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	tokenLimiter := middleware.RateLimit(m.Redis, 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	loginLimiter := middleware.RateLimit(m.Redis, 20, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/sign-up", signUpLimiter, m.Handler.SignUp)
	rg.GET("/check-email-token", tokenLimiter, m.Handler.CheckEmailToken)
	rg.POST("/email-login", mailLimiter, m.Handler.EmailLogin)
	rg.GET("/login-by-email", tokenLimiter, m.Handler.LoginByEmail)
	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/refresh", tokenLimiter, m.Handler.Refresh)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Redis, m.JWT))
	{
		auth.POST("/resend-confirm-email", mailLimiter, m.Handler.ResendConfirmEmail)
		auth.POST("/logout", m.Handler.Logout)
	}
}
