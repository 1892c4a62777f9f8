package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/studycircle/studycircle-api/internal/interface/http"
	"github.com/studycircle/studycircle-api/internal/interface/middleware"
	"github.com/studycircle/studycircle-api/pkg/helpers"
)

// SettingsModule registers the authenticated self-service routes.
type SettingsModule struct {
	Handler *handlers.SettingsHandler
	JWT     *helpers.JWTManager
	Redis   *redis.Client
}

func NewSettingsModule(h *handlers.SettingsHandler, jwt *helpers.JWTManager, rdb *redis.Client) *SettingsModule {
	return &SettingsModule{Handler: h, JWT: jwt, Redis: rdb}
}

func (m *SettingsModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Redis, m.JWT))
	auth.Use(middleware.RateLimit(m.Redis, 60, time.Minute, middleware.KeyByAccountID(), nil))
	{
		auth.GET("/settings/profile", m.Handler.GetProfile)
		auth.PUT("/settings/profile", m.Handler.UpdateProfile)
		auth.PUT("/settings/password", m.Handler.UpdatePassword)
		auth.PUT("/settings/notifications", m.Handler.UpdateNotifications)
		auth.PUT("/settings/nickname", m.Handler.UpdateNickname)
		auth.POST("/settings/avatar", m.Handler.UploadAvatar)
		auth.GET("/accounts/search", m.Handler.SearchAccounts)
	}
}
