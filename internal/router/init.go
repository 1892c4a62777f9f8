package router

import (
	"github.com/redis/go-redis/v9"

	"github.com/studycircle/studycircle-api/internal/application"
	handlers "github.com/studycircle/studycircle-api/internal/interface/http"
	"github.com/studycircle/studycircle-api/internal/router/modules"
	"github.com/studycircle/studycircle-api/pkg/helpers"
)

// Deps carries everything the route modules need. All wiring is explicit;
// nothing is pulled from package-level state.
type Deps struct {
	Service *application.Service
	Cookies *helpers.CookieManager
	JWT     *helpers.JWTManager
	Redis   *redis.Client

	DebugMetricsEnabled bool
}

// InitModules wires the handlers and registers every feature module. Called
// once during startup.
func InitModules(r *Registry, d Deps) {
	accountHandler := handlers.NewAccountHandler(d.Service, d.Cookies, d.Redis, d.Service.Logger)
	settingsHandler := handlers.NewSettingsHandler(d.Service, d.Cookies, d.Service.Logger)

	r.Add(modules.NewAccountModule(accountHandler, d.JWT, d.Redis))
	r.Add(modules.NewSettingsModule(settingsHandler, d.JWT, d.Redis))
	if d.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(d.Redis))
	}
}
