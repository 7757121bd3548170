// Package server assembles the HTTP router from the domain packages.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "equipborrow-backend/docs"
	"equipborrow-backend/internal/borrows"
	"equipborrow-backend/internal/classes"
	"equipborrow-backend/internal/deficiencies"
	"equipborrow-backend/internal/equipment"
	"equipborrow-backend/internal/platform/apierr"
	"equipborrow-backend/internal/platform/auth"
	"equipborrow-backend/internal/platform/config"
	"equipborrow-backend/internal/platform/ids"
	"equipborrow-backend/internal/platform/logging"
	"equipborrow-backend/internal/platform/validation"
	"equipborrow-backend/internal/reports"
	"equipborrow-backend/internal/users"
)

// Deps are the process-wide resources the router is built from. Redis is
// nil when it is not configured.
type Deps struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client
	Log    *zap.Logger
	Clock  ids.Clock
	IDs    ids.IDGen
}

func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	validation.Setup()

	r := gin.New()
	r.Use(logging.Middleware(d.Log, auth.CtxUserIDKey), logging.Recovery(d.Log))
	_ = r.SetTrustedProxies(nil)

	if cfg.IsDev() {
		// CORS is only needed while the frontend runs on its own dev server.
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.CORSOrigins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.GET("/healthz", health(d))

	var (
		sessions auth.SessionStore
		cache    reports.Cache = reports.NopCache{}
	)
	if d.Redis != nil {
		sessions = auth.NewRedisSessionStore(d.Redis)
		cache = reports.NewRedisCache(d.Redis)
	} else {
		d.Log.Warn("redis disabled: sessions are kept in memory and the dashboard is not cached")
		sessions = auth.NewMemorySessionStore(d.Clock.Now)
	}

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, d.Clock)
	guard := auth.NewGuard(tokens, sessions, cfg.Auth.CookieName, d.Log)
	authSvc := auth.NewService(auth.NewStore(d.DB), sessions, tokens, d.Clock, d.IDs,
		auth.Options{CookieName: cfg.Auth.CookieName, CookieSecure: cfg.Auth.CookieSecure}, d.Log)

	api := r.Group("/api")
	authed := api.Group("", guard.RequireAuth())

	auth.RegisterRoutes(api, authed, authSvc, d.Log)
	users.RegisterRoutes(authed, users.NewService(d.DB, sessions, d.Clock, d.IDs, d.Log), d.Log)
	equipment.RegisterRoutes(authed, equipment.NewService(d.DB, d.Clock, d.IDs, d.Log), d.Log)
	classes.RegisterRoutes(authed, classes.NewService(d.DB, d.Clock, d.IDs, d.Log), d.Log)
	borrows.RegisterRoutes(authed, borrows.NewService(d.DB, d.Clock, d.IDs, d.Log), d.Log)
	deficiencies.RegisterRoutes(authed, deficiencies.NewService(d.DB, d.Clock, d.IDs, d.Log), d.Log)
	reports.RegisterRoutes(authed, reports.NewService(d.DB, cache, d.Clock, d.Log), d.Log)

	r.NoRoute(func(c *gin.Context) {
		apierr.Write(c, nil, apierr.ErrNotFound("route not found"))
	})
	return r
}

func health(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"database": "ok"}
		code := http.StatusOK
		if err := d.DB.PingContext(ctx); err != nil {
			status["database"] = "down"
			code = http.StatusServiceUnavailable
		}
		if d.Redis != nil {
			status["redis"] = "ok"
			if err := d.Redis.Ping(ctx).Err(); err != nil {
				status["redis"] = "down"
				code = http.StatusServiceUnavailable
			}
		}
		c.JSON(code, status)
	}
}
