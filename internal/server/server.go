package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/console/internal/appinfo"
	"github.com/smallbiznis/console/internal/auth"
	"github.com/smallbiznis/console/internal/config"
	"github.com/smallbiznis/console/internal/edition"
	"github.com/smallbiznis/console/internal/observability"
	obsmiddleware "github.com/smallbiznis/console/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/console/internal/observability/metrics"
	obstracing "github.com/smallbiznis/console/internal/observability/tracing"
	"github.com/smallbiznis/console/internal/permission"
	"github.com/smallbiznis/console/internal/ratelimit"
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
	"github.com/smallbiznis/console/internal/settingsmenu"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(func(s *settingsmenu.Service) MenuService { return s }),
	fx.Provide(func(s *appinfo.Service) InfoService { return s }),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// MenuService is the part of settingsmenu.Service the handlers use.
type MenuService interface {
	Menu(ctx context.Context, userID snowflake.ID, wait bool) (settingsmenu.Menu, error)
	Refresh(ctx context.Context, userID snowflake.ID) error
	RefreshUser(ctx context.Context, userID snowflake.ID) error
}

type InfoService interface {
	Information(ctx context.Context, edition string) appinfo.Info
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Named("http.server").Info("listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Named("http.server").Fatal("server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine  *gin.Engine
	cfg     config.Config
	log     *zap.Logger
	edition edition.Edition
	tokens  *auth.Tokens
	rbac    rbacdomain.Service
	checker permission.Checker
	menus   MenuService
	info    InfoService
	limiter *ratelimit.UserLimiter
	metrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin     *gin.Engine
	Cfg     config.Config
	Log     *zap.Logger
	Edition edition.Edition
	Tokens  *auth.Tokens
	RBAC    rbacdomain.Service
	Checker permission.Checker
	Menus   MenuService
	Info    InfoService
	Limiter *ratelimit.UserLimiter `optional:"true"`
	Metrics *obsmetrics.Metrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:  p.Gin,
		cfg:     p.Cfg,
		log:     p.Log.Named("http.server"),
		edition: p.Edition,
		tokens:  p.Tokens,
		rbac:    p.RBAC,
		checker: p.Checker,
		menus:   p.Menus,
		info:    p.Info,
		limiter: p.Limiter,
		metrics: p.Metrics,
	}
	s.registerAdminRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AuthRequired())

	admin.GET("/settings-menu", s.GetSettingsMenu)
	admin.POST("/settings-menu/refresh", s.RateLimit(), s.RefreshSettingsMenu)

	admin.GET("/users/me/permissions", s.GetMyPermissions)
	admin.POST("/permissions/check", s.RateLimit(), s.CheckPermissions)
	admin.PUT("/users/:id/roles", s.RequirePermission(rbacdomain.ActionUsersUpdate), s.AssignRoles)

	admin.GET("/information", s.GetInformation)
}
