package httpapi

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AmitRK9819/pulsegov/internal/config"
	"github.com/AmitRK9819/pulsegov/internal/http/handlers"
	"github.com/AmitRK9819/pulsegov/internal/http/middleware"

	_ "github.com/AmitRK9819/pulsegov/docs"
)

// Router exposes the read endpoints of the services h carries.
func Router(cfg config.Config, service string, h *handlers.Handler, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(service))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.AdminKeyHeader, middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" || cfg.CORSAllowed == "" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = strings.Split(cfg.CORSAllowed, ",")
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	if h.Deadlines != nil {
		api.GET("/sla/active", h.SLAActive)
	}
	if h.SLA != nil {
		api.GET("/sla/:complaintId", h.SLAStatus)
	}
	if h.Intelligence != nil {
		api.GET("/suggestions/:complaintId", h.Suggestions)
		api.GET("/network/:categoryId", h.Network)
	}

	if h.Sweeper != nil {
		admin := api.Group("")
		admin.Use(middleware.AdminKey(cfg.AdminKey))
		admin.POST("/sla/sweep", h.SLASweep)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
