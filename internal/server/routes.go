package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ledgerH "github.com/openmined/sitesync/internal/server/handlers/ledger"
	"github.com/openmined/sitesync/internal/server/middlewares"
	"github.com/openmined/sitesync/internal/version"
)

func SetupRoutes(backend ledgerH.Backend, cfg *Config) http.Handler {
	r := gin.New()

	h := ledgerH.New(backend)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())
	if cfg != nil && cfg.CertFile != "" {
		r.Use(middlewares.HSTS())
	}

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	if cfg != nil && cfg.RateLimit != "" {
		v1.Use(middlewares.RateLimiter(cfg.RateLimit))
	}
	{
		v1.POST("/sites", h.CreateSite)
		v1.GET("/sites/:site_id", h.GetSite)
		v1.POST("/sites/:site_id/batches", h.Submit)
	}

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"name":    version.AppName + " dev ledger",
		"version": version.Short(),
	})
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
