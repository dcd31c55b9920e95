package api

import (
	"log"
	stdhttp "net/http"
	"time"

	intconfig "routeengine/internal/config"
	h "routeengine/internal/http/handlers"
	"routeengine/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(env intconfig.Env, fr *h.FastestRoute) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		log.Printf("warning: failed to set trusted proxies: %v", err)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.Auth([]byte(env.JWTSecret)))
	{
		api.GET("/health", h.Health)
		api.GET("/routes", h.Routes)

		admin := middleware.RequireRoles("admin")
		limited := middleware.RateLimit(env.RateLimitPerMinute, time.Minute)

		fastest := api.Group("/fastest-route")
		mount(fastest, stdhttp.MethodGet, "", h.AccessRateLimited, limited, fr.Fastest)
		mount(fastest, stdhttp.MethodGet, "/cheapest", h.AccessRateLimited, limited, fr.Cheapest)
		mount(fastest, stdhttp.MethodGet, "/least-transfers", h.AccessRateLimited, limited, fr.LeastTransfers)
		mount(fastest, stdhttp.MethodGet, "/nearby", h.AccessRateLimited, limited, fr.Nearby)
		mount(fastest, stdhttp.MethodGet, "/options", h.AccessRateLimited, limited, fr.Options)
		mount(fastest, stdhttp.MethodGet, "/options/pdf", h.AccessRateLimited, limited, fr.OptionsPDF)
		mount(fastest, stdhttp.MethodGet, "/graph-status", h.AccessPublic, fr.GraphStatus)
		mount(fastest, stdhttp.MethodPost, "/build-graph", h.AccessAdmin, admin, fr.BuildGraph)
		mount(fastest, stdhttp.MethodGet, "/cache-stats", h.AccessAdmin, admin, fr.CacheStats)
		mount(fastest, stdhttp.MethodDelete, "/cache", h.AccessAdmin, admin, fr.ClearCache)
		mount(fastest, stdhttp.MethodPost, "/import-data", h.AccessAdmin, admin, fr.ImportData)
	}

	h.SetRouter(r)
	return r
}

// mount registers a route and records its access level for /api/routes.
func mount(g *gin.RouterGroup, method, path, level string, handlers ...gin.HandlerFunc) {
	g.Handle(method, path, handlers...)
	h.SetRouteAccess(method, g.BasePath()+path, level)
}
