package handlers

import (
	"net/http"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
)

// Access levels shown by /api/routes.
const (
	AccessPublic      = "public"
	AccessAdmin       = "admin"
	AccessRateLimited = "rate-limited"
)

var (
	routerMu sync.RWMutex
	router   *gin.Engine
	access   = map[string]string{}
)

// SetRouter stores the active gin engine for later inspection (e.g., /api/routes).
func SetRouter(r *gin.Engine) {
	routerMu.Lock()
	defer routerMu.Unlock()
	router = r
}

// SetRouteAccess records who may call method+path. Unrecorded routes list as public.
func SetRouteAccess(method, path, level string) {
	routerMu.Lock()
	defer routerMu.Unlock()
	access[method+" "+path] = level
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "route engine running"})
}

// Routes lists the mounted endpoints with their access level, so operators can
// see which calls need an admin token and which count against the search limit.
func Routes(c *gin.Context) {
	routerMu.RLock()
	defer routerMu.RUnlock()
	if router == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "router not ready"})
		return
	}

	routes := router.Routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	out := make([]gin.H, 0, len(routes))
	for _, rt := range routes {
		level, ok := access[rt.Method+" "+rt.Path]
		if !ok {
			level = AccessPublic
		}
		out = append(out, gin.H{
			"method":  rt.Method,
			"path":    rt.Path,
			"access":  level,
			"handler": rt.Handler,
		})
	}
	c.JSON(http.StatusOK, gin.H{"routes": out})
}
