package handlers

import (
	"strings"

	"routeengine/internal/domain"

	"github.com/gin-gonic/gin"
)

// requestContext reads the caller identity Auth left on the context.
func requestContext(c *gin.Context) domain.RequestContext {
	return domain.RequestContext{
		UserID: c.GetString("userID"),
		Role:   c.GetString("userRole"),
	}
}

// formValue reads a multipart/urlencoded field, falling back to the query string.
func formValue(c *gin.Context, key string) string {
	if v := strings.TrimSpace(c.PostForm(key)); v != "" {
		return v
	}
	return strings.TrimSpace(c.Query(key))
}
