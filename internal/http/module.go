// Package http holds the pieces shared by the router and the domain modules:
// the Module contract, the route groups handed to modules and the App the
// composition root fills in.
package http

import (
	"leadflow_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// Module is implemented by every package that serves HTTP routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the route groups a module may mount on.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1 without auth.
	V1 *gin.RouterGroup
	// Protected requires a valid access token.
	Protected *gin.RouterGroup
	// Admin requires the admin role and lives under /api/v1/admin.
	Admin *gin.RouterGroup
	// Webhooks is rate limited and unauthenticated; receivers check
	// provider signatures.
	Webhooks *gin.RouterGroup
	Config   config.JWTConfig
}
