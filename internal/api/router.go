// Package api is the gateway's HTTP/WebSocket transport: a Gin engine
// wiring the use-case layer to routes, adapted from pkg/api/router.go
// (middleware setup, swagger mounting, route grouping) with the
// device.Controller-shaped route table replaced by the gateway's own
// status/control/wifi/jobs table, and bound under both a versioned and
// an unversioned prefix so older clients pinned to the bare /api path
// keep working.
package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/zbgw/gatewayd/internal/usecases"
	"github.com/zbgw/gatewayd/internal/wsbroadcast"
)

// Router holds the Gin engine and its dependencies.
type Router struct {
	engine *gin.Engine
}

// NewRouter builds the engine, mounts middleware, and registers every
// route.
func NewRouter(svc *usecases.Service, broadcaster *wsbroadcast.Broadcaster) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	setupMiddleware(engine)

	h := NewHandlers(svc)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	engine.GET("/docs", func(c *gin.Context) { c.Redirect(301, "/swagger/index.html") })
	engine.GET("/ws", wsHandler(broadcaster))
	engine.GET("/health", h.Health)

	registerAPIRoutes(engine.Group("/api/v1"), h)
	registerAPIRoutes(engine.Group("/api"), h)

	return &Router{engine: engine}
}

func registerAPIRoutes(g *gin.RouterGroup, h *Handlers) {
	g.GET("/status", h.Status)
	g.GET("/health", h.Health)
	g.GET("/lqi", h.LQI)
	g.POST("/permit_join", h.PermitJoin)
	g.POST("/control", h.Control)
	g.POST("/delete", h.DeleteDevice)
	g.POST("/rename", h.RenameDevice)
	g.GET("/wifi/scan", h.WifiScan)
	g.POST("/settings/wifi", h.SaveWifi)
	g.POST("/reboot", h.Reboot)
	g.POST("/factory_reset", h.FactoryReset)
	g.POST("/jobs", h.SubmitJob)
	g.GET("/jobs/:id", h.GetJob)
}

// Run starts the HTTP server.
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}

// Engine exposes the underlying gin.Engine, e.g. for http.Server-based
// graceful shutdown in the composition root.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
