// Package server wires the HTTP routes onto a gin engine.
package server

import (
	"log/slog"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/handler"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers groups everything the router dispatches to
type Handlers struct {
	Devices *handler.DeviceHandler
	Calls   *handler.CallHandler
}

// Options tune the router
type Options struct {
	CORSOrigins []string
	// SwaggerFile is the path of the OpenAPI document; empty disables /swagger.
	SwaggerFile string
	Logger      *slog.Logger
}

// NewRouter builds the gin engine serving the public API
func NewRouter(h Handlers, opts Options) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(opts.Logger))
	router.Use(middleware.CORSMiddleware(opts.CORSOrigins))

	if opts.SwaggerFile != "" {
		router.StaticFile("/docs/swagger.json", opts.SwaggerFile)
		url := ginSwagger.URL("/docs/swagger.json")
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, url))
	}

	// Health check
	router.GET("/", handler.Health)

	// Devices
	router.GET("/devices", h.Devices.List)
	router.POST("/devices", h.Devices.Register)
	router.DELETE("/devices/:identifier", h.Devices.Deregister)

	// Calls
	router.POST("/incoming", h.Calls.Incoming)
	router.POST("/dial", h.Calls.Dial)

	return router
}
