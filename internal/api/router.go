package api

import (
	"net/http"

	"keyactivate/internal/activation"
	"keyactivate/internal/handlers"
	"keyactivate/internal/middleware"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Options toggles optional routes.
type Options struct {
	APIDocs bool
}

// NewRouter builds the gin engine with the middleware chain and every route.
func NewRouter(svc *activation.Service, db handlers.Pinger, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.LoggerMiddleware())

	RegisterRoutes(r, svc, db)

	if opts.APIDocs {
		// wildcard first to avoid gin routing conflicts
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))
		r.GET("/swagger", func(c *gin.Context) {
			c.Redirect(http.StatusFound, "/swagger/index.html")
		})
	}
	return r
}

func RegisterRoutes(r *gin.Engine, svc *activation.Service, db handlers.Pinger) {
	r.GET("/", handlers.RootHandler)

	r.POST("/activate", func(c *gin.Context) {
		handlers.ActivateHandler(c, svc)
	})

	r.GET("/readyz", func(c *gin.Context) {
		handlers.ReadyHandler(c, db)
	})
}
