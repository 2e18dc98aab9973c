package routes

import (
	"log/slog"
	"net/http"

	"scalerrs-portal-api/internal/auth"
	"scalerrs-portal-api/internal/handlers"
	"scalerrs-portal-api/internal/metrics"
	"scalerrs-portal-api/internal/middleware"
	"scalerrs-portal-api/internal/realtime"
	"scalerrs-portal-api/internal/service"

	"github.com/gin-gonic/gin"
)

// Deps wires the router. Metrics, Tokens and Hub are optional.
type Deps struct {
	Service        *service.Service
	Tokens         *auth.Tokens
	Hub            *realtime.Hub
	Metrics        *metrics.Recorder
	Logger         *slog.Logger
	AllowedOrigins []string
	// TrustHeaders accepts x-user-* identity headers.
	TrustHeaders bool
	// RequireIdentity rejects anonymous API callers.
	RequireIdentity bool
}

func SetupRoutes(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.Metrics(d.Metrics), middleware.CORS(d.AllowedOrigins))

	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"message":    "Scalerrs portal API is running",
			"configured": d.Service.Configured(),
		})
	})
	ginRouter.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	h := handlers.New(handlers.Deps{Service: d.Service, Tokens: d.Tokens, Hub: d.Hub, Logger: logger})

	// Public routes (no identity required)
	api := ginRouter.Group("/api")
	{
		api.POST("/login", h.Login)
	}

	identified := api.Group("")
	identified.Use(middleware.IdentityMiddleware(middleware.IdentityOptions{
		Tokens:       d.Tokens,
		TrustHeaders: d.TrustHeaders,
		Require:      d.RequireIdentity,
	}))
	{
		identified.GET("/tasks", h.GetTasks)
		identified.PATCH("/tasks", h.PatchTasks)
		identified.GET("/approvals", h.GetApprovals)
		identified.PATCH("/approvals", h.PatchApprovals)
		identified.GET("/comments", h.GetComments)
		identified.POST("/comments", h.PostComment)
		identified.GET("/backlinks", h.GetBacklinks)
		identified.PATCH("/backlinks", h.PatchBacklinks)
		identified.GET("/kpis", h.GetKPIs)
		identified.GET("/clients", h.GetClients)
		identified.GET("/checklist", h.GetChecklist)
		identified.PUT("/checklist", h.PutChecklist)
		identified.GET("/ws", h.Subscribe)
	}

	staff := identified.Group("/cache")
	staff.Use(middleware.RequireStaff())
	{
		staff.GET("/stats", h.GetCacheStats)
		staff.DELETE("", h.ClearCache)
	}

	return ginRouter
}
