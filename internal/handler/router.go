package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"marmite-orders/internal/domain/user"
	"marmite-orders/internal/handler/api"
	"marmite-orders/internal/handler/middleware"
	"marmite-orders/internal/infra/metrics"
	"marmite-orders/internal/pkg/config"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
	Mw      []gin.HandlerFunc
}

func NewRouter(
	engine *gin.Engine,
	cfg config.Config,
	authHandler *api.AuthHandler,
	orderHandler *api.OrderHandler,
	batchHandler *api.BatchHandler,
	webhookHandler *api.WebhookHandler,
	authMiddleware *middleware.AuthMiddleware,
	m *metrics.Metrics,
) {
	setupMiddleware(engine, cfg)
	setupRoutes(engine, authHandler, orderHandler, batchHandler, webhookHandler, authMiddleware, m)
}

func setupMiddleware(engine *gin.Engine, cfg config.Config) {
	// Recovery must be first (outermost) to catch panics from all other middleware
	engine.Use(middleware.CustomRecovery())
	engine.Use(middleware.NewCORSMiddleware(cfg.CORS))
	engine.Use(middleware.LoggingMiddleware(nil, cfg.Log))
	engine.Use(middleware.ErrorHandler())
}

func setupRoutes(
	engine *gin.Engine,
	authHandler *api.AuthHandler,
	orderHandler *api.OrderHandler,
	batchHandler *api.BatchHandler,
	webhookHandler *api.WebhookHandler,
	authMiddleware *middleware.AuthMiddleware,
	m *metrics.Metrics,
) {
	engine.GET("/health", healthCheck)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	if gin.Mode() == gin.DebugMode {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	apiGroup := engine.Group("/api")
	{
		auth := apiGroup.Group("/auth")
		{
			addRoutes(auth, []route{
				{Method: http.MethodPost, Path: "/login", Handler: authHandler.Login},
			})

			authRequired := auth.Group("")
			authRequired.Use(authMiddleware.RequireAuth())
			addRoutes(authRequired, []route{
				{Method: http.MethodPost, Path: "/logout", Handler: authHandler.Logout},
				{Method: http.MethodGet, Path: "/me", Handler: authHandler.Me},
			})
		}

		batches := apiGroup.Group("/batches")
		{
			addRoutes(batches, []route{
				{Method: http.MethodGet, Path: "/next", Handler: batchHandler.GetNextBatch},
				{Method: http.MethodGet, Path: "/:id", Handler: batchHandler.GetBatch},
			})
		}

		orders := apiGroup.Group("/orders")
		{
			// The provider cannot authenticate; the signature header is the gate.
			addRoutes(orders, []route{
				{Method: http.MethodPost, Path: "/stripe-webhook", Handler: webhookHandler.HandleStripeWebhook},
			})

			adminOnly := []gin.HandlerFunc{authMiddleware.RequireRoleAtLeast(user.RoleAdmin)}

			authed := orders.Group("")
			authed.Use(authMiddleware.RequireAuth())
			addRoutes(authed, []route{
				{Method: http.MethodPost, Path: "", Handler: orderHandler.CreateOrder},
				{Method: http.MethodGet, Path: "", Handler: orderHandler.GetUserOrders},
				{Method: http.MethodGet, Path: "/webhook-stats", Handler: webhookHandler.GetWebhookStats, Mw: adminOnly},
				{Method: http.MethodPost, Path: "/clear-webhook-history", Handler: webhookHandler.ClearWebhookHistory, Mw: adminOnly},
				{Method: http.MethodGet, Path: "/:id", Handler: orderHandler.GetOrder},
				{Method: http.MethodPatch, Path: "/:id", Handler: orderHandler.UpdateOrder},
				{Method: http.MethodPost, Path: "/:id/cancel", Handler: orderHandler.CancelOrder},
				{Method: http.MethodGet, Path: "/:id/payment-status", Handler: orderHandler.GetPaymentStatus},
				{Method: http.MethodPost, Path: "/:id/sync-payment-status", Handler: webhookHandler.SyncPaymentStatus},
			})
		}
	}
}

// @Summary Health check
// @Description Check if the service is healthy
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Service is healthy",
	})
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		h := r.Handler
		if len(r.Mw) > 0 {
			h = chainHandlers(append(r.Mw, r.Handler)...)
		}
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, h)
		case http.MethodPost:
			g.POST(r.Path, h)
		case http.MethodPut:
			g.PUT(r.Path, h)
		case http.MethodPatch:
			g.PATCH(r.Path, h)
		case http.MethodDelete:
			g.DELETE(r.Path, h)
		default:
			g.Any(r.Path, h)
		}
	}
}

func chainHandlers(hs ...gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range hs {
			h(c)
			if c.IsAborted() {
				return
			}
		}
	}
}
