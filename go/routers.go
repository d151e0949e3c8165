package orderserver

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Route is the information for every URI.
type Route struct {
	// Name is the name of this Route.
	Name string
	// Method is the string for the HTTP method. ex) GET, POST etc..
	Method string
	// Pattern is the pattern of the URI.
	Pattern string
	// HandlerFunc is the handler function of this route.
	HandlerFunc gin.HandlerFunc
}

// ApiHandleFunctions groups the API handlers mounted by NewRouter.
type ApiHandleFunctions struct {
	OrderAPI OrderAPI
}

// RouterOptions configures the middleware chain around the API routes.
type RouterOptions struct {
	ServiceName string
	Logger      *slog.Logger
	// Registry receives the HTTP server metrics and backs /metrics. Nil disables both.
	Registry  *prometheus.Registry
	RateLimit RateLimitConfig
}

// NewRouter returns a new router.
func NewRouter(handleFunctions ApiHandleFunctions, opts RouterOptions) *gin.Engine {
	return NewRouterWithGinEngine(gin.New(), handleFunctions, opts)
}

// NewRouterWithGinEngine adds the routes and middleware to an existing gin engine.
func NewRouterWithGinEngine(router *gin.Engine, handleFunctions ApiHandleFunctions, opts RouterOptions) *gin.Engine {
	router.Use(gin.CustomRecovery(func(c *gin.Context, _ any) {
		orderResponder.InternalError(c, "unexpected server error")
	}))
	if opts.ServiceName != "" {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}
	if opts.Logger != nil {
		router.Use(RequestLogger(opts.Logger))
	}
	if opts.Registry != nil {
		router.Use(NewServerMetrics(opts.Registry).Middleware())
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/")
	api.Use(RateLimit(opts.RateLimit, opts.Logger))
	for _, route := range getRoutes(handleFunctions) {
		if route.HandlerFunc == nil {
			route.HandlerFunc = DefaultHandleFunc
		}
		api.Handle(route.Method, route.Pattern, route.HandlerFunc)
	}
	return router
}

// DefaultHandleFunc is the default handler for routes without an implementation.
func DefaultHandleFunc(c *gin.Context) {
	c.String(http.StatusNotImplemented, "501 not implemented")
}

func getRoutes(handleFunctions ApiHandleFunctions) []Route {
	return []Route{
		{
			"CreateOrder",
			http.MethodPost,
			"/api/orders",
			handleFunctions.OrderAPI.CreateOrder,
		},
		{
			"ListOrders",
			http.MethodGet,
			"/api/orders",
			handleFunctions.OrderAPI.ListOrders,
		},
		{
			"GetOrder",
			http.MethodGet,
			"/api/orders/:orderId",
			handleFunctions.OrderAPI.GetOrder,
		},
		{
			"DeleteOrder",
			http.MethodDelete,
			"/api/orders/:orderId",
			handleFunctions.OrderAPI.DeleteOrder,
		},
		{
			"UpdateOrderStatus",
			http.MethodPut,
			"/api/orders/:orderId/status",
			handleFunctions.OrderAPI.UpdateOrderStatus,
		},
		{
			"GetPendingAmount",
			http.MethodGet,
			"/api/orders/clients/:clientId/pending-amount",
			handleFunctions.OrderAPI.GetPendingAmount,
		},
	}
}
