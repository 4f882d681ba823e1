package api

import (
	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/storefront/storefront-api/internal/api/handler"
	"github.com/storefront/storefront-api/internal/api/middleware"
	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/core/ports"
)

// Deps carries everything the router needs. Services are built by the caller
// so tests can hand in stubs.
type Deps struct {
	Logger       zerolog.Logger
	Verifier     ports.TokenVerifier
	AuthService  ports.AuthService
	Products     ports.ProductService
	Cart         ports.CartService
	HealthChecks []handler.DependencyCheck

	// Registry receives the HTTP metrics and backs /metrics. Nil means the
	// Prometheus default registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(echomiddleware.RequestLoggerWithConfig(requestLoggerConfig(d.Logger)))
	var (
		reg prometheus.Registerer = prometheus.DefaultRegisterer
		gat prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.Registry != nil {
		reg, gat = d.Registry, d.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "storefront",
		Registerer: reg,
	}))
	e.Use(middleware.Identity(d.Verifier, d.Logger))

	// --- Operational endpoints ---
	health := handler.NewHealthHandler(d.HealthChecks...)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gat}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Auth routes ---
	auth := handler.NewAuthHandler(d.AuthService)
	e.POST("/auth/register", auth.Register)
	e.POST("/auth/login", auth.Login)

	// --- Catalog ---
	products := handler.NewProductHandler(d.Products)
	e.GET("/products", products.List)
	e.GET("/products/:id", products.Get)
	adminOnly := middleware.RBAC(domain.RoleAdmin)
	e.POST("/products", products.Create, adminOnly)
	e.PUT("/products/:id", products.Update, adminOnly)
	e.DELETE("/products/:id", products.Delete, adminOnly)

	// --- Cart (owner scoped; anonymous callers get 401 from the service) ---
	cart := handler.NewCartHandler(d.Cart)
	g := e.Group("/cart")
	g.POST("", cart.Add)
	g.GET("", cart.List)
	g.DELETE("", cart.Clear)
	g.GET("/:id", cart.Get)
	g.PUT("/:id", cart.Update)
	g.DELETE("/:id", cart.Remove)

	return e
}

func requestLoggerConfig(log zerolog.Logger) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	}
}
