package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/pharmacy-api/internal/middleware"
	"github.com/jwalitptl/pharmacy-api/pkg/metrics"
)

// BasePath prefixes every route.
const BasePath = "/api/v1"

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	ServiceName    string
	RateLimit      rate.Limit
	RateBurst      int
	CORSOrigins    []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Production     bool
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	health   Handler
	handlers []Handler
}

// NewRouter wires the middleware chain. health is mounted without
// authentication; handlers sit behind token verification and the route policy.
func NewRouter(
	auth *middleware.AuthMiddleware,
	health Handler,
	handlers []Handler,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config RouterConfig,
) *Router {
	if config.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(),
		otelgin.Middleware(config.ServiceName),
		middleware.Metrics(m),
		middleware.CORS(config.CORSOrigins),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		rateLimiter.RateLimit(),
		middleware.SizeLimit(config.MaxBodyBytes),
		middleware.Timeout(config.RequestTimeout),
		middleware.AuditClient(),
		middleware.ErrorHandler(),
	)

	r := &Router{
		engine:   engine,
		auth:     auth,
		health:   health,
		handlers: handlers,
	}
	r.setup()
	return r
}

func (r *Router) setup() {
	api := r.engine.Group(BasePath)

	r.health.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(
		r.auth.Authenticate(),
		r.auth.Authorize(),
	)
	for _, h := range r.handlers {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
