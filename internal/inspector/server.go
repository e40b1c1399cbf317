package inspector

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/GriffinCanCode/viewbridge/internal/app"
	"github.com/GriffinCanCode/viewbridge/internal/config"
	"github.com/GriffinCanCode/viewbridge/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Addr      string
	Manager   *app.Manager
	Metrics   *monitoring.Metrics
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
	CORS      CORSConfig
	RateLimit *RateLimitConfig
	// Development keeps gin in debug mode.
	Development bool
}

// FromConfig builds Options from application configuration.
func FromConfig(cfg *config.Config, manager *app.Manager) Options {
	opts := Options{
		Addr:        net.JoinHostPort(cfg.Inspector.Host, cfg.Inspector.Port),
		Manager:     manager,
		CORS:        DefaultCORSConfig(),
		Development: cfg.Logging.Development,
	}
	if cfg.RateLimit.Enabled {
		rl := DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		opts.RateLimit = &rl
	}
	return opts
}

// Server is the inspector HTTP API.
type Server struct {
	router *gin.Engine
	opts   Options
	log    *zap.Logger
}

// NewServer builds the router. Every mutating route runs on the host
// goroutine through the manager.
func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	if !opts.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(Trace(log))
	router.Use(monitoring.Middleware(opts.Metrics))
	router.Use(CORS(opts.CORS))
	if opts.RateLimit != nil {
		log.Info("Rate limiting enabled",
			zap.Int("rps", opts.RateLimit.RequestsPerSecond),
			zap.Int("burst", opts.RateLimit.Burst),
		)
		router.Use(RateLimit(*opts.RateLimit))
	}

	h := NewHandlers(opts.Manager, opts.Metrics, log)
	stream := NewStream(opts.Manager, opts.Metrics, log)

	router.GET("/health", h.Health)
	router.GET("/stats", h.Stats)

	views := router.Group("/views")
	views.GET("", h.ListViews)
	views.POST("", h.SpawnView)
	views.GET("/:name", h.GetView)
	views.DELETE("/:name", h.CloseView)
	views.POST("/:name/navigate", h.Navigate)
	views.POST("/:name/script", h.Script)
	views.PUT("/:name/size", h.Resize)
	views.PUT("/:name/transparent", h.SetTransparent)
	views.PUT("/:name/enabled", h.SetEnabled)
	views.POST("/:name/mouse", h.Mouse)
	views.POST("/:name/key", h.Key)
	views.GET("/:name/frame", h.Frame)

	input := router.Group("/input")
	input.POST("/mouse", h.RouteMouse)
	input.POST("/key", h.RouteKey)

	router.GET("/manifest", h.ExportManifest)
	router.POST("/manifest", h.ImportManifest)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	router.GET("/stream", stream.HandleConnection)

	return &Server{router: router, opts: opts, log: log}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down. Stream connections end
// with ctx.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting inspector", zap.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("Shutting down inspector")
	return srv.Shutdown(shutdownCtx)
}
