package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/stratmarket/engine/config"
	"github.com/stratmarket/engine/internal/metrics"
	"github.com/stratmarket/engine/internal/payment"
	"github.com/stratmarket/engine/internal/scheduler"
	"github.com/stratmarket/engine/internal/storage"
	"github.com/stratmarket/engine/internal/types"
)

// StrategyExecutor is the orchestrator surface the execute endpoint needs.
type StrategyExecutor interface {
	Validate(strategy *types.Strategy) error
	Execute(ctx context.Context, strategy *types.Strategy) types.StrategyExecutionResult
}

type Server struct {
	cfg      *config.Config
	db       storage.Store
	gate     *payment.Gate
	executor StrategyExecutor
	sched    *scheduler.Scheduler
	registry *metrics.Registry
	logger   *logrus.Logger

	echo *echo.Echo
}

// NewServer wires the HTTP surface. All collaborators are passed in; the
// server owns none of their lifecycles.
func NewServer(
	cfg *config.Config,
	db storage.Store,
	gate *payment.Gate,
	executor StrategyExecutor,
	sched *scheduler.Scheduler,
	registry *metrics.Registry,
	logger *logrus.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		db:       db,
		gate:     gate,
		executor: executor,
		sched:    sched,
		registry: registry,
		logger:   logger.WithField("service", "engine-server").Logger,
	}
}

func (s *Server) StartServer() error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M"))
	e.Use(middleware.CORS())
	limiterStore := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{Rate: 5, Burst: 30, ExpiresIn: 5 * time.Minute},
	)
	e.Use(middleware.RateLimiter(limiterStore))

	e.Validator = NewRequestValidator()

	s.echo = e
	s.registerRoutes(e)

	return e.Start(fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port))
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/ping", s.Ping)
	e.GET("/metrics", echo.WrapHandler(s.registry))

	e.POST("/strategies", s.CreateStrategy)
	e.GET("/strategies", s.GetStrategies)
	e.GET("/strategies/:strategyId", s.GetStrategy)
	e.GET("/users/:address/purchases", s.GetUserPurchases)

	e.POST("/purchase", s.Purchase)
	e.POST("/execute", s.Execute)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.echo == nil {
		return nil
	}
	return s.echo.Shutdown(ctx)
}

func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "Strategy engine is running")
}
