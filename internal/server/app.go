// Package server wires the identity service together: storage, token
// stores, session and verification workflows, notification delivery, the
// retention sweeper, the gRPC endpoint and the metrics endpoint.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/utask/internal/logging"
	"github.com/dmitrijs2005/utask/internal/server/auth"
	"github.com/dmitrijs2005/utask/internal/server/config"
	"github.com/dmitrijs2005/utask/internal/server/metrics"
	"github.com/dmitrijs2005/utask/internal/server/notify"
	"github.com/dmitrijs2005/utask/internal/server/ratelimit"
	"github.com/dmitrijs2005/utask/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/utask/internal/server/services"
	"github.com/dmitrijs2005/utask/internal/server/sweeper"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/utask/internal/server/grpc"
)

const notificationQueueSize = 256

var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	registry     *prometheus.Registry
	sessions     *services.SessionIssuer
	verification *services.VerificationWorkflow
	sweeper      *sweeper.Sweeper
	dispatcher   *notify.Dispatcher
	closers      []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(app.registry)

	clock := clockwork.NewRealClock()

	sender, closeSender, err := newSender(ctx, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("notifier: %w", err)
	}
	app.closers = append(app.closers, closeSender)
	app.dispatcher = notify.NewDispatcher(sender, c.MailBaseURL, notificationQueueSize, clock, logger, m)

	limiter, closeLimiter := newLimiter(c)
	app.closers = append(app.closers, closeLimiter)

	codec := auth.NewCodec([]byte(c.SecretKey), c.AccessTokenValidityDuration, clock)
	hasher := auth.DefaultArgon2Hasher()
	refresh := services.NewRefreshTokenStore(db, rm, c.RefreshTokenValidityDuration, c.StoreTimeout)
	confirm := services.NewConfirmationTokenStore(db, rm, c.ConfirmationWindow(), c.StoreTimeout, m)

	app.sessions = services.NewSessionIssuer(services.SessionIssuerDeps{
		DB:           db,
		Repositories: rm,
		Codec:        codec,
		Refresh:      refresh,
		Hasher:       hasher,
		Limiter:      limiter,
		Clock:        clock,
		StoreTimeout: c.StoreTimeout,
		Logger:       logger,
		Metrics:      m,
	})

	app.verification = services.NewVerificationWorkflow(services.VerificationWorkflowDeps{
		DB:             db,
		Repositories:   rm,
		Tokens:         confirm,
		Hasher:         hasher,
		Notifier:       app.dispatcher,
		Clock:          clock,
		ResendCooldown: c.ResendCooldown,
		StoreTimeout:   c.StoreTimeout,
		Logger:         logger,
	})

	app.sweeper = sweeper.New(refresh, confirm, c.SweepInterval, clock, logger, m)

	return app, nil
}

// newSender builds the delivery backend selected by NotifierBackend. The
// returned func releases its resources.
func newSender(ctx context.Context, c *config.Config, logger logging.Logger) (notify.Sender, func() error, error) {
	nop := func() error { return nil }

	switch c.NotifierBackend {
	case config.NotifierLog, "":
		return notify.NewLogSender(logger), nop, nil
	case config.NotifierKafka:
		s := notify.NewKafkaSender(c.KafkaBrokers, c.KafkaTopicPrefix)
		return s, s.Close, nil
	case config.NotifierS3:
		s, err := notify.NewS3Sender(ctx, notify.S3Options{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, nop, nil
	default:
		return nil, nil, fmt.Errorf("unknown notifier backend %q", c.NotifierBackend)
	}
}

// newLimiter shares login counters through Redis when RedisAddr is set and
// keeps them in process otherwise.
func newLimiter(c *config.Config) (ratelimit.Limiter, func() error) {
	if c.LoginRateLimit <= 0 {
		return ratelimit.Unlimited{}, func() error { return nil }
	}
	if c.RedisAddr == "" {
		return ratelimit.NewMemory(c.LoginRateLimit, c.LoginRateWindow), func() error { return nil }
	}

	client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	return ratelimit.NewRedis(client, c.LoginRateLimit, c.LoginRateWindow, ""), client.Close
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.sessions, app.verification)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
	return mux
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.MetricsAddr,
		Handler:           app.metricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = app.sweeper.Run(ctx)
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	app.shutdown(context.Background())
}

func (app *App) shutdown(ctx context.Context) {
	app.dispatcher.Close()

	for _, c := range app.closers {
		if err := c(); err != nil {
			app.logger.Warn(ctx, "close failed", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
}
