package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	_ "truckflow/docs"
	"truckflow/pkg/auth"
	"truckflow/pkg/config"
	"truckflow/pkg/conn"
	"truckflow/pkg/geo"
	geomemory "truckflow/pkg/geo/memory"
	georedis "truckflow/pkg/geo/redis"
	"truckflow/pkg/logger"
	"truckflow/pkg/notify"
	"truckflow/pkg/order"
	ordermemory "truckflow/pkg/order/memory"
	orderpg "truckflow/pkg/order/postgres"
	"truckflow/pkg/otel"
)

var (
	log        *logger.Logger
	tracer     trace.Tracer
	verifier   *auth.RedisVerifier
	geoCache   geo.Cache
	registry   *conn.Registry
	bus        *notify.Bus
	repo       order.Repository
	controller *order.Controller
)

// @title TruckFlow API
// @version 1.0
// @description Live food-truck discovery and real-time order notifications
// @host localhost:8443
// @BasePath /
func main() {
	log = logger.New(os.Stdout, logger.LevelInfo, "truckflow", otel.GetTraceID)
	defer log.Sync()

	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Error(ctx, "load config", "error", err)
		os.Exit(1)
	}

	tp, shutdown, err := otel.InitTracing(log, otel.Config{
		ServiceName: cfg.Service,
		Host:        cfg.OtelHost,
		Probability: cfg.TraceProbability,
	})
	if err != nil {
		log.Error(ctx, "init tracing", "error", err)
		os.Exit(1)
	}
	defer shutdown(context.Background())
	tracer = tp.Tracer(cfg.Service)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	verifier = auth.NewRedisVerifier(redisClient, time.Duration(cfg.SessionTTLMinutes)*time.Minute)

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error(ctx, "db connect", "error", err)
			os.Exit(1)
		}
		if _, err := db.Exec(orderpg.Schema); err != nil {
			log.Error(ctx, "create orders table", "error", err)
			os.Exit(1)
		}
		repo = orderpg.New(db)
	} else {
		log.Warn(ctx, "no database configured, orders held in memory")
		repo = ordermemory.New()
	}

	switch cfg.GeoBackend {
	case config.GeoBackendRedis:
		geoCache = georedis.New(redisClient)
	default:
		geoCache = geomemory.New()
	}
	log.Info(ctx, "geo cache ready", "backend", cfg.GeoBackend)

	registry = conn.NewRegistry()
	bus = notify.NewBus(registry, log)
	controller = order.NewController(repo, bus, log)

	r := mux.NewRouter()
	r.Use(traceMiddleware, metricsMiddleware)
	r.HandleFunc("/login", loginHandler).Methods(http.MethodPost)
	r.HandleFunc("/vendors/nearby", nearbyHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws/location", locationSocketHandler)
	r.HandleFunc("/ws/notifications", notificationSocketHandler)

	api := r.PathPrefix("/orders").Subrouter()
	api.Use(authMiddleware)
	api.HandleFunc("", createOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("", listOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/{id}", getOrderHandler).Methods(http.MethodGet)
	api.HandleFunc("/{id}/status", updateOrderStatusHandler).Methods(http.MethodPut)

	r.Handle("/metrics", promhttp.Handler())
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", cfg.Addr)
		serverErr <- srv.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Error(ctx, "server closed", "error", err)
	case sig := <-quit:
		log.Info(ctx, "shutdown signal received", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "graceful shutdown", "error", err)
		}
	}
}
