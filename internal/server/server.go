package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/petroasset/apiserver/config"
	"github.com/petroasset/apiserver/internal/cache"
	"github.com/petroasset/apiserver/internal/db"
	"github.com/petroasset/apiserver/internal/handlers"
	"github.com/petroasset/apiserver/internal/logger"
	"github.com/petroasset/apiserver/internal/mq"
	"github.com/petroasset/apiserver/internal/realtime"
	"github.com/petroasset/apiserver/internal/services"
	"github.com/petroasset/apiserver/internal/storage"
	"github.com/petroasset/apiserver/internal/store"
	"github.com/petroasset/apiserver/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	requestTimeout       = 60 * time.Second
	blacklistSweepPeriod = time.Hour
	consumerRetryDelay   = 5 * time.Second
)

// Server wraps the HTTP server, its router and the background workers.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	logger     *zap.Logger
	logs       *services.LogService
	broker     *mq.MQ
	objects    *storage.Storage
	redis      *redis.Client

	closeStreams func()
	stopWorkers  context.CancelFunc
	workers      sync.WaitGroup
}

// New connects every configured dependency, wires the services and
// registers the routes.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(log)

	s := &Server{logger: log}
	if err := s.connect(ctx, cfg); err != nil {
		s.closeDependencies()
		return nil, err
	}

	s.router = s.routes(cfg)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.httpServer.RegisterOnShutdown(s.closeStreams)
	return s, nil
}

func (s *Server) connect(ctx context.Context, cfg config.Config) error {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	s.db = dbConn

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		s.redis = client
	}

	objects, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	s.objects = objects

	broker, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		return err
	}
	s.broker = broker
	return nil
}

func (s *Server) routes(cfg config.Config) *chi.Mux {
	userRepo := store.NewUserRepository(s.db)
	roleRepo := store.NewRoleRepository(s.db)
	warehouseRepo := store.NewWarehouseRepository(s.db)
	equipmentRepo := store.NewEquipmentRepository(s.db)
	inventoryRepo := store.NewInventoryRepository(s.db)
	blacklistRepo := store.NewTokenBlacklistRepository(s.db)

	hub := realtime.NewHub(s.logger.Named("realtime"))
	codes := services.NewSequenceService(store.NewSequenceRepository(s.db))
	blacklist := cache.NewTokenBlacklist(blacklistRepo, s.redis)

	// A nil *storage.Storage must not reach the services as a non-nil
	// interface.
	var images services.ImageStore
	if s.objects != nil {
		images = s.objects
	}

	s.logs = services.NewLogService(store.NewLogRepository(s.db), s.logger.Named("audit"))
	notificationService := services.NewNotificationService(store.NewNotificationRepository(s.db), userRepo, hub, s.logger.Named("notifications"))

	var alerts services.StockAlertPublisher = notificationService
	if s.broker != nil {
		alerts = s.broker
	}

	authService := services.NewAuthService(
		userRepo,
		roleRepo,
		store.NewLoginHistoryRepository(s.db),
		services.NewTokenIssuer(cfg.JWT),
		blacklist,
		hub,
		s.logger.Named("auth"),
	)
	userService := services.NewUserService(userRepo, roleRepo, images, hub, s.logger.Named("users"))
	roleService := services.NewRoleService(roleRepo, userRepo, s.logger.Named("roles"))
	warehouseService := services.NewWarehouseService(warehouseRepo, codes, s.logger.Named("warehouses"))
	equipmentService := services.NewEquipmentService(equipmentRepo, codes, images, s.logger.Named("equipment"))
	inventoryService := services.NewInventoryService(inventoryRepo, warehouseRepo, equipmentRepo, codes, alerts, s.logger.Named("inventory"))

	s.startWorkers(notificationService, blacklistRepo)

	guard := handlers.NewGuard(authService, services.NewAuthorizer())
	notificationHandler := handlers.NewNotificationHandler(notificationService, hub)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(s.logger.Named("http")),
		middleware.Recoverer,
	)
	router.Get("/healthz", handlers.Healthz(s.db))

	router.Group(func(r chi.Router) {
		r.Use(handlers.AuditLog(s.logs))
		r.With(guard.AuthenticateStream).Get("/notifications/stream", notificationHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Route("/auth", func(r chi.Router) {
				handlers.AuthRouter(r, authService, guard)
			})
			r.Group(func(r chi.Router) {
				r.Use(guard.Authenticate)
				r.Route("/inventory", func(r chi.Router) {
					handlers.InventoryRouter(r, inventoryService, guard)
				})
				r.Route("/equipment", func(r chi.Router) {
					handlers.EquipmentRouter(r, equipmentService, guard)
				})
				r.Route("/warehouses", func(r chi.Router) {
					handlers.WarehouseRouter(r, warehouseService, guard)
				})
				r.Route("/roles", func(r chi.Router) {
					handlers.RoleRouter(r, roleService, guard)
				})
				r.Route("/users", func(r chi.Router) {
					handlers.UserRouter(r, userService, guard)
				})
				r.Route("/logs", func(r chi.Router) {
					handlers.LogRouter(r, s.logs, guard)
				})
				r.Route("/notifications", func(r chi.Router) {
					handlers.NotificationRouter(r, notificationHandler, guard)
				})
			})
		})
	})

	s.closeStreams = notificationHandler.CloseStreams
	return router
}

// startWorkers launches the audit log writer, the stock alert consumer and
// the blacklist sweep.
func (s *Server) startWorkers(notifications *services.NotificationService, blacklist *store.TokenBlacklistRepository) {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWorkers = cancel

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		s.logs.Run(ctx)
	}()

	if s.broker != nil {
		s.workers.Add(1)
		go func() {
			defer s.workers.Done()
			s.consumeStockAlerts(ctx, notifications)
		}()
	}

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		s.sweepBlacklist(ctx, blacklist)
	}()
}

// consumeStockAlerts turns brokered alerts into notifications, resubscribing
// after backend failures until ctx is done.
func (s *Server) consumeStockAlerts(ctx context.Context, notifications *services.NotificationService) {
	log := s.logger.Named("mq")
	onMalformed := func(msg mq.Message, err error) {
		log.Warn("dropping malformed stock alert", zap.String("message_id", msg.ID), zap.Error(err))
	}
	handle := func(ctx context.Context, alert types.StockAlert) error {
		return notifications.PublishStockAlert(ctx, alert)
	}

	for {
		err := s.broker.ConsumeStockAlerts(ctx, handle, onMalformed)
		if ctx.Err() != nil {
			return
		}
		log.Error("stock alert consumer stopped", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(consumerRetryDelay):
		}
	}
}

func (s *Server) sweepBlacklist(ctx context.Context, blacklist *store.TokenBlacklistRepository) {
	ticker := time.NewTicker(blacklistSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := blacklist.DeleteExpired(ctx, now)
			if err != nil {
				s.logger.Warn("sweep token blacklist", zap.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Info("expired tokens removed", zap.Int64("count", removed))
			}
		}
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, flushes the audit log and closes
// every dependency.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	if s.logs != nil {
		if closeErr := s.logs.Close(ctx); closeErr != nil {
			s.logger.Warn("flush audit log", zap.Error(closeErr))
		}
	}
	if s.stopWorkers != nil {
		s.stopWorkers()
	}
	s.workers.Wait()

	s.closeDependencies()
	_ = s.logger.Sync()
	return err
}

func (s *Server) closeDependencies() {
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Warn("close broker", zap.Error(err))
		}
	}
	if s.objects != nil {
		if err := s.objects.Close(); err != nil {
			s.logger.Warn("close storage", zap.Error(err))
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
