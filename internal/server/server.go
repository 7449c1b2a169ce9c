package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/taskhub/apiserver/config"
	"github.com/taskhub/apiserver/internal/db"
	"github.com/taskhub/apiserver/internal/handlers"
	"github.com/taskhub/apiserver/internal/logging"
	"github.com/taskhub/apiserver/internal/mailer"
	"github.com/taskhub/apiserver/internal/mq"
	"github.com/taskhub/apiserver/internal/services"
	"github.com/taskhub/apiserver/internal/storage"
	"github.com/taskhub/apiserver/internal/store"
	"go.uber.org/zap"
)

// Server wraps the HTTP server, router, and background workers.
type Server struct {
	httpServer   *http.Server
	router       *chi.Mux
	db           *sql.DB
	queue        *mq.MQ
	log          *zap.Logger
	cancelWorker context.CancelFunc
}

// New constructs a Server with all dependencies wired.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	log, err := logging.New()
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queue, err := newQueue(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	avatarStorage, err := newAvatarStorage(ctx, cfg, dbConn)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	sessionRepo := store.NewSessionRepository(dbConn)
	taskRepo := store.NewTaskRepository(dbConn)

	notifier := services.NewNotificationPublisher(queue, log)
	userService := services.NewUserService(userRepo, sessionRepo, notifier, cfg.JWT)
	taskService := services.NewTaskService(taskRepo)
	avatarService := services.NewAvatarService(avatarStorage)

	authMiddleware := handlers.RequireAuth(userService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, avatarService, authMiddleware)
	})
	router.Route("/tasks", func(r chi.Router) {
		handlers.TaskRouter(r, taskService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srv := &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		log:        log,
	}

	if queue != nil {
		srv.startMailWorker(cfg)
	}

	return srv, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.log.Info("server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.cancelWorker != nil {
		s.cancelWorker()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

// startMailWorker runs the notification consumer until Shutdown.
func (s *Server) startMailWorker(cfg config.Config) {
	var m mailer.Mailer
	if strings.TrimSpace(cfg.SendGrid.APIKey) != "" {
		m = mailer.NewSendGridMailer(cfg.SendGrid)
	} else {
		m = mailer.NewLogMailer(s.log)
	}

	worker := mailer.NewWorker(s.queue, m, s.log)

	workerCtx, cancel := context.WithCancel(context.Background())
	s.cancelWorker = cancel

	go func() {
		if err := worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("mail worker stopped", zap.Error(err))
		}
	}()
}

func newQueue(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQ.Backend {
	case "rabbitmq":
		backend, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	case "pubsub":
		backend, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

func newAvatarStorage(ctx context.Context, cfg config.Config, dbConn *sql.DB) (*storage.Storage, error) {
	switch cfg.Avatar.Backend {
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		st := storage.NewStorage(client)
		if err := st.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return st, nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		st := storage.NewStorage(client)
		if err := st.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return st, nil
	case "", "postgres":
		return storage.NewStorage(storage.NewPostgresClient(dbConn)), nil
	default:
		return nil, fmt.Errorf("unknown avatar backend %q", cfg.Avatar.Backend)
	}
}
