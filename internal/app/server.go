// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"callback-queue-service/internal/config"
	"callback-queue-service/internal/db"
	agentHandler "callback-queue-service/internal/handlers/agent"
	callbackHandler "callback-queue-service/internal/handlers/callback"
	wsHandler "callback-queue-service/internal/handlers/websocket"
	"callback-queue-service/internal/middleware"
	"callback-queue-service/internal/pkg/clock"
	"callback-queue-service/internal/pkg/jwt"
	"callback-queue-service/internal/repository/memory"
	"callback-queue-service/internal/repository/postgres"
	redisrepo "callback-queue-service/internal/repository/redis"
	callbackUsecase "callback-queue-service/internal/service/callback"
	"callback-queue-service/internal/service/notification"
	"callback-queue-service/internal/websocket"
	wsHandlers "callback-queue-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// directory is what the queue and the presence endpoint need from the
// agent roster.
type directory interface {
	callbackUsecase.AgentDirectory
	agentHandler.PresenceUpdater
}

type storage struct {
	store  callbackUsecase.Store
	agents directory
	close  func()
}

type Server struct {
	cfg    config.AppConfig
	logger *zap.Logger
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Run wires the service and blocks until ctx is cancelled or a component
// fails. Every component has stopped when Run returns.
func (s *Server) Run(ctx context.Context) error {
	logger := s.logger

	// ----- JWT -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	// ----- Storage -----
	st, err := s.openStorage(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	// ----- Retry policy -----
	policy, err := config.NewPolicyWatcher(s.cfg.PolicyFile, s.cfg.Policy, logger.Named("policy"))
	if err != nil {
		return fmt.Errorf("failed to load retry policy: %w", err)
	}

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(verifier, logger.Named("ws"))

	// ----- Notification sinks -----
	sinks := []notification.Sink{
		notification.NewLogSink(logger.Named("events")),
		notification.NewHubSink(hub),
	}
	if len(s.cfg.KafkaBrokers) > 0 {
		kafkaSink, err := notification.NewKafkaSink(s.cfg.KafkaBrokers, s.cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("failed to create kafka sink: %w", err)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		logger.Info("publishing callback events to kafka",
			zap.Strings("brokers", s.cfg.KafkaBrokers),
			zap.String("topic", s.cfg.KafkaTopic),
		)
	}

	// ----- Callback queue -----
	opts := callbackUsecase.DefaultOptions()
	opts.NotificationTTL = s.cfg.NotificationTTL
	opts.WriteAttempts = s.cfg.StoreWriteAttempts
	opts.WriteBackoff = s.cfg.StoreWriteBackoff
	opts.MinutesPerPosition = s.cfg.MinutesPerPosition
	opts.AutoPromoteScheduled = s.cfg.AutoPromoteScheduled

	queue := callbackUsecase.NewService(
		st.store,
		notification.NewDispatcher(sinks...),
		st.agents,
		policy,
		clock.Real(),
		logger.Named("queue"),
		opts,
	)
	ticker := callbackUsecase.NewTickScheduler(queue, s.cfg.TickInterval, logger.Named("ticker"))

	if err := hub.RegisterHandler(wsHandlers.NewCallbackHandler(queue)); err != nil {
		return fmt.Errorf("failed to register websocket handler: %w", err)
	}

	// ----- HTTP -----
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	SetupRouter(engine, logger, &Handlers{
		CallbackHandler: callbackHandler.NewCallbackHandler(queue, nil),
		AgentHandler:    agentHandler.NewAgentHandler(st.agents, logger),
		WSHandler:       wsHandler.NewWebSocketHandler(hub, s.cfg.AllowedOrigins, logger),
		AuthMiddleware:  middleware.NewAuthMiddleware(verifier, logger),
	})

	httpServer := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return queue.Run(gctx)
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return policy.Run(gctx)
	})
	g.Go(func() error {
		if !waitReady(gctx, queue.Ready()) {
			return nil
		}
		return ticker.Run(gctx)
	})
	g.Go(func() error {
		if !waitReady(gctx, queue.Ready()) {
			return nil
		}
		logger.Info("HTTP server listening", zap.String("addr", s.cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

func (s *Server) openStorage(ctx context.Context) (*storage, error) {
	switch s.cfg.StoreBackend {
	case config.StoreRedis:
		client, err := db.NewRedis(s.cfg.Redis)
		if err != nil {
			return nil, err
		}
		agents := redisrepo.NewAgentDirectory(client, s.cfg.RedisKeyPrefix, redisrepo.DefaultPresenceTTL)
		for _, a := range s.cfg.StaticAgents {
			if err := agents.SetAvailability(ctx, a.ID, a.Name, a.Available); err != nil {
				client.Close()
				return nil, fmt.Errorf("failed to seed agent roster: %w", err)
			}
		}
		s.logger.Info("using redis callback store", zap.Strings("addresses", s.cfg.Redis.Addresses))
		return &storage{
			store:  redisrepo.NewCallbackStore(client, s.cfg.RedisKeyPrefix),
			agents: agents,
			close:  func() { client.Close() },
		}, nil

	case config.StorePostgres:
		pool, err := db.ConnectDB(ctx, s.cfg.Postgres)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewCallbackRepository(postgres.NewDB(pool))
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to prepare callback schema: %w", err)
		}
		s.logger.Info("using postgres callback store")
		return &storage{
			store:  repo,
			agents: memory.NewAgentDirectory(s.cfg.StaticAgents...),
			close:  pool.Close,
		}, nil

	default:
		s.logger.Warn("using in-memory callback store; requests are lost on restart")
		return &storage{
			store:  memory.NewRecordCallbackStore(),
			agents: memory.NewAgentDirectory(s.cfg.StaticAgents...),
			close:  func() {},
		}, nil
	}
}

func waitReady(ctx context.Context, ready <-chan struct{}) bool {
	select {
	case <-ready:
		return true
	case <-ctx.Done():
		return false
	}
}
