package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/config"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/platform"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/repository"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/service"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/session"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-sessions/transport/rest"
	"github.com/rocketscienceinc/tictactoe-sessions/transport/websocket"
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	outbox, closeOutbox, err := newReportOutbox(ctx, log, &conf.Redis)
	if err != nil {
		return err
	}
	defer closeOutbox()

	games := repository.NewGameRepository()
	registry := session.NewRegistry(logger, games)
	reporter := platform.NewClient(logger, conf.Platform.URL, conf.Platform.APIKey, conf.Platform.Timeout)
	engine := tictactoe.NewEngine(logger, games, registry, reporter, outbox)

	keys, err := service.NewKeySet(ctx, logger, conf.Auth.JWKSURL, conf.Auth.KeysThrottle)
	if err != nil {
		return fmt.Errorf("failed to load signing keys: %w", err)
	}
	verifier := service.NewTokenVerifier(logger, keys, conf.Auth.Audience, conf.Auth.VerifyExpiration)
	gameService := service.NewGameService(logger, games)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	rest.NewHandlers(logger, gameService, engine, outbox, conf.Platform.APIKey).Routes(router)

	websocket.New(logger, func(conn session.Conn, gameID, playerID string) *session.Session {
		return session.NewSession(logger, verifier, registry, engine, conn, gameID, playerID)
	}, websocket.Options{
		SendBuffer: conf.Websocket.SendBuffer,
		WriteWait:  conf.Websocket.WriteWait,
		PongWait:   conf.Websocket.PongWait,
	}).Routes(router)

	log.Info("Starting HTTP server", "port", conf.HTTPPort)

	if err = rest.Start(ctx, conf.HTTPPort, router); err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	log.Info("Application context canceled, shutting down")

	return nil
}

// newReportOutbox connects to redis when it is enabled; otherwise rejected reports are only logged.
func newReportOutbox(ctx context.Context, log *slog.Logger, conf *config.Redis) (repository.ReportOutbox, func(), error) {
	if !conf.Enabled {
		log.Info("redis disabled, rejected reports will not be kept")
		return repository.NewNopReportOutbox(), func() {}, nil
	}

	redisStorage, err := storage.NewRedisStorage(ctx, conf.GetRedisAddr(), conf.Password, conf.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	outbox := repository.NewReportOutbox(redisStorage.Connection)

	if reports, err := outbox.List(ctx); err != nil {
		log.Warn("could not read parked reports", "error", err)
	} else if len(reports) > 0 {
		log.Warn("parked reports are waiting for redelivery", "count", len(reports))
	}

	return outbox, func() {
		if err := redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}, nil
}
