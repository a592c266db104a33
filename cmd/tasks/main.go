package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/just-being-aryan/task-manager-app/internal/auth"
	"github.com/just-being-aryan/task-manager-app/internal/domain/errors"
	"github.com/just-being-aryan/task-manager-app/internal/server"
	"github.com/just-being-aryan/task-manager-app/internal/tasks"
	"github.com/just-being-aryan/task-manager-app/pkg/logger"
	db "github.com/just-being-aryan/task-manager-app/repository/db"
	inmemory "github.com/just-being-aryan/task-manager-app/repository/inmemory"
	redisstore "github.com/just-being-aryan/task-manager-app/repository/redis"
)

const (
	shutdownTimeout = 30 * time.Second
	connectTimeout  = 5 * time.Second
)

// Runner is the part of the API that main drives.
type Runner interface {
	Start() error
	Shutdown(ctx context.Context) error
}

type Store interface {
	auth.UserStore
	tasks.Store
	server.Pinger
}

// Repositories are the storage backends selected from the configuration.
type Repositories struct {
	Store    Store
	Denylist auth.Denylist
	// Persistent is true when Store is PostgreSQL rather than the in-memory fallback.
	Persistent bool

	checks  []server.Option
	closers []func()
}

func (r *Repositories) Close() {
	for _, closeFn := range r.closers {
		closeFn()
	}
}

// InitializeRepositories connects to PostgreSQL and, when configured, Redis.
// An unreachable database falls back to in-memory storage; an unreachable
// Redis falls back to an in-memory denylist.
func InitializeRepositories(cfg *server.Config) (*Repositories, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", errors.ErrConfigInvalidFormat)
	}
	log := logger.Get()
	repos := &Repositories{}

	if cfg.DBStr != "" {
		pg, err := db.NewStorage(cfg.DBStr)
		if err == nil {
			repos.Store = pg
			repos.Persistent = true
			repos.checks = append(repos.checks, server.WithReadinessCheck("postgres", pg))
			repos.closers = append(repos.closers, pg.Close)
		} else {
			log.Warn().Err(err).Msg("database unavailable, using in-memory storage")
		}
	}
	if repos.Store == nil {
		repos.Store = inmemory.NewStorage()
	}

	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		client, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err == nil {
			denylist := redisstore.NewDenylist(client)
			repos.Denylist = denylist
			repos.checks = append(repos.checks, server.WithReadinessCheck("redis", denylist))
			repos.closers = append(repos.closers, func() {
				if err := client.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close redis client")
				}
			})
		} else {
			log.Warn().Err(err).Msg("redis unavailable, using in-memory credential denylist")
			repos.Denylist = inmemory.NewDenylist()
		}
	}

	return repos, nil
}

func RunMigrations(cfg *server.Config) error {
	if err := db.Migration(cfg.DBStr, cfg.MigratePath); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// BuildAPI wires the services over repos.
func BuildAPI(cfg *server.Config, repos *Repositories) *server.TaskAPI {
	var authOpts []auth.Option
	if repos.Denylist != nil {
		authOpts = append(authOpts, auth.WithDenylist(repos.Denylist))
	}
	authSvc := auth.NewService(repos.Store, cfg.JWTSecret, time.Duration(cfg.TokenTTL), authOpts...)
	taskSvc := tasks.NewRepository(repos.Store)

	return server.NewTaskAPI(authSvc, taskSvc, cfg, repos.checks...)
}

// StartServer runs api in the background. The returned channels deliver a
// termination signal or the error that stopped the server.
func StartServer(api Runner, cfg *server.Config) (chan os.Signal, chan error) {
	log := logger.Get()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr()).Str("env", cfg.Env).Msg("task service started")
		if err := api.Start(); err != nil {
			serverErr <- err
		}
	}()

	return sigChan, serverErr
}

// HandleShutdown stops api, waiting up to shutdownTimeout for in-flight requests.
func HandleShutdown(api Runner, sig os.Signal) error {
	log := logger.Get()
	log.Info().Str("signal", sig.String()).Msg("graceful shutdown started")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := api.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	log.Info().Msg("graceful shutdown complete")
	return nil
}

func main() {
	cfg, err := server.ReadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: !cfg.IsProduction()})
	log := logger.Get()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	repos, err := InitializeRepositories(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer repos.Close()

	if repos.Persistent {
		if err := RunMigrations(cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
		log.Info().Msg("migrations applied")
	}

	api := BuildAPI(cfg, repos)
	if api == nil {
		log.Fatal().Msg("failed to initialize API")
	}

	sigChan, serverErr := StartServer(api, cfg)
	select {
	case sig := <-sigChan:
		if err := HandleShutdown(api, sig); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	case err := <-serverErr:
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("task service stopped")
}
