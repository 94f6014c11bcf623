package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antonrybalko/wfm-mbaas-go/internal/api"
	"github.com/antonrybalko/wfm-mbaas-go/internal/auth"
	"github.com/antonrybalko/wfm-mbaas-go/internal/config"
	"github.com/antonrybalko/wfm-mbaas-go/internal/mbaas"
	"github.com/antonrybalko/wfm-mbaas-go/internal/mediator"
	"github.com/antonrybalko/wfm-mbaas-go/internal/repository"
	"github.com/antonrybalko/wfm-mbaas-go/internal/service"
	"github.com/antonrybalko/wfm-mbaas-go/internal/storage"
	"github.com/antonrybalko/wfm-mbaas-go/internal/web"
	"go.uber.org/zap"
)

// Version represents the application version
const Version = "0.1.0"

// Service represents the application service
type Service struct {
	config     *config.Config
	logger     *zap.Logger
	sugar      *zap.SugaredLogger
	db         *sql.DB
	sdk        *mbaas.API
	userRouter *api.UserRouter
	mediator   *mediator.Mediator
	app        web.App
}

// NewService creates a new application service
func NewService() (*Service, error) {
	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return newService(cfg, logger)
}

func newService(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	sugar := logger.Sugar()

	// Initialize session tokens
	sessions, err := auth.NewSessions(auth.Config{
		PublicKeyURL: cfg.JWT.PublicKeyURL,
		Secret:       cfg.JWT.Secret,
		Algorithm:    cfg.JWT.Algorithm,
		TTL:          cfg.Users.SessionTTL,
	}, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sessions: %w", err)
	}

	// Initialize file storage
	var files storage.BlobStore
	if cfg.Blob.Driver == "s3" {
		files, err = storage.NewS3Client(storage.S3Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Endpoint:        cfg.S3.Endpoint,
			CDNBaseURL:      cfg.S3.CDNBaseURL,
			UsePathStyle:    cfg.S3.UsePathStyle,
		}, sugar)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
	} else {
		files = storage.NewMemoryBlobStore(fmt.Sprintf("http://localhost:%d%s/files", cfg.Port, MBaaSPrefix))
	}

	// Initialize database and repositories
	var (
		db      *sql.DB
		users   repository.UserRepository
		data    repository.DataRepository
		prepare func(ctx context.Context) error
	)
	if cfg.Store.Driver == "postgres" {
		db, err = repository.NewDBConnection(repository.DBConfig{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			Name:     cfg.DB.Name,
			SSLMode:  cfg.DB.SSLMode,
		}, sugar)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		users = repository.NewPostgresUserRepository(db, sugar)
		data = repository.NewPostgresDataRepository(db, sugar)
		prepare = func(ctx context.Context) error {
			return repository.CreateTablesIfNotExist(ctx, db, sugar)
		}
	} else {
		users = repository.NewMemoryUserRepository()
		data = repository.NewMemoryDataRepository()
	}

	// Initialize the mBaaS SDK
	sdk := mbaas.New(mbaas.Options{
		Logger:   sugar,
		Version:  Version,
		Data:     data,
		Files:    files,
		Sessions: sessions,
	})

	// Initialize the user router
	userRouter := api.NewUserRouter(api.UserRouterOptions{
		Users:    service.NewUserService(users, sessions, sugar),
		SeedPath: cfg.Users.SeedPath,
		Prepare:  prepare,
		Logger:   sugar,
	})
	sdk.AddHealthCheck("users", userRouter.Ready)

	return &Service{
		config:     cfg,
		logger:     logger,
		sugar:      sugar,
		db:         db,
		sdk:        sdk,
		userRouter: userRouter,
		mediator:   mediator.New(sugar),
	}, nil
}

// Start bootstraps the application and starts listening
func (s *Service) Start() error {
	// Log service startup
	s.sugar.Infow("Starting wfm mbaas service",
		"version", Version,
		"environment", s.config.Environment,
		"addr", s.config.Addr(),
	)

	app, err := Bootstrap(Deps{
		Framework:          web.NewChi(s.sugar),
		CORS:               web.CORS,
		SDK:                s.sdk,
		UserRouter:         s.userRouter,
		Mediator:           s.mediator,
		StaticDir:          s.config.StaticDir,
		Exclusions:         s.config.ExclusionList(),
		SecurableEndpoints: []string{api.UserPrefix},
		CloudPrefix:        s.config.CloudPrefix,
		Host:               s.config.Host,
		Port:               s.config.Port,
		Logger:             s.sugar,
	})
	if err != nil {
		return err
	}

	s.app = app
	return nil
}

// WaitForShutdown waits for a shutdown signal and gracefully shuts down the server
func (s *Service) WaitForShutdown() {
	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received
	sig := <-quit
	s.sugar.Infof("Shutting down server: %v", sig)

	if err := s.Shutdown(); err != nil {
		s.sugar.Fatalf("Server forced to shutdown: %v", err)
	}

	s.sugar.Info("Server exited gracefully")
}

// Shutdown stops the application with a 30 second deadline
func (s *Service) Shutdown() error {
	if s.app == nil {
		return nil
	}

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.app.Shutdown(ctx)
}

// Cleanup performs cleanup tasks
func (s *Service) Cleanup() {
	if s.db != nil {
		repository.CloseDB(s.db, s.sugar)
	}

	// Sync logger
	if err := s.logger.Sync(); err != nil {
		fmt.Printf("Failed to sync logger: %v\n", err)
	}

	s.sugar.Info("Cleanup completed")
}
