package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	httpapp "vidtube/internal/app/http"
	"vidtube/internal/config"
	"vidtube/internal/http/middleware"
	"vidtube/internal/http/users"
	"vidtube/internal/lib/jwt"
	"vidtube/internal/lib/sl"
	"vidtube/internal/seed"
	"vidtube/internal/services/auth"
	"vidtube/internal/services/credentials"
	"vidtube/internal/services/profile"
	"vidtube/internal/storage/memory"
	"vidtube/internal/storage/mongodb"
	"vidtube/internal/storage/objects"
	"vidtube/internal/storage/sqlite"
)

// Storage is everything the services and the seeder need from a backend.
type Storage interface {
	credentials.UserSaver
	credentials.UserProvider
	credentials.UserUpdater
	profile.ChannelProvider
	seed.Catalog
	Close(ctx context.Context) error
}

type App struct {
	HTTPSrv *httpapp.App

	logger  *slog.Logger
	storage Storage
}

func New(ctx context.Context, logger *slog.Logger, cfg *config.Config) *App {
	storage, err := OpenStorage(ctx, logger, cfg)
	if err != nil {
		panic(err)
	}

	if err := os.MkdirAll(cfg.Uploads.TempDir, 0o755); err != nil {
		panic(fmt.Errorf("create upload dir: %w", err))
	}

	uploader, err := objects.New(ctx, logger, objects.Config{
		Region:       cfg.S3.Region,
		Endpoint:     cfg.S3.Endpoint,
		Bucket:       cfg.S3.Bucket,
		AccessKey:    cfg.S3.AccessKey,
		SecretKey:    cfg.S3.SecretKey,
		PublicURL:    cfg.S3.PublicURL,
		UsePathStyle: cfg.S3.UsePathStyle,
	})
	if err != nil {
		panic(err)
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cfg.Tokens.AccessSecret,
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshSecret: cfg.Tokens.RefreshSecret,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
	})
	if err != nil {
		panic(err)
	}

	creds, err := credentials.New(logger, storage, storage, storage, cfg.Password.BcryptCost)
	if err != nil {
		panic(err)
	}

	authService := auth.New(logger, creds, tokens, uploader)
	profileService := profile.New(logger, storage, creds, uploader)

	handler := users.New(logger, authService, profileService, users.Options{
		SecureCookies: cfg.HTTP.SecureCookies,
		BodyLimit:     cfg.HTTP.BodyLimit,
		UploadDir:     cfg.Uploads.TempDir,
		MaxUploadSize: cfg.Uploads.MaxSize,
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
	})

	mux := http.NewServeMux()
	handler.Routes(mux, middleware.Authenticate(tokens, storage, logger))

	httpApp := httpapp.New(logger,
		middleware.Chain(mux,
			middleware.RequestLogger(logger),
			middleware.CORS(cfg.HTTP.CORSOrigin),
		),
		cfg.HTTP.Port,
		httpapp.Timeouts{
			Read:  cfg.HTTP.ReadTimeout,
			Write: cfg.HTTP.WriteTimeout,
			Idle:  cfg.HTTP.IdleTimeout,
		},
	)

	return &App{
		HTTPSrv: httpApp,
		logger:  logger,
		storage: storage,
	}
}

// Stop drains the HTTP server and then closes the storage backend.
func (a *App) Stop(ctx context.Context) {
	a.HTTPSrv.Stop(ctx)

	if err := a.storage.Close(ctx); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}

// OpenStorage connects the configured backend and makes sure its schema is
// in place.
func OpenStorage(ctx context.Context, logger *slog.Logger, cfg *config.Config) (Storage, error) {
	const op = "app.OpenStorage"
	log := logger.With(slog.String("op", op), slog.String("driver", cfg.Storage.Driver))

	switch cfg.Storage.Driver {
	case config.DriverMongo:
		st, err := mongodb.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("connected to mongodb", slog.String("database", cfg.Mongo.Database))
		return st, nil

	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		applied, err := sqlite.Migrate(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if applied {
			log.Info("sqlite migrations applied")
		}
		st, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return st, nil

	case config.DriverMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	}

	return nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.Storage.Driver)
}
