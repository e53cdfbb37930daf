package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"vidtube/internal/app"
	"vidtube/internal/config"
	"vidtube/internal/lib/sl"
	"vidtube/internal/seed"
	"vidtube/internal/services/credentials"
)

func main() {
	var configPath string
	var seedDemo bool
	flag.StringVar(&configPath, "config", "", "path to config file (or use CONFIG_PATH env)")
	flag.BoolVar(&seedDemo, "seed", false, "seed a demo channel, videos and watch history")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	cfg := config.LoadConfig(configPath)
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(log, cfg, seedDemo); err != nil {
		log.Error("database initialization failed", sl.Err(err))
		os.Exit(1)
	}

	fmt.Println("Database initialization completed successfully")
}

func run(log *slog.Logger, cfg *config.Config, seedDemo bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Info("preparing storage", slog.String("driver", cfg.Storage.Driver))

	// Opening the backend creates mongo indexes or applies sqlite migrations.
	storage, err := app.OpenStorage(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer storage.Close(ctx)

	if !seedDemo {
		return nil
	}

	creds, err := credentials.New(log, storage, storage, storage, cfg.Password.BcryptCost)
	if err != nil {
		return err
	}

	res, err := seed.Run(ctx, log, creds, storage)
	if err != nil {
		return err
	}
	if res.Created {
		log.Info("demo accounts ready",
			slog.String("channel", res.Channel.Username),
			slog.String("viewer", res.Viewer.Username),
		)
	}

	return nil
}
