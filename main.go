package main

import (
	"go.uber.org/zap"

	"backend/internal/config"
	"backend/internal/logger"
	"backend/internal/modelstore"
	"backend/internal/notifier"
	"backend/internal/repository"
	"backend/internal/server"
	"backend/internal/service"
)

func main() {
	zlog, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = zlog.Sync() // Flushes buffer, if any
	}()

	log := logger.New()

	// Load configuration
	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		zlog.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, zlog)

	// Load the model artifact before accepting any traffic. A missing or
	// corrupt bundle is fatal: the service must not come up half-ready.
	store := modelstore.New(cfg.Model.Dir, cfg.Model.ONNXLibrary, zlog)
	if err := store.Load(); err != nil {
		zlog.Fatal("Failed to load model artifact", zap.Error(err))
	}
	defer store.Close()

	// Optional Telegram spam alerts
	tg, err := notifier.NewTelegram(cfg, zlog)
	if err != nil {
		zlog.Warn("Failed to initialize Telegram notifier, continuing without it", zap.Error(err))
		tg = nil
	}
	var spamNotifier service.SpamNotifier
	if tg != nil {
		spamNotifier = tg
	}

	// Initialize and run the server
	srv := server.NewServer(db, cfg, store, spamNotifier, zlog, log)
	srv.Run(cfg.Server.Port)
}
