package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"haventory/internal/areas"
	"haventory/internal/config"
	"haventory/internal/handlers"
	"haventory/internal/middleware"
	"haventory/internal/repo"
	"haventory/internal/service"
	"haventory/internal/storage"
	"haventory/internal/subscription"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.NewConfig()
	cfg.BuildVersion = version

	// создаём предустановленный регистратор zap
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}

	// делаем регистратор SugaredLogger
	sugar := logger.Sugar()
	middleware.SetLogger(sugar) // передаём логгер в middleware
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sink, err := storage.Open(ctx, cfg.DatabaseDSN, cfg.StoreKey, sugar)
	if err != nil {
		sugar.Fatalw("failed to open storage", "error", err)
	}

	store := repo.NewStore(repo.WithCursorSecret(cfg.CursorSecret))
	persister := storage.NewPersister(sink, store, cfg.PersistDebounce, sugar)

	st, ok, err := persister.Load(ctx)
	if err != nil {
		sugar.Fatalw("failed to load state", "error", err)
	}
	if ok {
		if err := store.Load(st); err != nil {
			sugar.Fatalw("persisted state is inconsistent", "error", err)
		}
		counts := store.Counts()
		sugar.Infow("state loaded", "items", counts.ItemsTotal, "locations", counts.LocationsTotal)
	}

	router := subscription.NewRouter(sugar)
	svc := service.NewInventoryService(store, router, persister, sugar,
		service.WithAreas(areas.Parse(cfg.Areas)))

	h := handlers.NewHandler(svc, router, sugar, cfg)

	sugar.Infow("Config",
		"BaseURL", cfg.BaseURL,
		"EnableHTTPS", cfg.EnableHTTPS,
		"DatabaseDSN", cfg.DatabaseDSN,
		"StoreKey", cfg.StoreKey,
		"PersistDebounce", cfg.PersistDebounce,
	)

	srv := &http.Server{Addr: cfg.BaseURL, Handler: h.Router}
	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("Starting server", "addr", cfg.BaseURL, "version", cfg.BuildVersion)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sugar.Infow("Shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			sugar.Errorw("Server failed", "error", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("http shutdown", "error", err)
	}
	// последняя запись состояния должна дойти до хранилища
	if err := persister.Close(shutdownCtx); err != nil {
		sugar.Errorw("final flush failed", "error", err)
	}
}
