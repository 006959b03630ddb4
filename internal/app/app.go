// Package app wires configuration into the services shared by the web
// server and the command line tool.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"episode-studio/internal/assets"
	"episode-studio/internal/batch"
	"episode-studio/internal/config"
	"episode-studio/internal/httpclient"
	"episode-studio/internal/models"
	"episode-studio/internal/notify"
	"episode-studio/internal/payload"
	"episode-studio/internal/provider"
)

type App struct {
	Catalog   models.Catalog
	Library   assets.Library
	Factory   *payload.Factory
	Submitter batch.Submitter // nil without a provider key
	Notifier  notify.Notifier
	Coalescer *notify.Coalescer
	Runner    *batch.Runner

	closers []func() error
}

func NewLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	cat, err := models.LoadCatalog(cfg.ModelCatalogPath)
	if err != nil {
		return nil, err
	}

	a := &App{Catalog: cat}

	if cfg.AssetsDBPath != "" {
		lib, err := assets.OpenSQLite(cfg.AssetsDBPath)
		if err != nil {
			return nil, err
		}
		a.Library = lib
		a.closers = append(a.closers, lib.Close)
		logger.Info("asset library opened", "path", cfg.AssetsDBPath)
	} else {
		a.Library = assets.NewMemoryLibrary()
		logger.Warn("ASSETS_DB_PATH is empty: asset lookups use an empty in-memory library")
	}

	a.Factory = payload.NewFactory(payload.Options{
		Catalog: cat,
		Logger:  logger,
	})

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	if cfg.CanSubmit() {
		a.Submitter = provider.New(provider.Options{
			BaseURL:    cfg.ProviderBaseURL,
			APIKey:     cfg.ProviderAPIKey,
			HTTPClient: httpClient,
			Logger:     logger,
		})
	} else {
		logger.Warn("PROVIDER_API_KEY is empty: payloads are built but not submitted")
	}

	a.Notifier = notify.Nop{}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(notify.TelegramOptions{
			Token:      cfg.TelegramToken,
			ChatID:     cfg.TelegramChatID,
			HTTPClient: httpClient,
			Logger:     logger,
			Debug:      cfg.Debug,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("telegram init: %w", err)
		}
		a.Notifier = tg
		logger.Info("telegram notifications enabled", "username", tg.Username())
	}

	a.Coalescer = notify.NewCoalescer(notify.CoalescerOptions{
		Notifier: a.Notifier,
		Logger:   logger,
	})

	a.Runner = batch.New(batch.Options{
		Library:       a.Library,
		Factory:       a.Factory,
		Submitter:     a.Submitter,
		Notifier:      a.Notifier,
		MaxConcurrent: cfg.MaxConcurrent,
		ItemTimeout:   cfg.RequestTimeout,
		Logger:        logger,
	})

	return a, nil
}

// Close flushes pending notifications and releases the asset library.
func (a *App) Close() error {
	if a.Coalescer != nil {
		a.Coalescer.Flush()
	}
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
