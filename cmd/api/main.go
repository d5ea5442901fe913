package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialoguegen/api/internal/app"
	"dialoguegen/api/internal/config"
	"dialoguegen/api/internal/notify"
	"dialoguegen/api/internal/search"
	"dialoguegen/api/internal/store"
	"dialoguegen/api/internal/validation"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(cfg.LogLevel)

	documents, err := store.Open(cfg.DataDir, store.Options{Logger: logger})
	if err != nil {
		logger.WithError(err).Fatal("failed to open dialogue store")
	}

	var meiliClient *search.Meili
	if cfg.MeiliURL != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	}
	searchService := search.NewService(meiliClient, search.NewScanner(documents), logger)
	defer searchService.Close()
	go searchService.Reindex()

	var publisher *notify.Publisher
	if cfg.RedisURL != "" {
		publisher, err = notify.NewPublisher(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("redis connection failed")
		}
		defer publisher.Close()
		logger.Info("publishing document changes to redis")
	}

	service := app.New(app.Options{
		Store:    documents,
		Gate:     validation.NewGate(validation.New(cfg.MaxCycles)),
		Notifier: publisher,
		Search:   searchService,
		Logger:   logger,
	})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, cfg.MaxBodyBytes)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":     cfg.Addr,
			"data_dir": documents.Root(),
		}).Info("dialogue API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown error")
	}
}
