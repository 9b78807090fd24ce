package main

import (
	"context"
	"docchat/internal/api/handlers"
	"docchat/internal/app"
	"docchat/internal/config"
	"docchat/internal/logger"
	"docchat/internal/observability"
	"docchat/internal/repository/postgres"
	"docchat/internal/service/llm"
	"docchat/internal/service/retrieval"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appConfig, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.Server.Debug && logLevel == "" {
		logger.SetLevel("debug")
	}

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	store, err := postgres.Open(startCtx, appConfig.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if autoMigrate {
		if err := store.Migrate("up"); err != nil {
			return err
		}
	}
	if err := postgres.SeedModels(startCtx, store, appConfig.Models.GetAvailableModels()); err != nil {
		return fmt.Errorf("failed to seed models: %w", err)
	}

	client, err := retrieval.NewWeaviateClient(appConfig.Retrieval.WeaviateURL)
	if err != nil {
		return err
	}
	index := retrieval.NewWeaviateIndex(client, appConfig.Retrieval.ClassName)
	if err := index.EnsureSchema(startCtx); err != nil {
		return fmt.Errorf("failed to prepare vector index: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	backends, err := llm.NewBackends(appConfig.LLM, metrics)
	if err != nil {
		return fmt.Errorf("failed to create LLM backends: %w", err)
	}

	appCfg := app.NewConfig(store, appConfig, backends, index, metrics)
	router := handlers.NewRouter(handlers.NewHandlers(appCfg), promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Log.WithFields(logrus.Fields{
			"port":       appConfig.Server.Port,
			"provider":   backends.Provider.Name(),
			"moderation": backends.Moderation != nil,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	appConfig, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), startupTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, appConfig.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Migrate(args[0])
}
