package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/planora/planora/internal/config"
	"github.com/planora/planora/internal/llm"
	"github.com/planora/planora/internal/log"
	loglogrus "github.com/planora/planora/internal/log/logrus"
	"github.com/planora/planora/internal/planner"
	"github.com/planora/planora/internal/server"
	"github.com/planora/planora/internal/store"
	"github.com/planora/planora/internal/todo"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Planora API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logrusLogger := newLogrusLogger(cfg.Log.Level)
	logger := loglogrus.NewLogrus(logrus.NewEntry(logrusLogger))

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	logger.Infof("database ready at %s", cfg.Database.Path)

	// A missing API key is not fatal: the planner runs in degraded mode and
	// every task is created without automatic breakdown.
	var gen planner.Generator
	client, err := llm.Default(llm.ClientConfig{
		APIKey:         cfg.Anthropic.APIKey,
		Model:          cfg.Anthropic.Model,
		FallbackModels: cfg.Anthropic.FallbackModels,
		RequestTimeout: cfg.Anthropic.RequestTimeout,
		UseAWSBedrock:  cfg.Anthropic.UseAWSBedrock,
		AWSRegion:      cfg.Anthropic.AWSRegion,
		AWSProfile:     cfg.Anthropic.AWSProfile,
		Logger:         logger,
	})
	switch {
	case err == nil:
		gen = client
		logger.Infof("model gateway ready (model %s)", client.Model())
	case errors.Is(err, llm.ErrNoCredentials):
		logger.Warningf("no Anthropic API key configured, automatic planning disabled")
	default:
		return fmt.Errorf("creating model client: %w", err)
	}

	loc := cfg.Location()
	svc := todo.NewService(todo.ServiceConfig{
		Store:    db,
		Planner:  planner.New(gen, planner.WithLogger(logger), planner.WithLocation(loc)),
		Logger:   logger,
		Location: loc,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(svc, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group

	// Signal handler.
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(
			func() error {
				c := make(chan os.Signal, 1)
				signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
				select {
				case sig := <-c:
					logger.Infof("received signal %s, shutting down", sig)
					return nil
				case <-ctx.Done():
					return nil
				}
			},
			func(error) { cancel() },
		)
	}

	// HTTP server.
	{
		g.Add(
			func() error {
				logger.Infof("listening on %s", cfg.Server.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			},
			func(error) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			},
		)
	}

	// Config watcher: picks up log level changes without a restart.
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(
			func() error { return watchConfig(ctx, logrusLogger, logger) },
			func(error) { cancel() },
		)
	}

	return g.Run()
}

// watchConfig reloads the log level when the user config file changes.
func watchConfig(ctx context.Context, logrusLogger *logrus.Logger, logger log.Logger) error {
	path := config.GetUserConfigPath()
	if _, err := os.Stat(path); err != nil {
		// Nothing to watch.
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := config.Load()
			if err != nil {
				logger.Warningf("config changed but could not be reloaded: %v", err)
				continue
			}
			if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
				logrusLogger.SetLevel(level)
				logger.Infof("log level set to %s", level)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warningf("config watcher error: %v", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func newLogrusLogger(level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)
	return l
}
