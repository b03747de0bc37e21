package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/icodeforyou/bessquote/config"
	"github.com/icodeforyou/bessquote/database"
	"github.com/icodeforyou/bessquote/logging"
	"github.com/icodeforyou/bessquote/metrics"
	"github.com/icodeforyou/bessquote/notify"
	"github.com/icodeforyou/bessquote/quote"
	"github.com/icodeforyou/bessquote/task"
	"github.com/icodeforyou/bessquote/www"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// The signing key is usually kept in .env next to the binary
	envErr := godotenv.Load()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cnfg.Logging.GetConsoleLevel(),
		TimeFormat: time.RFC3339,
	})
	slog.New(consoleHandler).Debug("bessquote is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	if envErr != nil {
		logger.Debug("no .env file loaded", slog.Any("error", envErr))
	}
	if cnfg.Engine.Authenticator.SigningKey == "" {
		logger.Warn("no signing key configured, every quote will be an estimate")
	}

	collaborators := quote.Collaborators{
		Rates:      db.LookupRate,
		Benchmarks: db.LookupBenchmark,
	}
	engine, err := quote.New(cnfg.Engine, quote.WithCollaborators(collaborators))
	if err != nil {
		panic(fmt.Sprintf("failed to create quote engine: %v", err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var publisher www.Publisher
	if !cnfg.Mqtt.Enabled() || isDevMode() {
		logger.Info("mqtt disabled, skipping quote publishing")
	} else {
		mqttPublisher := notify.NewMqttPublisher(cnfg.Mqtt)
		if err := mqttPublisher.Connect(); err != nil {
			panic(fmt.Sprintf("mqtt connection error: %v", err))
		}
		defer mqttPublisher.Close()
		publisher = mqttPublisher
	}

	tasks := task.NewTasks(db, cnfg)
	if isDevMode() {
		logger.Info("dev mode, skipping task scheduling")
	} else {
		if err := tasks.Run(); err != nil {
			panic(fmt.Sprintf("failed to schedule tasks: %v", err))
		}
		defer tasks.Stop()
	}

	dbVersion, err := db.Version(ctx)
	if err != nil {
		logger.Warn("could not read database version", slog.Any("error", err))
	}

	server := www.NewServer(db, engine, m, publisher, www.SysInfo{
		Version:   Version,
		StartedAt: time.Now(),
		DbVersion: dbVersion,
	}, cnfg.Api)

	// Engine settings apply to new requests without a restart, the rest of
	// the config is read once.
	config.Watch(func(c *config.AppConfig) {
		e, err := quote.New(c.Engine, quote.WithCollaborators(collaborators))
		if err != nil {
			logger.Error("keeping current engine", slog.Any("error", err))
			return
		}
		server.SetEngine(e)
		logger.Info("quote engine replaced")
	})

	if err := server.Run(ctx); err != nil {
		exitWithError(logger, fmt.Errorf("server stopped: %w", err))
	}
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	if syncer, ok := logger.Handler().(interface{ Sync() error }); ok {
		if syncErr := syncer.Sync(); syncErr != nil {
			logger.Error("failed to flush logger", slog.Any("error", syncErr))
		}
	}

	time.Sleep(2 * time.Second)
	os.Exit(1)
}
