package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/0xPuncker/jobwire/internal/api"
	"github.com/0xPuncker/jobwire/internal/config"
	"github.com/0xPuncker/jobwire/internal/cron"
	"github.com/0xPuncker/jobwire/internal/listener"
	"github.com/0xPuncker/jobwire/internal/notifications"
	"github.com/0xPuncker/jobwire/pkg/types"
	"github.com/dimiro1/banner"
	"github.com/joho/godotenv"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

const bannerText = `
{{ .Title "Jobwire" "" 0 }}
{{ .AnsiBackground.BrightBlue }}{{ .AnsiColor.White }}
{{ .AnsiReset }}
`

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Printf("No .env or .env.local file found. Using environment variables.\n")
		}
	}

	banner.Init(colorable.NewColorableStdout(), true, true, strings.NewReader(bannerText))

	configPath := flag.String("config", "config/config.json", "path to config file")
	jobsPath := flag.String("jobs", "", "path to jobs YAML file (overrides jobs_file)")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          false,
		DisableTimestamp:       false,
		TimestampFormat:        "2006-01-02T15:04:05-07:00",
		DisableLevelTruncation: false,
		PadLevelText:           false,
	})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	if *jobsPath != "" {
		cfg.JobsFile = *jobsPath
	}
	if cfg.JobsFile != "" {
		jobs, err := config.LoadJobs(cfg.JobsFile)
		if err != nil {
			logger.Fatalf("Failed to load jobs: %v", err)
		}
		cfg.MergeJobs(jobs)
	}

	scheduler := cron.NewScheduler(logger, cfg.Jobs)
	registerTasks(scheduler, logger)

	for _, name := range cfg.Listeners.Logging {
		if err := scheduler.AddJobListener(listener.NewLoggingListener(name, logger)); err != nil {
			logger.Fatalf("Failed to register listener: %v", err)
		}
	}

	var history *listener.HistoryListener
	if cfg.Listeners.History.Name != "" {
		ttl, err := cfg.Listeners.History.TTLDuration()
		if err != nil {
			logger.Fatalf("Failed to configure history listener: %v", err)
		}
		history = listener.NewHistoryListener(cfg.Listeners.History.Name, ttl, cfg.Listeners.History.Limit)
		if err := scheduler.AddJobListener(history); err != nil {
			logger.Fatalf("Failed to register listener: %v", err)
		}
	}

	if cfg.Listeners.Slack.Name != "" {
		slack, err := notifications.NewSlackService(logger, cfg.Listeners.Slack.WebhookURL)
		if err != nil {
			logger.Warnf("Failed to initialize Slack service: %v", err)
		} else {
			slackListener := notifications.NewSlackListener(cfg.Listeners.Slack.Name, slack, logger, cfg.Listeners.Slack.NotifySuccess)
			if err := scheduler.AddJobListener(slackListener); err != nil {
				logger.Fatalf("Failed to register listener: %v", err)
			}
		}
	}

	if err := scheduler.LoadPredefinedJobs(cfg.Jobs.Predefined); err != nil {
		logger.Fatalf("Failed to load predefined jobs: %v", err)
	}

	handler := api.NewHandler(scheduler, history, logger)
	server, err := api.NewServer(handler, cfg.Server)
	if err != nil {
		logger.Fatalf("Failed to configure server: %v", err)
	}

	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	logger.Infof("Server started on port %s - Press Ctrl+C to stop.", cfg.Server.Port)

	<-stop
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}

	scheduler.Shutdown()

	logger.Info("Server stopped")
}

func registerTasks(scheduler *cron.Scheduler, logger *logrus.Logger) {
	scheduler.RegisterTask("log", func(ctx context.Context, descriptor *types.JobDescriptor) error {
		name, _ := descriptor.Value(types.JobNameKey)
		logger.WithFields(logrus.Fields{
			"task":      "log",
			"job_name":  name,
			"timestamp": time.Now().Format(time.RFC3339),
		}).Info("Job fired")
		return nil
	})

	scheduler.RegisterTask("noop", func(context.Context, *types.JobDescriptor) error {
		return nil
	})
}
