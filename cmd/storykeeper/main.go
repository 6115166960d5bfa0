package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"storykeeper/internal/bot"
	"storykeeper/internal/config"
	"storykeeper/internal/logging"
	"storykeeper/internal/remote"
	"storykeeper/internal/scraper"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadClientConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log, err := logging.New(cfg.Level, cfg.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(logrus.Fields{
		"api_base_url":  cfg.APIBaseURL,
		"story_limit":   cfg.StoryLimit,
		"scrape_titles": cfg.ScrapeTitles,
	}).Info("Configuration loaded successfully")

	// --- Initialize Components ---
	svc, err := remote.NewHTTPService(cfg.APIBaseURL, remote.HTTPOptions{
		Timeout:    cfg.HTTPTimeout,
		Retries:    cfg.FetchRetries,
		StoryLimit: cfg.StoryLimit,
	}, log)
	if err != nil {
		log.Fatalf("Failed to initialize story service client: %v", err)
	}

	var titles scraper.TitleFetcher = scraper.Disabled{}
	if cfg.ScrapeTitles {
		titles = scraper.NewRodScraper(0, log)
	}

	botHandler, err := bot.NewHandler(cfg.TelegramBotToken, bot.NewDispatcher(svc, titles, log), log)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot handler: %v", err)
	}

	// --- Application Startup ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("storykeeper is running. Press Ctrl+C to exit.")
	botHandler.Start(ctx)

	log.Info("storykeeper shut down gracefully.")
}
