package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/shadowbotshq/whisper-relay/feishu"
	"github.com/shadowbotshq/whisper-relay/internal/biz"
	"github.com/shadowbotshq/whisper-relay/internal/biz/usecase"
	"github.com/shadowbotshq/whisper-relay/internal/conf"
	"github.com/shadowbotshq/whisper-relay/internal/data"
	"github.com/shadowbotshq/whisper-relay/internal/server"
	"github.com/shadowbotshq/whisper-relay/internal/service"
	"github.com/shadowbotshq/whisper-relay/moderation"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)

	var moderationClient *moderation.Client
	if cfg.Moderation.APIKey != "" {
		moderationClient = moderation.NewClient(cfg.Moderation.APIKey, cfg.Moderation.BaseURL, cfg.Moderation.Model)
		fmt.Println("Content moderation enabled")
	}

	repos, err := data.NewRepositories(feishuClient, moderationClient, cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer repos.Close()

	whisperUC := usecase.NewWhisperUsecase(repos.Whisper, repos.Filter)
	ucs := &biz.Usecases{
		Whisper:  whisperUC,
		Creation: usecase.NewCreationFlowUsecase(repos.Session, whisperUC, cfg.Whisper.ToSessionConfig()),
		User:     usecase.NewUserUsecase(repos.User),
	}

	purge := service.NewPurgeScheduler(repos.Transport)
	relaySvc := service.NewRelayService(
		ucs.Whisper, ucs.Creation, ucs.User,
		repos.Transport, purge,
		service.RelayConfig{
			PurgeDelay:     cfg.Whisper.PurgeDelay(),
			PopupWordLimit: cfg.Whisper.PopupWordLimit,
		},
	)

	srv := server.NewFeishuServer(feishuClient, relaySvc, purge)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		srv.Stop()
		os.Exit(0)
	}()

	fmt.Println("Starting Whisper Relay...")
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
