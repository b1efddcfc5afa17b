package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/shadowbotshq/whisper-relay/internal/biz/usecase"
	"github.com/shadowbotshq/whisper-relay/internal/conf"
	"github.com/shadowbotshq/whisper-relay/internal/data"
	"github.com/shadowbotshq/whisper-relay/mcpserver"
)

// Standalone MCP server exposing whisper tools over stdio. It shares the
// relay's SQLite store, so whispers created here are revealable in chat.
func main() {
	_ = godotenv.Load()
	cfg := conf.LoadFromEnv()

	db, err := data.OpenDB(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	whisperUC := usecase.NewWhisperUsecase(data.NewWhisperRepo(db), nil)
	userUC := usecase.NewUserUsecase(data.NewUserRepo(db))

	srv := mcpserver.NewServer(&mcpserver.Callbacks{
		Whisper: whisperUC,
		User:    userUC,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Protocol runs on stdout, diagnostics go to stderr
	fmt.Fprintln(os.Stderr, "[MCP] whisper-tools serving on stdio")
	if err := srv.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server error: %v\n", err)
		os.Exit(1)
	}
}
