package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shadowbotshq/whisper-relay/internal/biz/usecase"
	"github.com/shadowbotshq/whisper-relay/internal/conf"
	"github.com/shadowbotshq/whisper-relay/internal/data"
)

// whisperctl inspects a relay's SQLite store from the command line.
func main() {
	_ = godotenv.Load()

	var dbPath string

	rootCmd := &cobra.Command{
		Use:   "whisperctl",
		Short: "Inspect the whisper relay store",
		Long: `whisperctl is an operator tool for the whisper relay.
It reads the relay's SQLite store directly: whisper listings, user
preference records, and aggregate counters.`,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the relay store (default: WHISPER_DB_PATH)")

	rootCmd.AddCommand(whispersCmd(&dbPath))
	rootCmd.AddCommand(usersCmd(&dbPath))
	rootCmd.AddCommand(statsCmd(&dbPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openUsecases(dbPath *string) (*usecase.WhisperUsecase, *usecase.UserUsecase, func(), error) {
	path := *dbPath
	if path == "" {
		path = conf.LoadFromEnv().DBPath
	}

	db, err := data.OpenDB(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	whisperUC := usecase.NewWhisperUsecase(data.NewWhisperRepo(db), nil)
	userUC := usecase.NewUserUsecase(data.NewUserRepo(db))
	return whisperUC, userUC, func() { _ = db.Close() }, nil
}

func whispersCmd(dbPath *string) *cobra.Command {
	var sender string

	cmd := &cobra.Command{
		Use:   "whispers",
		Short: "List whispers for a sender",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sender == "" {
				return fmt.Errorf("--sender is required")
			}
			whisperUC, _, closeFn, err := openUsecases(dbPath)
			if err != nil {
				return err
			}
			defer closeFn()

			whispers, err := whisperUC.ListBySender(context.Background(), sender)
			if err != nil {
				return fmt.Errorf("failed to list whispers: %w", err)
			}
			if len(whispers) == 0 {
				fmt.Println("No whispers for this sender.")
				return nil
			}

			for _, w := range whispers {
				status := color.New(color.FgYellow).Sprint("pending")
				detail := ""
				if w.IsRevealed() {
					status = color.New(color.FgGreen).Sprint("read   ")
					detail = fmt.Sprintf("  by %s at %s", w.RevealedBy, w.RevealedAt.Format(time.RFC3339))
				}
				fmt.Printf("#%-6d %s  to %-20s items=%d%s\n", w.ID, status, w.Recipient.Display(), len(w.Items), detail)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sender, "sender", "", "sender user id")
	return cmd
}

func usersCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List known users and their preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, userUC, closeFn, err := openUsecases(dbPath)
			if err != nil {
				return err
			}
			defer closeFn()

			users, err := userUC.ListAll(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}
			if len(users) == 0 {
				fmt.Println("No users recorded.")
				return nil
			}

			for _, u := range users {
				flags := ""
				if u.PrivacyMode {
					flags += color.New(color.FgCyan).Sprint(" privacy")
				}
				if !u.Notifications {
					flags += color.New(color.FgYellow).Sprint(" muted")
				}
				fmt.Printf("%-32s %-20s %s%s\n", u.ID, u.DisplayName(), u.FirstName, flags)
			}
			return nil
		},
	}
}

func statsCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate relay counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			whisperUC, _, closeFn, err := openUsecases(dbPath)
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := whisperUC.Stats(context.Background())
			if err != nil {
				return fmt.Errorf("failed to load stats: %w", err)
			}

			fmt.Printf("Whispers: %d total, %s pending, %s revealed\n",
				stats.Total,
				color.New(color.FgYellow).Sprint(stats.Pending),
				color.New(color.FgGreen).Sprint(stats.Revealed))
			fmt.Printf("Users:    %d\n", stats.Users)
			return nil
		},
	}
}
