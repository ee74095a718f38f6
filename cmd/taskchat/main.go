package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/usetaskchat/taskchat/internal/profile"
	"github.com/usetaskchat/taskchat/server"
	"github.com/usetaskchat/taskchat/store"
	"github.com/usetaskchat/taskchat/store/db"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "taskchat",
	Short: "An AI-assisted task manager with a chat interface",
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:          viper.GetString("mode"),
			Addr:          viper.GetString("addr"),
			Port:          viper.GetInt("port"),
			Data:          viper.GetString("data"),
			Driver:        viper.GetString("driver"),
			DSN:           viper.GetString("dsn"),
			Secret:        viper.GetString("secret"),
			AIAPIKey:      viper.GetString("ai-api-key"),
			AIBaseURL:     viper.GetString("ai-base-url"),
			AIModel:       viper.GetString("ai-model"),
			HistoryLimit:  viper.GetInt("history-limit"),
			ChatRateLimit: viper.GetInt("chat-rate-limit"),
			Version:       version,
		}
		if err := instanceProfile.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
			os.Exit(1)
		}

		logLevel := slog.LevelInfo
		if instanceProfile.IsDev() {
			logLevel = slog.LevelDebug
		}
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
		slog.SetDefault(logger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			slog.Error("failed to create db driver", slog.String("error", err.Error()))
			os.Exit(1)
		}
		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", slog.String("error", err.Error()))
			os.Exit(1)
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance, logger)
		if err != nil {
			slog.Error("failed to create server", slog.String("error", err.Error()))
			os.Exit(1)
		}

		if !instanceProfile.IsAIEnabled() {
			slog.Warn("no model provider api key configured, chat endpoints will fail upstream")
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigChan
			slog.Info("shutting down")
			s.Shutdown(ctx)
			cancel()
		}()

		slog.Info("server started",
			slog.String("version", version),
			slog.String("addr", instanceProfile.Addr),
			slog.Int("port", instanceProfile.Port))
		if err := s.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("server stopped", slog.String("error", err.Error()))
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server, can be "dev" or "prod"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of the server")
	rootCmd.PersistentFlags().String("data", ".", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")
	rootCmd.PersistentFlags().String("secret", "", "secret used to sign access tokens")
	rootCmd.PersistentFlags().String("ai-api-key", "", "model provider api key")
	rootCmd.PersistentFlags().String("ai-base-url", "", "model provider base url, any OpenAI-compatible endpoint")
	rootCmd.PersistentFlags().String("ai-model", "", "model name")
	rootCmd.PersistentFlags().Int("history-limit", 20, "number of recent messages supplied to the model")
	rootCmd.PersistentFlags().Int("chat-rate-limit", 30, "per-user chat requests per minute")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
	viper.SetEnvPrefix("taskchat")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
