package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-channel/internal/app"
	"github.com/vovakirdan/wirechat-channel/internal/auth"
	"github.com/vovakirdan/wirechat-channel/internal/config"
	"github.com/vovakirdan/wirechat-channel/internal/log"
)

var (
	configPath string
	overrides  config.Config
	tokenUser  string
	tokenName  string
	tokenTTL   time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "wirechat-channel",
	Short:         "Real-time channel chat server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE:  runServe,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a user",
	RunE:  runToken,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
		cmd.Flags().StringVar(&overrides.DatabasePath, "db", "", "path to the sqlite database")
		cmd.Flags().StringVar(&overrides.SnapshotPath, "snapshots", "", "path to the snapshot store directory")
		cmd.Flags().DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
		cmd.Flags().BoolVar(&overrides.AuthRequired, "auth", false, "require a bearer token on connect")
	}

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id the token is issued for")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name embedded in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (defaults to 24h)")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, tokenCmd)
}

// loadConfig resolves file, env and flag settings in that order.
func loadConfig() (*config.Config, error) {
	bootLogger := log.New(firstNonEmpty(overrides.LogLevel, "info"))
	cfg, path, err := config.Load(bootLogger, configPath)
	if err != nil {
		return nil, err
	}
	cfg.UpdateFrom(overrides)
	bootLogger.Debug().Str("path", path).Msg("configuration loaded")
	return &cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := log.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Bool("auth_required", cfg.AuthRequired).Msg("starting wirechat channel server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is not configured")
	}

	jwtCfg := app.JWTConfig(cfg)
	if tokenTTL > 0 {
		jwtCfg.TTL = tokenTTL
	}
	token, err := auth.GenerateToken(jwtCfg, tokenUser, firstNonEmpty(tokenName, tokenUser))
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
