package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/myeljoud/lireddit-server/internal/config"
	"github.com/myeljoud/lireddit-server/internal/database"
	"github.com/myeljoud/lireddit-server/internal/handlers"
	"github.com/myeljoud/lireddit-server/internal/logging"
	"github.com/myeljoud/lireddit-server/internal/mailer"
	"github.com/myeljoud/lireddit-server/internal/server"
	"github.com/myeljoud/lireddit-server/internal/tokens"
	"github.com/myeljoud/lireddit-server/internal/votes"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "lireddit-api",
		Short: "lireddit forum backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("db-host", defaults.GetString("db.host"), "Postgres host")
	cmd.PersistentFlags().String("db-name", defaults.GetString("db.name"), "Postgres database name")
	cmd.PersistentFlags().String("redis-addr", defaults.GetString("redis.addr"), "Redis address")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("jwt-secret", "", "JWT signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "db.host", "db-host")
	bindFlag(cmd, "db.name", "db-name")
	bindFlag(cmd, "redis.addr", "redis-addr")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.jwt_secret", "jwt-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.New(database.Config{
		Host:     appConfig.DBHost,
		Port:     appConfig.DBPort,
		User:     appConfig.DBUser,
		Password: appConfig.DBPassword,
		Name:     appConfig.DBName,
		SSLMode:  appConfig.DBSSLMode,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	resetTokens, err := tokens.NewRedisTokenStore(tokens.RedisTokenStoreConfig{
		Addr:     appConfig.RedisAddr,
		Password: appConfig.RedisPassword,
		DB:       appConfig.RedisDB,
		TTL:      appConfig.ResetTokenTTL,
	})
	if err != nil {
		return err
	}
	defer resetTokens.Close()

	var mail mailer.Mailer
	if appConfig.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     appConfig.SMTPHost,
			Port:     appConfig.SMTPPort,
			Username: appConfig.SMTPUsername,
			Password: appConfig.SMTPPassword,
			From:     appConfig.SMTPFrom,
		})
	} else {
		mail = mailer.NewLogMailer(logger)
	}

	voteService, err := votes.NewService(votes.ServiceConfig{
		Database: db.GetDB(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler := handlers.NewHandler(handlers.Dependencies{
		DB:           db.GetDB(),
		Votes:        voteService,
		ResetTokens:  resetTokens,
		Mailer:       mail,
		JWTSecret:    []byte(appConfig.JWTSecret),
		ResetURLBase: appConfig.ResetURLBase,
		Logger:       logger,
	})

	srv := server.New(db, handler, []byte(appConfig.JWTSecret), logger)
	httpServer := srv.HTTPServer(appConfig.HTTPAddress)

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
