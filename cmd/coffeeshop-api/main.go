package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/config"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/database"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/drinks"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "coffeeshop-api",
		Short: "Coffee shop drinks menu service",
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
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Bool("reset-on-start", defaults.GetBool("database.reset_on_start"), "Drop and recreate the drinks table at startup")
	cmd.PersistentFlags().Bool("seed-menu", defaults.GetBool("database.seed_menu"), "Insert the default menu after migrating")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("auth0-domain", "", "Auth0 tenant domain")
	cmd.PersistentFlags().String("auth0-audience", "", "API audience expected in access tokens")
	cmd.PersistentFlags().String("auth0-jwks-url", "", "JWKS URL override")
	cmd.PersistentFlags().String("auth0-issuer", "", "Token issuer override")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.reset_on_start", "reset-on-start")
	bindFlag(cmd, "database.seed_menu", "seed-menu")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "auth0.domain", "auth0-domain")
	bindFlag(cmd, "auth0.audience", "auth0-audience")
	bindFlag(cmd, "auth0.jwks_url", "auth0-jwks-url")
	bindFlag(cmd, "auth0.issuer", "auth0-issuer")
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

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, database.Options{
		ResetOnStart: appConfig.ResetOnStart,
		SeedMenu:     appConfig.SeedMenu,
	}, logger)
	if err != nil {
		return err
	}
	defer database.Close(db) //nolint:errcheck

	drinksService, err := drinks.NewService(drinks.ServiceConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	verifier, err := auth.NewJWKSVerifier(auth.JWKSVerifierConfig{
		Domain:   appConfig.Auth0Domain,
		JWKSURL:  appConfig.Auth0JWKSURL,
		Issuer:   appConfig.Auth0Issuer,
		Audience: appConfig.Auth0Audience,
		CacheTTL: appConfig.JWKSCacheTTL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	realtime := server.NewRealtimeDispatcher()
	handler, err := server.NewHTTPHandler(server.Dependencies{
		Verifier:       verifier,
		DrinksService:  drinksService,
		Logger:         logger,
		Realtime:       realtime,
		AllowedOrigins: appConfig.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}
	// Open drink streams only finish once the dispatcher closes them.
	httpServer.RegisterOnShutdown(realtime.Close)

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("database_path", appConfig.DatabasePath),
			zap.Bool("reset_on_start", appConfig.ResetOnStart))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
