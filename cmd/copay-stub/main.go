package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/copayhq/copayctl/internal/copaypg"
	"github.com/copayhq/copayctl/internal/stubserver"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "copay-stub",
		Short:   "Local Copay backend stub with phone/PIN login, rotating refresh tokens, and fixture admin data",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8090", "HTTP listen address")
	rootCmd.Flags().String("jwt_signing_key", "", "HS256 signing secret for access tokens")
	rootCmd.Flags().String("cookie_domain", "", "Cookie domain; empty for host-only")
	rootCmd.Flags().Duration("access_ttl", 15*time.Minute, "Access token TTL")
	rootCmd.Flags().Duration("refresh_ttl", 7*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().Bool("dev_insecure_http", false, "Allow insecure HTTP cookies for local dev")
	rootCmd.Flags().String("database_url", "", "Refresh token database URL (postgres:// or sqlite://; empty for in-memory)")
	rootCmd.Flags().Bool("use_pgx", false, "Use the pgx pool store for postgres:// URLs instead of GORM")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for the browser dashboard")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled")
	rootCmd.Flags().Duration("throttle_window", time.Minute, "Login throttle window per phone")
	rootCmd.Flags().Int("throttle_limit", 5, "Login attempts allowed per throttle window")

	_ = viper.BindPFlag("listen_addr", rootCmd.Flags().Lookup("listen_addr"))
	_ = viper.BindPFlag("jwt_signing_key", rootCmd.Flags().Lookup("jwt_signing_key"))
	_ = viper.BindPFlag("cookie_domain", rootCmd.Flags().Lookup("cookie_domain"))
	_ = viper.BindPFlag("access_ttl", rootCmd.Flags().Lookup("access_ttl"))
	_ = viper.BindPFlag("refresh_ttl", rootCmd.Flags().Lookup("refresh_ttl"))
	_ = viper.BindPFlag("dev_insecure_http", rootCmd.Flags().Lookup("dev_insecure_http"))
	_ = viper.BindPFlag("database_url", rootCmd.Flags().Lookup("database_url"))
	_ = viper.BindPFlag("use_pgx", rootCmd.Flags().Lookup("use_pgx"))
	_ = viper.BindPFlag("enable_cors", rootCmd.Flags().Lookup("enable_cors"))
	_ = viper.BindPFlag("cors_allowed_origins", rootCmd.Flags().Lookup("cors_allowed_origins"))
	_ = viper.BindPFlag("throttle_window", rootCmd.Flags().Lookup("throttle_window"))
	_ = viper.BindPFlag("throttle_limit", rootCmd.Flags().Lookup("throttle_limit"))

	viper.SetEnvPrefix("COPAY")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	configCodeMissingJWTSigningKey = "config.missing_jwt_signing_key"
	configCodeInvalidAccessTTL     = "config.invalid_access_ttl"
	configCodeInvalidRefreshTTL    = "config.invalid_refresh_ttl"
	configCodeUninitializedConfig  = "config.uninitialized_server_config"
	configCodePgxRequiresPostgres  = "config.use_pgx_requires_postgres_url"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := loadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func loadServerConfig() (stubserver.ServerConfig, error) {
	signingKey := viper.GetString("jwt_signing_key")
	if signingKey == "" {
		return stubserver.ServerConfig{}, configError(configCodeMissingJWTSigningKey, "jwt_signing_key must be provided")
	}

	accessTTL := viper.GetDuration("access_ttl")
	if accessTTL <= 0 {
		return stubserver.ServerConfig{}, configError(configCodeInvalidAccessTTL, "access_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return stubserver.ServerConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	return stubserver.ServerConfig{
		SigningKey:        []byte(signingKey),
		AccessTTL:         accessTTL,
		RefreshTTL:        refreshTTL,
		CookieDomain:      viper.GetString("cookie_domain"),
		AllowInsecureHTTP: viper.GetBool("dev_insecure_http"),
		ThrottleWindow:    viper.GetDuration("throttle_window"),
		ThrottleLimit:     viper.GetInt("throttle_limit"),
	}, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(stubserver.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedConfig, "server configuration not prepared; PreRunE must execute before RunE")
	}

	listenAddr := viper.GetString("listen_addr")
	databaseURL := viper.GetString("database_url")
	usePgx := viper.GetBool("use_pgx")
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	serverConfig.SameSiteMode = http.SameSiteStrictMode
	if enableCORS {
		serverConfig.SameSiteMode = http.SameSiteNoneMode
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		corsMiddleware, corsErr := stubserver.ConfigureCORS(logger, corsAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	refreshStore, storeErr := buildRefreshStore(command.Context(), databaseURL, usePgx, logger)
	if storeErr != nil {
		return storeErr
	}

	stub, serverErr := stubserver.NewServer(
		serverConfig,
		stubserver.NewMemoryDirectory(stubserver.DefaultAdmins()),
		refreshStore,
		stubserver.NewFixtures(),
		logger,
	)
	if serverErr != nil {
		return serverErr
	}
	stub.Mount(router)

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func buildRefreshStore(ctx context.Context, databaseURL string, usePgx bool, logger *zap.Logger) (stubserver.RefreshTokenStore, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if databaseURL == "" {
		if usePgx {
			return nil, configError(configCodePgxRequiresPostgres, "use_pgx requires a postgres:// database_url")
		}
		logger.Info("using in-memory refresh token store")
		return stubserver.NewMemoryRefreshStore(), nil
	}
	if usePgx {
		pool, poolErr := copaypg.BuildPool(ctx, databaseURL)
		if poolErr != nil {
			return nil, poolErr
		}
		if schemaErr := copaypg.EnsureSchema(ctx, pool); schemaErr != nil {
			return nil, schemaErr
		}
		logger.Info("using pgx refresh token store")
		return copaypg.NewPostgresRefreshStore(pool), nil
	}
	persistentStore, storeErr := stubserver.NewDatabaseRefreshStore(ctx, databaseURL)
	if storeErr != nil {
		return nil, storeErr
	}
	logger.Info("using persistent refresh token store", zap.String("driver", persistentStore.Driver()))
	return persistentStore, nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
