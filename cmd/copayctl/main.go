package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/copayhq/copayctl/internal/apiclient"
)

const (
	configCodeMissingBaseURL   = "config.missing_base_url"
	configCodeMissingCachePath = "config.missing_cache_path"
	configCodeInvalidTimeout   = "config.invalid_timeout"
	configCodeCacheDirCreate   = "config.cache_dir_create"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "copayctl",
		Short:         "Admin CLI for the Copay cooperative payments platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("base_url", "http://localhost:8090", "Copay API base URL")
	rootCmd.PersistentFlags().String("cache_path", defaultCachePath(), "Path to the local credential cache database")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "HTTP request timeout")
	rootCmd.PersistentFlags().Int("max_retries", 3, "Retry budget for transient failures")
	rootCmd.PersistentFlags().Duration("backoff_base", time.Second, "Base delay for retry backoff")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	_ = viper.BindPFlag("base_url", rootCmd.PersistentFlags().Lookup("base_url"))
	_ = viper.BindPFlag("cache_path", rootCmd.PersistentFlags().Lookup("cache_path"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag("max_retries", rootCmd.PersistentFlags().Lookup("max_retries"))
	_ = viper.BindPFlag("backoff_base", rootCmd.PersistentFlags().Lookup("backoff_base"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	viper.SetEnvPrefix("COPAY")
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		newLoginCommand(),
		newLogoutCommand(),
		newWhoamiCommand(),
		newOrgsCommand(),
		newTenantsCommand(),
		newRemindersCommand(),
		newAuditCommand(),
		newRedistributeCommand(),
	)
	return rootCmd
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func defaultCachePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".copay", "credentials.db")
	}
	return filepath.Join(homeDir, ".copay", "credentials.db")
}

func buildClient(ctx context.Context) (*apiclient.Client, error) {
	baseURL := viper.GetString("base_url")
	if baseURL == "" {
		return nil, configError(configCodeMissingBaseURL, "base_url must be provided")
	}
	cachePath := viper.GetString("cache_path")
	if cachePath == "" {
		return nil, configError(configCodeMissingCachePath, "cache_path must be provided")
	}
	timeout := viper.GetDuration("timeout")
	if timeout <= 0 {
		return nil, configError(configCodeInvalidTimeout, "timeout must be greater than zero")
	}

	if mkdirErr := os.MkdirAll(filepath.Dir(cachePath), 0o700); mkdirErr != nil {
		return nil, fmt.Errorf("%s: %w", configCodeCacheDirCreate, mkdirErr)
	}
	credentialCache, cacheErr := apiclient.NewDatabaseTokenStore(ctx, "sqlite://"+cachePath)
	if cacheErr != nil {
		return nil, cacheErr
	}

	logger := zap.NewNop()
	if viper.GetBool("verbose") {
		developmentLogger, loggerErr := zap.NewDevelopment()
		if loggerErr != nil {
			return nil, loggerErr
		}
		logger = developmentLogger
	}

	retry := apiclient.DefaultRetryConfig()
	if maxRetries := viper.GetInt("max_retries"); maxRetries >= 0 {
		retry.MaxRetries = maxRetries
	}
	if backoffBase := viper.GetDuration("backoff_base"); backoffBase > 0 {
		retry.BackoffBase = backoffBase
	}

	return apiclient.New(apiclient.Config{
		BaseURL:   baseURL,
		Timeout:   timeout,
		Retry:     retry,
		FastStore: credentialCache,
		Logger:    logger,
		OnSessionExpired: func() {
			fmt.Fprintln(os.Stderr, "session expired; run `copayctl login` to sign in again")
		},
	})
}
