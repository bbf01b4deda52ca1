// Package main provides the entry point for the GitLab GraphQL MCP server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/config"
	"github.com/kagent-dev/gitlab-graphql-mcp/internal/gitlab"
	"github.com/kagent-dev/gitlab-graphql-mcp/internal/kubernetes"
	mcpserver "github.com/kagent-dev/gitlab-graphql-mcp/internal/server"
	"github.com/kagent-dev/gitlab-graphql-mcp/internal/tools"
)

const secretLookupTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := config.New()
	var configPath string

	cmd := &cobra.Command{
		Use:           mcpserver.Name,
		Short:         "Expose the GitLab GraphQL API as MCP tools over stdio",
		Version:       mcpserver.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v, configPath)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to a YAML config file")
	flags.String("gitlab-url", "", "GitLab base URL (env GITLAB_URL)")
	flags.String("auth-mode", "", "auth mode: shared, per-user or hybrid (env GITLAB_AUTH_MODE)")
	flags.String("log-level", "", "log level: debug, info, warn or error (env GITLAB_LOG_LEVEL)")

	bindFlag(v, "url", cmd, "gitlab-url")
	bindFlag(v, "auth_mode", cmd, "auth-mode")
	bindFlag(v, "log_level", cmd, "log-level")

	return cmd
}

// bindFlag lets an explicitly set flag override the environment and file.
func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, flag string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
	}
}

func run(ctx context.Context, v *viper.Viper, configPath string) error {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := loadSharedTokenFromSecret(ctx, cfg, logger); err != nil {
		return err
	}

	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}
	logger.Infow("starting gitlab graphql mcp server",
		"endpoint", cfg.GraphQLEndpoint(),
		"authMode", cfg.AuthMode,
		"sharedToken", cfg.HasSharedToken(),
		"maxPageSize", cfg.MaxPageSize,
		"timeout", cfg.RequestTimeout().String(),
	)

	cache := gitlab.NewClientCache(cfg, gitlab.WithCacheLogger(logger))
	router := gitlab.NewRouter(cfg, cache, logger)
	schema := gitlab.NewSchemaCache(router, logger)

	s := mcpserver.New(cfg, router, schema, logger)
	tools.RegisterAll(s)

	// Start server with stdio transport
	return server.ServeStdio(s.MCPServer())
}

// loadSharedTokenFromSecret fills cfg.SharedAccessToken from a Kubernetes
// Secret when one is configured and no token was given directly.
func loadSharedTokenFromSecret(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	if cfg.HasSharedToken() || cfg.Kubernetes.SecretName == "" {
		return nil
	}

	k8sClient, err := kubernetes.NewClient(cfg.Kubernetes.Namespace)
	if err != nil {
		return fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, secretLookupTimeout)
	defer cancel()

	token, err := k8sClient.SecretValue(ctx, cfg.Kubernetes.SecretName, cfg.Kubernetes.SecretKey)
	if err != nil {
		return &config.ConfigurationError{Err: err}
	}
	cfg.SharedAccessToken = token
	logger.Infow("loaded shared access token from secret",
		"namespace", cfg.Kubernetes.Namespace, "secret", cfg.Kubernetes.SecretName, "key", cfg.Kubernetes.SecretKey)
	return nil
}

// newLogger writes to stderr; stdout carries the MCP protocol.
func newLogger(level string) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar().Named("gitlab-mcp"), nil
}
