package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	defaultPort            = 3000
	defaultCORSOrigin      = "*"
	defaultShutdownTimeout = 10 * time.Second
	defaultCleanupInterval = time.Hour
	defaultRateLimitRPS    = 10
	defaultRateLimitBurst  = 20
)

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "mcp-oauth-gate",
		Short:         "OAuth 2.0 authorization server guarding an MCP endpoint",
		SilenceErrors: true,
		Example: `
  # Static token from the environment, public URL behind one proxy
  AUTH_TOKEN=$(openssl rand -base64 32) BASE_URL=https://mcp.example.com TRUST_PROXY=1 mcp-oauth-gate serve

  # Token from a mounted secret, JSON logs, Prometheus metrics
  mcp-oauth-gate serve --auth-token-file /run/secrets/token --log-format json --metrics
`,
	}

	cmd.AddCommand(newServeCommand(v))
	cmd.AddCommand(newVersionCommand(v))
	return cmd
}

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			logger, err := newLogger(cmd.ErrOrStderr(), v.GetString("log_format"), v.GetString("log_level"))
			if err != nil {
				return err
			}
			cfg, err := loadServeConfig(v, logger)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.Int("port", defaultPort, "Port to listen on")
	flags.String("base-url", "", "Public base URL used as the OAuth issuer (default https://localhost:<port>)")
	flags.String("auth-token", "", "Static bearer token accepted by the gate")
	flags.String("auth-token-file", "", "File containing the static bearer token")
	flags.Int("trust-proxy", 0, "Number of reverse proxies in front of the server; 0 ignores forwarding headers")
	flags.String("cors-origin", defaultCORSOrigin, "Allowed CORS origin")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.Bool("metrics", false, "Expose Prometheus metrics on /metrics")
	flags.Float64("rate-limit-rps", defaultRateLimitRPS, "Per-IP requests per second on /oauth/register and /oauth/token")
	flags.Int("rate-limit-burst", defaultRateLimitBurst, "Per-IP burst on /oauth/register and /oauth/token")
	flags.Duration("cleanup-interval", defaultCleanupInterval, "How often expired codes and tokens are swept")
	flags.Duration("shutdown-timeout", defaultShutdownTimeout, "Graceful shutdown timeout")

	mustBindFlag(v, "port", "PORT", flags.Lookup("port"))
	mustBindFlag(v, "base_url", "BASE_URL", flags.Lookup("base-url"))
	mustBindFlag(v, "auth_token", "AUTH_TOKEN", flags.Lookup("auth-token"))
	mustBindFlag(v, "auth_token_file", "AUTH_TOKEN_FILE", flags.Lookup("auth-token-file"))
	mustBindFlag(v, "trust_proxy", "TRUST_PROXY", flags.Lookup("trust-proxy"))
	mustBindFlag(v, "cors_origin", "CORS_ORIGIN", flags.Lookup("cors-origin"))
	mustBindFlag(v, "log_level", "LOG_LEVEL", flags.Lookup("log-level"))
	mustBindFlag(v, "log_format", "LOG_FORMAT", flags.Lookup("log-format"))
	mustBindFlag(v, "metrics", "METRICS_ENABLED", flags.Lookup("metrics"))
	mustBindFlag(v, "rate_limit_rps", "RATE_LIMIT_RPS", flags.Lookup("rate-limit-rps"))
	mustBindFlag(v, "rate_limit_burst", "RATE_LIMIT_BURST", flags.Lookup("rate-limit-burst"))
	mustBindFlag(v, "cleanup_interval", "CLEANUP_INTERVAL", flags.Lookup("cleanup-interval"))
	mustBindFlag(v, "shutdown_timeout", "SHUTDOWN_TIMEOUT", flags.Lookup("shutdown-timeout"))
	mustBindEnv(v, "git_commit", "GIT_COMMIT")

	return cmd
}

func newVersionCommand(v *viper.Viper) *cobra.Command {
	mustBindEnv(v, "git_commit", "GIT_COMMIT")

	return &cobra.Command{
		Use:   "version",
		Short: "Print the mcp-oauth-gate version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "mcp-oauth-gate %s (%s)\n", version, gitCommit(v))
			return err
		},
	}
}

func gitCommit(v *viper.Viper) string {
	if commit := v.GetString("git_commit"); commit != "" {
		return commit
	}
	return "unknown"
}

func mustBindFlag(v *viper.Viper, key, env string, flag *pflag.Flag) {
	if flag == nil {
		panic(fmt.Sprintf("flag for key %s not found", key))
	}
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
	if env != "" {
		mustBindEnv(v, key, env)
	}
}

func mustBindEnv(v *viper.Viper, key, env string) {
	if err := v.BindEnv(key, env); err != nil {
		panic(err)
	}
}
