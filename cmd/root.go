package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/granola-mcp/internal/config"
	"github.com/KaramelBytes/granola-mcp/internal/logging"
	"github.com/KaramelBytes/granola-mcp/internal/meetings"
	"github.com/KaramelBytes/granola-mcp/internal/query"
	"github.com/KaramelBytes/granola-mcp/internal/source"
)

// Version is stamped at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	cfgFile string
	debug   bool
	// Source flags (override config if set)
	flagSource    string
	flagCachePath string
	flagAPIToken  string
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "granola-mcp",
	Short: "Granola meeting notes as MCP tools",
	Long: `granola-mcp reads Granola meeting notes from the desktop app's local cache or from the
Granola API and serves them to MCP clients as read-only tools. Every tool is also
available as a subcommand for use from a terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.Version = Version
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/granola-mcp/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.StringVar(&flagSource, "source", "", "document source: auto, local or remote (overrides config)")
	pf.StringVar(&flagCachePath, "cache-path", "", "path to the Granola cache-v3.json (overrides config)")
	pf.StringVar(&flagAPIToken, "api-token", "", "Granola API token (overrides config and GRANOLA_API_TOKEN)")
	pf.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	pf.IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max attempts on 429/5xx/network errors (overrides config)")
	pf.IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	pf.IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = cfgpkg.Defaults()
	}
	cfg = c
	applyFlagOverrides(cfg, rootCmd.PersistentFlags().Changed)
}

// applyFlagOverrides copies explicitly set persistent flags onto c.
func applyFlagOverrides(c *cfgpkg.Global, changed func(string) bool) {
	if changed("source") && flagSource != "" {
		c.Source = flagSource
	}
	if changed("cache-path") && flagCachePath != "" {
		c.CachePath = flagCachePath
	}
	if changed("api-token") && flagAPIToken != "" {
		c.APIToken = flagAPIToken
	}
	if changed("debug") {
		c.Debug = debug
	}
	if changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		c.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if changed("retry-max") && flagRetryMaxAttempts > 0 {
		c.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		c.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		c.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
}

// app is the per-invocation wiring shared by every command.
type app struct {
	log *logging.Logger
	svc *query.Service
}

func (a *app) Close() {
	_ = a.log.Close()
}

// newApp builds logger, source, adapter and query service from cfg.
func newApp() (*app, error) {
	if cfg == nil {
		cfg = cfgpkg.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogDir, "granola-mcp", cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v (logging to stderr)\n", err)
	}
	src, err := source.New(cfg, logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	logger.Infof("session %s: source=%s", logging.SessionID(), src.Name())
	adapter := meetings.NewAdapter(src, logger.With("meetings"))
	svc := query.New(cfg, adapter, logger.With("query"))
	return &app{log: logger, svc: svc}, nil
}
