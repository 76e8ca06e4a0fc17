package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfgpkg "github.com/KaramelBytes/granola-mcp/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set granola-mcp configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		shown := *cfg
		shown.APIToken = mask(shown.APIToken)
		b, err := yaml.Marshal(&shown)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(b))
		fmt.Fprintf(cmd.OutOrStdout(), "# resolved source: %s\n", cfg.ResolvedSource())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		// Start from the file contents, not the flag-overridden view.
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := setConfigValue(c, key, val); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		cfg = c
		fmt.Println("Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "source":
		switch val {
		case cfgpkg.SourceAuto, cfgpkg.SourceLocal, cfgpkg.SourceRemote:
			c.Source = val
		default:
			return fmt.Errorf("invalid source: %s (use auto, local or remote)", val)
		}
	case "cache_path":
		c.CachePath = val
	case "api_token":
		c.APIToken = val
	case "api_base":
		c.APIBase = val
	case "remote_cache_dir":
		c.RemoteCacheDir = val
	case "log_dir":
		c.LogDir = val
	case "cache_ttl_sec":
		c.CacheTTLSec, err = atoi()
	case "page_size":
		c.PageSize, err = atoi()
	case "default_limit":
		c.DefaultLimit, err = atoi()
	case "max_limit":
		c.MaxLimit, err = atoi()
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi()
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoi()
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoi()
	case "include_last_viewed_panel", "debug":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for %s: %v", key, val)
		}
		if key == "debug" {
			c.Debug = b
		} else {
			c.IncludeLastViewedPanel = b
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
