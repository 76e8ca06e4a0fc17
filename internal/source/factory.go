package source

import (
	"time"

	"github.com/KaramelBytes/granola-mcp/internal/config"
	"github.com/KaramelBytes/granola-mcp/internal/logging"
)

// New builds the source selected by cfg. "auto" prefers the remote API
// whenever a token is configured.
func New(cfg *config.Global, logger *logging.Logger) (Source, error) {
	if cfg.ResolvedSource() == config.SourceRemote {
		return NewRemoteSource(RemoteOptions{
			Token:                  cfg.APIToken,
			APIBase:                cfg.APIBase,
			CacheDir:               cfg.RemoteCacheDir,
			TTL:                    cfg.CacheTTL(),
			PageSize:               cfg.PageSize,
			IncludeLastViewedPanel: cfg.IncludeLastViewedPanel,
			HTTPTimeout:            cfg.HTTPTimeout(),
			RetryMaxAttempts:       cfg.RetryMaxAttempts,
			RetryBaseDelay:         time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
			RetryMaxDelay:          time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
			Logger:                 logger.With("source.remote"),
		})
	}
	return NewLocalSource(cfg.CachePath, logger.With("source.local")), nil
}
