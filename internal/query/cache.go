package query

import (
	"context"
	"time"

	"github.com/KaramelBytes/granola-mcp/internal/meetings"
)

// CacheStatusOutput is the adapter's status record.
type CacheStatusOutput = meetings.Status

type CacheRefreshOutput struct {
	Refreshed   bool      `json:"refreshed"`
	Source      string    `json:"source"`
	RefreshedAt time.Time `json:"refreshed_ts"`
}

// CacheStatus never fails because the cache is broken; a failed load shows
// up as valid_structure=false with the error text.
func (s *Service) CacheStatus(ctx context.Context) (*CacheStatusOutput, error) {
	st, err := s.store.CacheInfo(ctx)
	if err != nil {
		return nil, err
	}
	if st.LoadError != "" {
		s.log.Warnf("cache status: load failed: %s", st.LoadError)
	}
	return &st, nil
}

// CacheRefresh drops source caches and the loaded snapshot; the next read refetches.
func (s *Service) CacheRefresh(ctx context.Context) (*CacheRefreshOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.store.Refresh(); err != nil {
		return nil, err
	}
	src := s.store.SourceName()
	s.log.Infof("cache refreshed (%s)", src)
	return &CacheRefreshOutput{Refreshed: true, Source: src, RefreshedAt: s.now().UTC()}, nil
}
