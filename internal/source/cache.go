package source

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/granola-mcp/internal/utils"
)

const cacheFilePattern = "docs_*.json"

// cacheKey fingerprints a page request: the first 16 hex chars of
// sha256("<limit>:<offset>:<True|False>").
func cacheKey(req PageRequest) string {
	flag := "False"
	if req.IncludeLastViewedPanel {
		flag = "True"
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%d:%s", req.Limit, req.Offset, flag)))
	return hex.EncodeToString(sum[:])[:16]
}

func (s *RemoteSource) cachePath(key string) string {
	return filepath.Join(s.cacheDir, "docs_"+key+".json")
}

// readFresh returns the cached page when the file is younger than the TTL
// and still carries a docs list.
func (s *RemoteSource) readFresh(path string) ([]RawDocument, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if s.now().Sub(info.ModTime()) >= s.ttl {
		return nil, false
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	docs, err := extractDocs(b, path)
	if err != nil {
		s.log.Debugf("ignoring unusable cache file %s: %v", path, err)
		return nil, false
	}
	return docs, true
}

func (s *RemoteSource) writeCache(path string, body []byte) error {
	return utils.SafeWriteFile(path, body)
}

func (s *RemoteSource) cacheFiles() ([]string, error) {
	return filepath.Glob(filepath.Join(s.cacheDir, cacheFilePattern))
}

// RefreshCache deletes every persisted page. The first deletion error is returned.
func (s *RemoteSource) RefreshCache() error {
	files, err := s.cacheFiles()
	if err != nil {
		return fmt.Errorf("list cache files: %w", err)
	}
	var firstErr error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", f, err)
		}
	}
	s.log.Infof("removed %d cache file(s) from %s", len(files), s.cacheDir)
	return firstErr
}

func (s *RemoteSource) CacheInfo() (CacheInfo, error) {
	info := CacheInfo{
		Source:     NameRemote,
		Location:   s.cacheDir,
		APIBase:    s.apiBase,
		TTLSeconds: int(s.ttl.Seconds()),
	}
	files, err := s.cacheFiles()
	if err != nil {
		return info, fmt.Errorf("list cache files: %w", err)
	}
	now := s.now()
	for _, f := range files {
		st, err := os.Stat(f)
		if err != nil {
			continue
		}
		info.EntryCount++
		info.SizeBytes += st.Size()
		mt := st.ModTime().UTC()
		if info.OldestEntryAt == nil || mt.Before(*info.OldestEntryAt) {
			info.OldestEntryAt = &mt
		}
		if now.Sub(st.ModTime()) < s.ttl {
			info.FreshEntryCount++
		}
	}
	info.Fresh = info.EntryCount > 0 && info.FreshEntryCount == info.EntryCount
	return info, nil
}
