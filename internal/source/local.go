package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/KaramelBytes/granola-mcp/internal/logging"
)

// LocalSource reads the desktop app's cache file. The outer file is a JSON
// object whose "cache" field is a string holding the real JSON payload.
type LocalSource struct {
	path string
	log  *logging.Logger

	mu      sync.Mutex
	snap    *Snapshot
	modTime time.Time
	size    int64
}

// NewLocalSource returns a source reading path. Nothing is read until first use.
func NewLocalSource(path string, logger *logging.Logger) *LocalSource {
	return &LocalSource{path: path, log: logger}
}

func (s *LocalSource) Name() string { return NameLocal }

// Path returns the cache file location.
func (s *LocalSource) Path() string { return s.path }

// Snapshot returns the parsed file, re-reading it when force is set, after
// RefreshCache, or when the file's mtime or size changed since the last read.
func (s *LocalSource) Snapshot(ctx context.Context, force bool) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return nil, &ParseError{Path: s.path, Reason: "cache file unreadable", Err: err}
	}
	if !force && s.snap != nil && info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return s.snap, nil
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &ParseError{Path: s.path, Reason: "cache file unreadable", Err: err}
	}
	snap, err := parseLocalCache(b, s.path)
	if err != nil {
		return nil, err
	}
	s.snap = snap
	s.modTime = info.ModTime()
	s.size = info.Size()
	s.log.Debugf("loaded %d documents from %s", len(snap.Documents), s.path)
	return snap, nil
}

// GetDocuments returns the file's documents ordered by storage key.
func (s *LocalSource) GetDocuments(ctx context.Context, force bool) ([]RawDocument, error) {
	snap, err := s.Snapshot(ctx, force)
	if err != nil {
		return nil, err
	}
	docs := make([]RawDocument, 0, len(snap.Documents))
	for _, k := range snap.Keys() {
		docs = append(docs, snap.Documents[k])
	}
	return docs, nil
}

// RefreshCache drops the memoized snapshot; the file itself is never touched.
func (s *LocalSource) RefreshCache() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = nil
	s.modTime = time.Time{}
	s.size = 0
	return nil
}

func (s *LocalSource) CacheInfo() (CacheInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := CacheInfo{Source: NameLocal, Location: s.path}
	if s.snap != nil {
		info.EntryCount = len(s.snap.Documents)
	}
	st, err := os.Stat(s.path)
	if err != nil {
		// A missing file is a status, not a failure.
		return info, nil
	}
	mt := st.ModTime().UTC()
	info.SizeBytes = st.Size()
	info.ModifiedAt = &mt
	info.Fresh = s.snap != nil && st.ModTime().Equal(s.modTime) && st.Size() == s.size
	return info, nil
}

func parseLocalCache(b []byte, path string) (*Snapshot, error) {
	if !gjson.ValidBytes(b) {
		return nil, &ParseError{Path: path, Reason: "outer document is not valid JSON"}
	}
	outer := gjson.ParseBytes(b)
	if !outer.IsObject() {
		return nil, &ParseError{Path: path, Reason: "outer document is not a JSON object"}
	}

	var inner gjson.Result
	cache := outer.Get("cache")
	switch {
	case cache.Type == gjson.String:
		if !gjson.Valid(cache.Str) {
			return nil, &ParseError{Path: path, Reason: "inner cache payload is not valid JSON"}
		}
		inner = gjson.Parse(cache.Str)
	case cache.IsObject():
		inner = cache
	default:
		return nil, &ParseError{Path: path, Reason: "missing cache field"}
	}

	state := inner.Get("state")
	if !state.IsObject() {
		return nil, &ParseError{Path: path, Reason: "missing or non-object state"}
	}

	snap := emptySnapshot()
	state.Get("documents").ForEach(func(k, v gjson.Result) bool {
		snap.Documents[k.String()] = RawDocument{Key: k.String(), Raw: json.RawMessage(v.Raw)}
		return true
	})
	state.Get("meetingsMetadata").ForEach(func(k, v gjson.Result) bool {
		snap.Metadata[k.String()] = json.RawMessage(v.Raw)
		return true
	})
	state.Get("documentLists").ForEach(func(k, v gjson.Result) bool {
		snap.Lists = append(snap.Lists, DocumentList{ID: k.String(), DocumentIDs: listMembers(v)})
		return true
	})
	state.Get("documentListsMetadata").ForEach(func(k, v gjson.Result) bool {
		snap.ListMetadata[k.String()] = json.RawMessage(v.Raw)
		return true
	})
	state.Get("transcripts").ForEach(func(k, v gjson.Result) bool {
		if turns := transcriptTurns(v); turns != nil {
			snap.Transcripts[k.String()] = turns
		}
		return true
	})
	return snap, nil
}

// listMembers accepts id strings, numbers, or objects carrying an id.
func listMembers(v gjson.Result) []string {
	if !v.IsArray() {
		return nil
	}
	var ids []string
	for _, e := range v.Array() {
		switch {
		case e.Type == gjson.String && e.Str != "":
			ids = append(ids, e.Str)
		case e.Type == gjson.Number:
			ids = append(ids, e.String())
		case e.IsObject():
			if id := e.Get("id"); id.Exists() && id.String() != "" {
				ids = append(ids, id.String())
			}
		}
	}
	return ids
}

func transcriptTurns(v gjson.Result) []TranscriptTurn {
	if !v.IsArray() {
		return nil
	}
	turns := make([]TranscriptTurn, 0, len(v.Array()))
	for _, e := range v.Array() {
		if !e.IsObject() {
			continue
		}
		text := e.Get("text")
		if text.Type != gjson.String {
			continue
		}
		turns = append(turns, TranscriptTurn{
			TS:      firstString(e, "start_timestamp", "timestamp", "ts"),
			Speaker: firstString(e, "source", "speaker"),
			Text:    text.Str,
		})
	}
	return turns
}

func firstString(v gjson.Result, paths ...string) string {
	for _, p := range paths {
		r := v.Get(p)
		if r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

// String is used in log lines and CLI output.
func (s *LocalSource) String() string {
	return fmt.Sprintf("local(%s)", s.path)
}
