// Package source produces raw Granola documents from either the desktop
// app's local cache file or the remote document API, and owns the on-disk
// and in-memory caches that sit in front of them.
package source

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/tidwall/gjson"
)

// Source names reported in CacheInfo.
const (
	NameLocal  = "local"
	NameRemote = "remote_api"
)

// Source is the contract every document source satisfies.
type Source interface {
	Name() string
	// GetDocuments returns raw documents, bypassing caches when force is set.
	GetDocuments(ctx context.Context, force bool) ([]RawDocument, error)
	// RefreshCache drops persisted and in-memory state so the next read refetches.
	RefreshCache() error
	CacheInfo() (CacheInfo, error)
}

// Paginator is implemented by sources that serve the collection in pages.
type Paginator interface {
	GetAllDocuments(ctx context.Context, force bool) ([]RawDocument, error)
}

// SnapshotProvider is implemented by sources that carry side tables
// (metadata, folders, transcripts) alongside the documents.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, force bool) (*Snapshot, error)
}

// RawDocument is one loosely-typed upstream document.
type RawDocument struct {
	// Key is the storage key the document was found under; empty for list payloads.
	Key string
	Raw json.RawMessage
}

// Get reads a gjson path from the document.
func (d RawDocument) Get(path string) gjson.Result {
	return gjson.GetBytes(d.Raw, path)
}

// IsObject reports whether the document is a JSON object at all.
func (d RawDocument) IsObject() bool {
	return gjson.ParseBytes(d.Raw).IsObject()
}

// ID returns the document's own id (string or number), falling back to Key.
func (d RawDocument) ID() string {
	id := d.Get("id")
	switch id.Type {
	case gjson.String, gjson.Number:
		if s := id.String(); s != "" {
			return s
		}
	}
	return d.Key
}

// DocumentList is one folder and the ids of its member documents, in file order.
type DocumentList struct {
	ID          string
	DocumentIDs []string
}

// TranscriptTurn is one speaker turn of a meeting transcript.
type TranscriptTurn struct {
	TS      string `json:"ts"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Snapshot is one loaded generation of documents plus side tables.
// It is replaced wholesale on reload, never patched.
type Snapshot struct {
	Documents    map[string]RawDocument
	Metadata     map[string]json.RawMessage
	Lists        []DocumentList
	ListMetadata map[string]json.RawMessage
	Transcripts  map[string][]TranscriptTurn
}

// NewSnapshot builds a side-table-free snapshot from a document list,
// keyed by id. The first occurrence of an id wins; documents without any
// identifier are dropped.
func NewSnapshot(docs []RawDocument) *Snapshot {
	snap := emptySnapshot()
	for _, d := range docs {
		id := d.ID()
		if id == "" {
			continue
		}
		if _, dup := snap.Documents[id]; dup {
			continue
		}
		if d.Key == "" {
			d.Key = id
		}
		snap.Documents[id] = d
	}
	return snap
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Documents:    map[string]RawDocument{},
		Metadata:     map[string]json.RawMessage{},
		ListMetadata: map[string]json.RawMessage{},
		Transcripts:  map[string][]TranscriptTurn{},
	}
}

// Keys returns document keys in sorted order for deterministic iteration.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Documents))
	for k := range s.Documents {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CacheInfo is the diagnostic record a source reports about its cache.
type CacheInfo struct {
	Source     string     `json:"source"`
	Location   string     `json:"location"`
	SizeBytes  int64      `json:"size_bytes"`
	EntryCount int        `json:"entry_count"`
	Fresh      bool       `json:"fresh"`
	ModifiedAt *time.Time `json:"modified_ts,omitempty"`

	// Remote only
	APIBase         string     `json:"api_base,omitempty"`
	FreshEntryCount int        `json:"fresh_entry_count,omitempty"`
	TTLSeconds      int        `json:"cache_ttl_seconds,omitempty"`
	OldestEntryAt   *time.Time `json:"oldest_cache_ts,omitempty"`
}
