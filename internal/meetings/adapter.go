package meetings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/KaramelBytes/granola-mcp/internal/logging"
	"github.com/KaramelBytes/granola-mcp/internal/source"
)

// Status is the source's cache record plus what the adapter last loaded.
type Status struct {
	source.CacheInfo
	LastLoadedAt   *time.Time `json:"last_loaded_ts"`
	MeetingCount   int        `json:"meeting_count"`
	ValidStructure bool       `json:"valid_structure"`
	LoadError      string     `json:"load_error,omitempty"`
}

// Adapter owns the normalized meeting list derived from one source.
// It is safe for concurrent use.
type Adapter struct {
	src source.Source
	log *logging.Logger
	now func() time.Time

	mu       sync.Mutex
	snap     *source.Snapshot
	meetings []Meeting
	byID     map[string]int
	loadedAt time.Time
}

func NewAdapter(src source.Source, logger *logging.Logger) *Adapter {
	return &Adapter{src: src, log: logger, now: time.Now}
}

// SourceName reports which source variant backs the adapter.
func (a *Adapter) SourceName() string { return a.src.Name() }

// Load returns the current snapshot, loading it on first use or when force
// is set. Sources with their own staleness check are consulted every time.
func (a *Adapter) Load(ctx context.Context, force bool) (*source.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadLocked(ctx, force)
}

func (a *Adapter) loadLocked(ctx context.Context, force bool) (*source.Snapshot, error) {
	sp, hasSnapshots := a.src.(source.SnapshotProvider)
	if a.snap != nil && !force && !hasSnapshots {
		return a.snap, nil
	}

	var snap *source.Snapshot
	switch {
	case hasSnapshots:
		s, err := sp.Snapshot(ctx, force)
		if err != nil {
			return nil, err
		}
		if s == a.snap {
			return a.snap, nil
		}
		snap = s
	default:
		var docs []source.RawDocument
		var err error
		if p, ok := a.src.(source.Paginator); ok {
			docs, err = p.GetAllDocuments(ctx, force)
		} else {
			docs, err = a.src.GetDocuments(ctx, force)
		}
		if err != nil {
			return nil, err
		}
		snap = source.NewSnapshot(docs)
	}

	a.install(snap)
	a.log.Infof("loaded %d meetings from %s source", len(a.meetings), a.src.Name())
	return snap, nil
}

// install normalizes snap and replaces the previous generation wholesale.
func (a *Adapter) install(snap *source.Snapshot) {
	list := make([]Meeting, 0, len(snap.Documents))
	seen := make(map[string]bool, len(snap.Documents))
	for _, key := range snap.Keys() {
		m, ok := Normalize(snap.Documents[key], snap)
		if !ok || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		list = append(list, m)
	}
	SortMeetings(list)

	byID := make(map[string]int, len(list))
	for i, m := range list {
		byID[m.ID] = i
	}
	a.snap = snap
	a.meetings = list
	a.byID = byID
	a.loadedAt = a.now()
}

// SortMeetings orders by start_ts descending with ties on ascending id.
// Meetings without a start timestamp go last.
func SortMeetings(list []Meeting) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.StartTS != b.StartTS {
			if a.StartTS == "" || b.StartTS == "" {
				return b.StartTS == ""
			}
			return a.StartTS > b.StartTS
		}
		return a.ID < b.ID
	})
}

// Reload forces a fresh read from the source.
func (a *Adapter) Reload(ctx context.Context) error {
	_, err := a.Load(ctx, true)
	return err
}

// Meetings returns a copy of the sorted collection.
func (a *Adapter) Meetings(ctx context.Context) ([]Meeting, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.loadLocked(ctx, false); err != nil {
		return nil, err
	}
	out := make([]Meeting, len(a.meetings))
	copy(out, a.meetings)
	return out, nil
}

func (a *Adapter) MeetingByID(ctx context.Context, id string) (Meeting, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.loadLocked(ctx, false); err != nil {
		return Meeting{}, false, err
	}
	i, ok := a.byID[id]
	if !ok {
		return Meeting{}, false, nil
	}
	return a.meetings[i], true, nil
}

// Transcript returns the speaker turns recorded for id, or nil.
func (a *Adapter) Transcript(ctx context.Context, id string) ([]source.TranscriptTurn, error) {
	snap, err := a.Load(ctx, false)
	if err != nil {
		return nil, err
	}
	return snap.Transcripts[id], nil
}

// Metadata returns the raw side-table entry for id.
func (a *Adapter) Metadata(ctx context.Context, id string) (json.RawMessage, bool, error) {
	snap, err := a.Load(ctx, false)
	if err != nil {
		return nil, false, err
	}
	raw, ok := snap.Metadata[id]
	return raw, ok, nil
}

// CacheInfo reports the source diagnostics and the adapter's load state.
// A failing load is reported in the status rather than returned.
func (a *Adapter) CacheInfo(ctx context.Context) (Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var st Status
	if _, err := a.loadLocked(ctx, false); err != nil {
		st.LoadError = err.Error()
	} else {
		st.ValidStructure = true
	}
	info, err := a.src.CacheInfo()
	if err != nil {
		return st, fmt.Errorf("cache info: %w", err)
	}
	st.CacheInfo = info
	if a.snap != nil {
		t := a.loadedAt.UTC()
		st.LastLoadedAt = &t
		st.MeetingCount = len(a.meetings)
	}
	return st, nil
}

// Validate reports whether the source currently loads.
func (a *Adapter) Validate(ctx context.Context) bool {
	_, err := a.Load(ctx, false)
	return err == nil
}

// Refresh invalidates the source cache and drops the loaded generation.
func (a *Adapter) Refresh() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap = nil
	a.meetings = nil
	a.byID = nil
	a.loadedAt = time.Time{}
	if err := a.src.RefreshCache(); err != nil {
		return fmt.Errorf("refresh %s cache: %w", a.src.Name(), err)
	}
	return nil
}
