package source

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{
		URL: "http://" + ln.Addr().String(),
		srv: srv,
		ln:  ln,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	t.Cleanup(s.Close)
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

// docsResponse builds a get-documents body with n meetings starting at offset.
func docsResponse(offset, n int) []byte {
	docs := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, map[string]any{"id": fmt.Sprintf("d%03d", offset+i), "title": "Meeting"})
	}
	b, _ := json.Marshal(map[string]any{"docs": docs})
	return b
}

// testServerSequence replies with statuses in order (repeating the last one)
// and counts every request. 2xx replies carry body.
func testServerSequence(t *testing.T, statuses []int, headers []http.Header, body []byte) (*ipv4Server, *int32) {
	t.Helper()
	var idx int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/get-documents" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(&idx, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		st := statuses[i]
		if headers != nil && i < len(headers) && headers[i] != nil {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		w.WriteHeader(st)
		if st >= 200 && st < 300 {
			_, _ = w.Write(body)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"message": http.StatusText(st)})
	}))
	return srv, &idx
}

// newTestRemote returns a remote source with instant, recorded sleeps.
func newTestRemote(t *testing.T, baseURL string) (*RemoteSource, *[]time.Duration) {
	t.Helper()
	s, err := NewRemoteSource(RemoteOptions{
		Token:                  "tok",
		APIBase:                baseURL,
		CacheDir:               filepath.Join(t.TempDir(), "remote"),
		TTL:                    time.Hour,
		PageSize:               2,
		IncludeLastViewedPanel: true,
		HTTPTimeout:            2 * time.Second,
		RetryMaxAttempts:       3,
		RetryBaseDelay:         time.Second,
		RetryMaxDelay:          8 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewRemoteSource: %v", err)
	}
	var mu sync.Mutex
	var delays []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		delays = append(delays, d)
		return ctx.Err()
	}
	return s, &delays
}

func TestCacheKeyFingerprint(t *testing.T) {
	a := cacheKey(PageRequest{Limit: 100, Offset: 0, IncludeLastViewedPanel: true})
	b := cacheKey(PageRequest{Limit: 100, Offset: 0, IncludeLastViewedPanel: false})
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", a)
	}
	if a == b {
		t.Error("panel flag must change the fingerprint")
	}
	if a != cacheKey(PageRequest{Limit: 100, IncludeLastViewedPanel: true}) {
		t.Error("fingerprint must be deterministic")
	}
}

func TestFetchPageSendsExpectedRequest(t *testing.T) {
	var mu sync.Mutex
	var got struct {
		auth, ua, rid string
		body          PageRequest
	}
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		got.auth = r.Header.Get("Authorization")
		got.ua = r.Header.Get("User-Agent")
		got.rid = r.Header.Get("X-Request-Id")
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		_, _ = w.Write(docsResponse(0, 1))
	}))
	s, _ := newTestRemote(t, srv.URL)

	docs, err := s.FetchPage(context.Background(), PageRequest{Limit: 5, Offset: 10, IncludeLastViewedPanel: true}, false)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if len(docs) != 1 || docs[0].ID() != "d000" {
		t.Fatalf("unexpected docs: %+v", docs)
	}
	mu.Lock()
	defer mu.Unlock()
	if got.auth != "Bearer tok" || got.ua != "Granola/1.0.0" || got.rid == "" {
		t.Errorf("unexpected headers: %+v", got)
	}
	if got.body.Limit != 5 || got.body.Offset != 10 || !got.body.IncludeLastViewedPanel {
		t.Errorf("unexpected body: %+v", got.body)
	}
}

func TestFetchPageGzipAndPlain(t *testing.T) {
	plain := docsResponse(0, 2)
	var zipped bytes.Buffer
	zw := gzip.NewWriter(&zipped)
	_, _ = zw.Write(plain)
	_ = zw.Close()

	for name, body := range map[string][]byte{"plain": plain, "gzip": zipped.Bytes()} {
		t.Run(name, func(t *testing.T) {
			srv, _ := testServerSequence(t, []int{200}, nil, body)
			s, _ := newTestRemote(t, srv.URL)
			docs, err := s.FetchPage(context.Background(), PageRequest{Limit: 2}, false)
			if err != nil {
				t.Fatalf("FetchPage: %v", err)
			}
			if len(docs) != 2 {
				t.Fatalf("expected 2 docs, got %d", len(docs))
			}
		})
	}
}

func TestFetchPageDocsNotListIsParseError(t *testing.T) {
	srv, _ := testServerSequence(t, []int{200}, nil, []byte(`{"docs": {"a": 1}}`))
	s, _ := newTestRemote(t, srv.URL)
	_, err := s.FetchPage(context.Background(), PageRequest{Limit: 2}, false)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestTTLFreshnessAndForce(t *testing.T) {
	srv, hits := testServerSequence(t, []int{200}, nil, docsResponse(0, 1))
	s, _ := newTestRemote(t, srv.URL)
	ctx := context.Background()
	req := PageRequest{Limit: 2, IncludeLastViewedPanel: true}

	if _, err := s.FetchPage(ctx, req, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FetchPage(ctx, req, false); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Fatalf("expected one HTTP call within TTL, got %d", n)
	}

	if _, err := s.FetchPage(ctx, req, true); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Fatalf("expected force to refetch, got %d calls", n)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.FetchPage(ctx, req, false); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(hits); n != 3 {
		t.Fatalf("expected expiry to refetch, got %d calls", n)
	}
}

func TestRetryThenSuccess(t *testing.T) {
	srv, hits := testServerSequence(t, []int{429, 429, 200}, nil, docsResponse(0, 1))
	s, delays := newTestRemote(t, srv.URL)

	docs, err := s.FetchPage(context.Background(), PageRequest{Limit: 2}, false)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("unexpected docs: %+v", docs)
	}
	if n := atomic.LoadInt32(hits); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
	if len(*delays) != 2 || (*delays)[0] != time.Second || (*delays)[1] != 2*time.Second {
		t.Errorf("expected backoff [1s 2s], got %v", *delays)
	}
}

func TestRetryAfterOverridesBackoff(t *testing.T) {
	srv, _ := testServerSequence(t, []int{429, 200}, []http.Header{{"Retry-After": {"5"}}, nil}, docsResponse(0, 1))
	s, delays := newTestRemote(t, srv.URL)
	if _, err := s.FetchPage(context.Background(), PageRequest{Limit: 2}, false); err != nil {
		t.Fatal(err)
	}
	if len(*delays) != 1 || (*delays)[0] != 5*time.Second {
		t.Errorf("expected Retry-After delay of 5s, got %v", *delays)
	}
}

func TestRateLimitExhausted(t *testing.T) {
	srv, hits := testServerSequence(t, []int{429}, nil, nil)
	s, _ := newTestRemote(t, srv.URL)

	_, err := s.FetchPage(context.Background(), PageRequest{Limit: 2}, false)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", n)
	}
	if rl.Attempts != 3 || rl.StatusCode != http.StatusTooManyRequests || rl.URL == "" {
		t.Errorf("unexpected error details: %+v", rl.APIError)
	}
}

func TestServerErrorExhausted(t *testing.T) {
	srv, hits := testServerSequence(t, []int{503}, nil, nil)
	s, _ := newTestRemote(t, srv.URL)
	_, err := s.FetchPage(context.Background(), PageRequest{Limit: 2}, false)
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestAuthErrorNotRetried(t *testing.T) {
	srv, hits := testServerSequence(t, []int{401}, nil, nil)
	s, delays := newTestRemote(t, srv.URL)
	_, err := s.FetchPage(context.Background(), PageRequest{Limit: 2}, false)
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("expected a single attempt, got %d", n)
	}
	if len(*delays) != 0 {
		t.Errorf("expected no backoff, got %v", *delays)
	}
}

func TestOtherClientErrorNotRetried(t *testing.T) {
	srv, hits := testServerSequence(t, []int{404}, nil, nil)
	s, _ := newTestRemote(t, srv.URL)
	_, err := s.FetchPage(context.Background(), PageRequest{Limit: 2}, false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
	if apiErr.Message != "Not Found" {
		t.Errorf("expected message from body, got %q", apiErr.Message)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("expected a single attempt, got %d", n)
	}
}

func TestNetworkErrorExhausted(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: cannot open local listener (%v)", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	s, delays := newTestRemote(t, "http://"+addr)
	_, err = s.FetchPage(context.Background(), PageRequest{Limit: 2}, false)
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if ne.Attempts != 3 || ne.Host != addr {
		t.Errorf("unexpected network error: %+v", ne)
	}
	if len(*delays) != 2 {
		t.Errorf("expected 2 backoff sleeps, got %v", *delays)
	}
}

func TestGetAllDocumentsStopsOnShortPage(t *testing.T) {
	var calls int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req PageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		n := 2
		if req.Offset >= 4 {
			n = 1
		}
		_, _ = w.Write(docsResponse(req.Offset, n))
	}))
	s, _ := newTestRemote(t, srv.URL)

	docs, err := s.GetAllDocuments(context.Background(), false)
	if err != nil {
		t.Fatalf("GetAllDocuments: %v", err)
	}
	if len(docs) != 5 {
		t.Fatalf("expected 5 docs, got %d", len(docs))
	}
	if docs[0].ID() != "d000" || docs[4].ID() != "d004" {
		t.Errorf("expected fetch order, got %s..%s", docs[0].ID(), docs[4].ID())
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("expected 3 page requests, got %d", n)
	}

	doc, ok, err := s.GetDocumentByID(context.Background(), "d003", false)
	if err != nil || !ok || doc.ID() != "d003" {
		t.Fatalf("GetDocumentByID: doc=%v ok=%v err=%v", doc.ID(), ok, err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("expected cached pages to serve the lookup, got %d calls", n)
	}
}

func TestGetDocumentsSharesFirstPageWithGetAll(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var limits []int
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req PageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		limits = append(limits, req.Limit)
		mu.Unlock()
		_, _ = w.Write(docsResponse(req.Offset, 1))
	}))
	s, _ := newTestRemote(t, srv.URL)
	ctx := context.Background()

	first, err := s.GetDocuments(ctx, false)
	if err != nil {
		t.Fatalf("GetDocuments: %v", err)
	}
	all, err := s.GetAllDocuments(ctx, false)
	if err != nil {
		t.Fatalf("GetAllDocuments: %v", err)
	}
	if len(first) != 1 || len(all) != 1 {
		t.Fatalf("expected one doc from each, got %d and %d", len(first), len(all))
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected the first page to be served from cache, got %d calls", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(limits) != 1 || limits[0] != 2 {
		t.Errorf("expected the configured page size as limit, got %v", limits)
	}
}

func TestGetAllDocumentsStopsOnEmptyPage(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req PageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Offset >= 2 {
			_, _ = w.Write(docsResponse(0, 0))
			return
		}
		_, _ = w.Write(docsResponse(req.Offset, 2))
	}))
	s, _ := newTestRemote(t, srv.URL)
	docs, err := s.GetAllDocuments(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
}

func TestRefreshCacheDeletesFilesAndCacheInfo(t *testing.T) {
	srv, hits := testServerSequence(t, []int{200}, nil, docsResponse(0, 1))
	s, _ := newTestRemote(t, srv.URL)
	ctx := context.Background()

	for _, off := range []int{0, 2} {
		if _, err := s.FetchPage(ctx, PageRequest{Limit: 2, Offset: off}, false); err != nil {
			t.Fatal(err)
		}
	}
	// unrelated files survive a refresh
	keep := filepath.Join(s.cacheDir, "notes.txt")
	if err := os.WriteFile(keep, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := s.CacheInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Source != NameRemote || info.EntryCount != 2 || info.FreshEntryCount != 2 || !info.Fresh {
		t.Errorf("unexpected cache info: %+v", info)
	}
	if info.SizeBytes == 0 || info.OldestEntryAt == nil || info.TTLSeconds != 3600 {
		t.Errorf("unexpected cache info: %+v", info)
	}

	if err := s.RefreshCache(); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}
	info, _ = s.CacheInfo()
	if info.EntryCount != 0 {
		t.Errorf("expected no cache files after refresh, got %d", info.EntryCount)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("refresh removed an unrelated file: %v", err)
	}

	if _, err := s.FetchPage(ctx, PageRequest{Limit: 2}, false); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(hits); n != 3 {
		t.Errorf("expected refetch after refresh, got %d calls", n)
	}
}

func TestNewRemoteSourceRequiresToken(t *testing.T) {
	if _, err := NewRemoteSource(RemoteOptions{CacheDir: t.TempDir()}); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	if s, err := parseRetryAfterSeconds("7"); err != nil || s != 7 {
		t.Errorf("seconds: got %d, %v", s, err)
	}
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	if s, err := parseRetryAfterSeconds(future); err != nil || s < 25 || s > 30 {
		t.Errorf("http date: got %d, %v", s, err)
	}
	if _, err := parseRetryAfterSeconds("soon"); err == nil {
		t.Error("expected error for garbage value")
	}
}
