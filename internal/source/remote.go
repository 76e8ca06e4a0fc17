package source

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/KaramelBytes/granola-mcp/internal/logging"
)

const (
	defaultAPIBase   = "https://api.granola.ai"
	defaultPageSize  = 100
	defaultUserAgent = "Granola/1.0.0"
)

// RemoteOptions configures a RemoteSource. Zero values fall back to defaults.
type RemoteOptions struct {
	Token                  string
	APIBase                string
	CacheDir               string
	TTL                    time.Duration
	PageSize               int
	IncludeLastViewedPanel bool

	HTTPTimeout      time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	Logger *logging.Logger
}

// PageRequest selects one page of the document list.
type PageRequest struct {
	Limit                  int  `json:"limit"`
	Offset                 int  `json:"offset"`
	IncludeLastViewedPanel bool `json:"include_last_viewed_panel"`
}

// RemoteSource fetches documents from the Granola API, persisting each raw
// response under a fingerprint of its request parameters.
type RemoteSource struct {
	httpClient       *http.Client
	token            string
	apiBase          string
	cacheDir         string
	ttl              time.Duration
	pageSize         int
	includePanel     bool
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	log              *logging.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewRemoteSource returns a remote source. A token and a cache directory are required.
func NewRemoteSource(opts RemoteOptions) (*RemoteSource, error) {
	if opts.Token == "" {
		return nil, errors.New("remote source requires an API token")
	}
	if opts.CacheDir == "" {
		return nil, errors.New("remote source requires a cache directory")
	}
	if opts.APIBase == "" {
		opts.APIBase = defaultAPIBase
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 30 * time.Second
	}
	if opts.RetryMaxAttempts <= 0 {
		opts.RetryMaxAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = 8 * time.Second
	}
	return &RemoteSource{
		httpClient:       &http.Client{Timeout: opts.HTTPTimeout},
		token:            opts.Token,
		apiBase:          strings.TrimRight(opts.APIBase, "/"),
		cacheDir:         opts.CacheDir,
		ttl:              opts.TTL,
		pageSize:         opts.PageSize,
		includePanel:     opts.IncludeLastViewedPanel,
		retryMaxAttempts: opts.RetryMaxAttempts,
		retryBaseDelay:   opts.RetryBaseDelay,
		retryMaxDelay:    opts.RetryMaxDelay,
		log:              opts.Logger,
		now:              time.Now,
		sleep:            sleepContext,
	}, nil
}

func (s *RemoteSource) Name() string { return NameRemote }

// GetDocuments returns the first page only. It shares its cache file with
// the first page of GetAllDocuments.
func (s *RemoteSource) GetDocuments(ctx context.Context, force bool) ([]RawDocument, error) {
	return s.FetchPage(ctx, PageRequest{Limit: s.pageSize, Offset: 0, IncludeLastViewedPanel: s.includePanel}, force)
}

// GetAllDocuments walks pages from offset 0 until an empty or short page.
func (s *RemoteSource) GetAllDocuments(ctx context.Context, force bool) ([]RawDocument, error) {
	var all []RawDocument
	for offset := 0; ; offset += s.pageSize {
		page, err := s.FetchPage(ctx, PageRequest{Limit: s.pageSize, Offset: offset, IncludeLastViewedPanel: s.includePanel}, force)
		if err != nil {
			return nil, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		all = append(all, page...)
		if len(page) < s.pageSize {
			break
		}
	}
	s.log.Debugf("fetched %d documents", len(all))
	return all, nil
}

// GetDocumentByID scans the whole collection for id.
func (s *RemoteSource) GetDocumentByID(ctx context.Context, id string, force bool) (RawDocument, bool, error) {
	docs, err := s.GetAllDocuments(ctx, force)
	if err != nil {
		return RawDocument{}, false, err
	}
	for _, d := range docs {
		if d.ID() == id {
			return d, true, nil
		}
	}
	return RawDocument{}, false, nil
}

// FetchPage serves req from a fresh cache file, or fetches and persists it.
func (s *RemoteSource) FetchPage(ctx context.Context, req PageRequest, force bool) ([]RawDocument, error) {
	path := s.cachePath(cacheKey(req))
	if !force {
		if docs, ok := s.readFresh(path); ok {
			s.log.Debugf("cache hit %s", path)
			return docs, nil
		}
	}
	body, endpoint, err := s.fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	docs, err := extractDocs(body, endpoint)
	if err != nil {
		return nil, err
	}
	if err := s.writeCache(path, body); err != nil {
		s.log.Warnf("failed to write cache file %s: %v", path, err)
	}
	return docs, nil
}

// fetch POSTs one page request, retrying 429, 5xx and network failures.
func (s *RemoteSource) fetch(ctx context.Context, req PageRequest) ([]byte, string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}
	endpoint := s.apiBase + "/v2/get-documents"
	backoff := s.retryBaseDelay

	var lastErr error
	for attempt := 1; attempt <= s.retryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, endpoint, ctx.Err()
		}
		body, err := s.do(ctx, endpoint, payload, attempt)
		if err == nil {
			return body, endpoint, nil
		}
		if ctx.Err() != nil {
			return nil, endpoint, ctx.Err()
		}
		lastErr = err
		if !isRetryable(err) || attempt == s.retryMaxAttempts {
			break
		}
		delay := backoff
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			delay = rl.RetryAfter
		}
		if s.retryMaxDelay > 0 && delay > s.retryMaxDelay {
			delay = s.retryMaxDelay
		}
		s.log.Warnf("attempt %d/%d failed, retrying in %s: %v", attempt, s.retryMaxAttempts, delay, err)
		if err := s.sleep(ctx, delay); err != nil {
			return nil, endpoint, err
		}
		backoff *= 2
	}
	return nil, endpoint, lastErr
}

// do performs a single attempt and returns a classified error on failure.
func (s *RemoteSource) do(ctx context.Context, endpoint string, payload []byte, attempt int) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Authorization", "Bearer "+s.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "*/*")
	httpReq.Header.Set("Accept-Encoding", "gzip")
	httpReq.Header.Set("User-Agent", defaultUserAgent)
	httpReq.Header.Set("X-Request-Id", requestID)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Host: hostOf(endpoint), Attempts: attempt, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		body = maybeGunzip(body)
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
			Body:       string(body),
			URL:        endpoint,
			Attempts:   attempt,
			RequestID:  requestID,
		}
		if rid := extractRequestID(resp); rid != "" {
			apiErr.RequestID = rid
		}
		return nil, classifyAPIError(apiErr, resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Host: hostOf(endpoint), Attempts: attempt, Err: fmt.Errorf("read body: %w", err)}
	}
	return maybeGunzip(raw), nil
}

func isRetryable(err error) bool {
	var rl *RateLimitError
	var se *ServerError
	var ne *NetworkError
	return errors.As(err, &rl) || errors.As(err, &se) || errors.As(err, &ne)
}

// classifyAPIError maps a generic APIError to the typed errors callers switch on.
func classifyAPIError(apiErr *APIError, resp *http.Response) error {
	sc := apiErr.StatusCode
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case sc >= 500 && sc <= 599:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

// parseRetryAfterSeconds interprets a Retry-After value as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// errorMessage pulls a human message out of an error body, if it has one.
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	for _, p := range []string{"error.message", "message", "error", "detail"} {
		if r := gjson.GetBytes(body, p); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

// maybeGunzip decompresses gzip bodies and returns anything else untouched.
func maybeGunzip(b []byte) []byte {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return b
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return b
	}
	return out
}

// extractDocs returns the "docs" array of a get-documents response.
func extractDocs(body []byte, where string) ([]RawDocument, error) {
	if !gjson.ValidBytes(body) {
		return nil, &ParseError{Path: where, Reason: "response is not valid JSON"}
	}
	docs := gjson.GetBytes(body, "docs")
	if !docs.IsArray() {
		return nil, &ParseError{Path: where, Reason: "response docs field is not a list"}
	}
	arr := docs.Array()
	out := make([]RawDocument, 0, len(arr))
	for _, d := range arr {
		out = append(out, RawDocument{Raw: json.RawMessage(d.Raw)})
	}
	return out, nil
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Host
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
