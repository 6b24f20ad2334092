package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/craftops/modserver/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Client talks to the Modrinth-style registry API. Read responses are
// cached for a bounded TTL; concurrent misses for the same key are
// coalesced into a single fetch.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	cache     *responseCache
	limiter   *rate.Limiter
	group     singleflight.Group
	logger    *zap.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	UserAgent string
	CacheTTL  time.Duration
	Timeout   time.Duration
	RPS       float64
	Burst     int
}

// NewClient creates a registry client
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst)
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		http:      &http.Client{Timeout: opts.Timeout},
		cache:     newResponseCache(opts.CacheTTL),
		limiter:   limiter,
		logger:    logger,
	}
}

// ExtractSlug normalizes a project URL or slug into a slug. Only the
// registry's own host is accepted in URL form.
func ExtractSlug(urlOrSlug string) (string, error) {
	s := strings.TrimSpace(urlOrSlug)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return s, nil
	}

	parsed, err := url.Parse(s)
	if err != nil {
		return "", netErr("parse url "+s, err)
	}
	if !strings.Contains(parsed.Host, "modrinth.com") {
		return "", netErr("extract slug", fmt.Errorf("unsupported url: %s", s))
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "mod" {
		return parts[1], nil
	}
	return "", netErr("extract slug", fmt.Errorf("no slug in url: %s", s))
}

// GetProject fetches project metadata by slug, id or project URL
func (c *Client) GetProject(ctx context.Context, slugOrURL string) (*model.Project, error) {
	slug, err := ExtractSlug(slugOrURL)
	if err != nil {
		return nil, err
	}

	body, err := c.request(ctx, "project/"+slug, nil)
	if err != nil {
		return nil, err
	}

	var project model.Project
	if err := json.Unmarshal(body, &project); err != nil {
		return nil, netErr("decode project "+slug, err)
	}
	return &project, nil
}

// GetVersions fetches a project's versions, optionally filtered by game
// versions and loaders on the registry side.
func (c *Client) GetVersions(ctx context.Context, slugOrURL string, gameVersions, loaders []string) ([]model.Version, error) {
	slug, err := ExtractSlug(slugOrURL)
	if err != nil {
		return nil, err
	}

	params := map[string]string{}
	if len(gameVersions) > 0 {
		params["game_versions"] = jsonList(gameVersions)
	}
	if len(loaders) > 0 {
		params["loaders"] = jsonList(loaders)
	}

	body, err := c.request(ctx, "project/"+slug+"/version", params)
	if err != nil {
		return nil, err
	}

	var versions []model.Version
	if err := json.Unmarshal(body, &versions); err != nil {
		return nil, netErr("decode versions "+slug, err)
	}
	return versions, nil
}

// GetVersion fetches a single version by id
func (c *Client) GetVersion(ctx context.Context, versionID string) (*model.Version, error) {
	body, err := c.request(ctx, "version/"+versionID, nil)
	if err != nil {
		return nil, err
	}

	var version model.Version
	if err := json.Unmarshal(body, &version); err != nil {
		return nil, netErr("decode version "+versionID, err)
	}
	return &version, nil
}

// SearchResult is one hit of a project search.
type SearchResult struct {
	ProjectID   string `json:"project_id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Downloads   int64  `json:"downloads"`
}

// Search queries the registry's project search
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	params := map[string]string{
		"query": query,
		"limit": fmt.Sprintf("%d", limit),
	}

	body, err := c.request(ctx, "search", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Hits []SearchResult `json:"hits"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, netErr("decode search", err)
	}
	return resp.Hits, nil
}

// Download streams a version file to destPath. It returns false instead
// of an error on failure so callers decide whether to abort.
func (c *Client) Download(ctx context.Context, file *model.VersionFile, destPath string) bool {
	if file == nil || file.URL == "" {
		c.logger.Error("download skipped: no file url")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		c.logger.Error("failed to build download request", zap.String("url", file.URL), zap.Error(err))
		return false
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("download failed", zap.String("file", file.Filename), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("download failed",
			zap.String("file", file.Filename),
			zap.Int("status", resp.StatusCode),
		)
		return false
	}

	out, err := os.Create(destPath)
	if err != nil {
		c.logger.Error("failed to create file", zap.String("path", destPath), zap.Error(err))
		return false
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		c.logger.Error("failed to write file", zap.String("path", destPath), zap.Error(err))
		os.Remove(destPath)
		return false
	}

	c.logger.Info("file downloaded",
		zap.String("file", file.Filename),
		zap.Int64("size", file.Size),
	)
	return true
}

// ClearCache drops all cached responses
func (c *Client) ClearCache() {
	c.cache.clear()
}

// request performs a cached GET against the registry API
func (c *Client) request(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	key := cacheKey(endpoint, params)

	if body, ok := c.cache.get(key); ok {
		c.logger.Debug("registry cache hit", zap.String("key", key))
		return body, nil
	}

	body, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under singleflight: another caller may have just
		// refreshed the entry.
		if body, ok := c.cache.get(key); ok {
			return body, nil
		}
		body, err := c.fetch(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}
		c.cache.put(key, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

func (c *Client) fetch(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, timeoutErr(endpoint, err)
	}

	u := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, netErr(endpoint, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	c.logger.Debug("registry request", zap.String("url", req.URL.String()))

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, timeoutErr(endpoint, err)
		}
		return nil, netErr(endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, notFound(endpoint)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, rateLimited(endpoint)
	case resp.StatusCode != http.StatusOK:
		return nil, netErr(endpoint, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, netErr(endpoint, err)
	}
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// jsonList encodes values the way the registry expects list parameters
func jsonList(values []string) string {
	b, _ := json.Marshal(values)
	return string(b)
}
