// Package upmapi fetches per-year subject records (faculty roster and
// evaluation activities) from the university's public API, with a disk cache
// keyed by (year, semester, plan, subject).
package upmapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Professor is one named entry of a subject's faculty roster.
type Professor struct {
	Nombre string `json:"nombre"`
}

// EvaluationActivity is one typed assessment activity of a subject.
type EvaluationActivity struct {
	Tipo string `json:"tipo"`
}

// YearRecord is the per-(year, subject) API document. Only the faculty and
// evaluation projections are consumed; missing keys decode to empty slices.
type YearRecord struct {
	Profesores            []Professor          `json:"profesores"`
	ActividadesEvaluacion []EvaluationActivity `json:"actividades_evaluacion"`
}

// FacultyNames returns the set of professor names in the record.
func (r *YearRecord) FacultyNames() map[string]struct{} {
	names := make(map[string]struct{})
	if r == nil {
		return names
	}
	for _, p := range r.Profesores {
		if p.Nombre != "" {
			names[p.Nombre] = struct{}{}
		}
	}
	return names
}

// EvaluationTypes returns the set of evaluation activity types in the record.
func (r *YearRecord) EvaluationTypes() map[string]struct{} {
	types := make(map[string]struct{})
	if r == nil {
		return types
	}
	for _, a := range r.ActividadesEvaluacion {
		if a.Tipo != "" {
			types[a.Tipo] = struct{}{}
		}
	}
	return types
}

type Options struct {
	BaseURL    string
	Semester   string
	CacheDir   string
	Timeout    time.Duration
	RateEvery  time.Duration
	HTTPClient *http.Client
}

type Option func(*Options)

func WithBaseURL(url string) Option {
	return func(o *Options) { o.BaseURL = url }
}

func WithSemester(semester string) Option {
	return func(o *Options) { o.Semester = semester }
}

func WithCacheDir(dir string) Option {
	return func(o *Options) { o.CacheDir = dir }
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithRateEvery sets the minimum interval between network requests.
func WithRateEvery(d time.Duration) Option {
	return func(o *Options) { o.RateEvery = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) { o.HTTPClient = c }
}

// Client fetches per-year subject documents sequentially, pacing network
// requests to stay within polite limits. Cache hits bypass the limiter.
type Client struct {
	baseURL  string
	semester string
	cacheDir string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// New creates a Client. Defaults match the public UPM endpoint: one request
// every 500ms, 10s per-request timeout.
func New(logger *zap.Logger, opts ...Option) *Client {
	options := &Options{
		BaseURL:   "https://www.upm.es/comun_gauss/publico/api",
		Semester:  "2S",
		CacheDir:  "api_cache",
		Timeout:   10 * time.Second,
		RateEvery: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(options)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.Timeout}
	}

	return &Client{
		baseURL:  options.BaseURL,
		semester: options.Semester,
		cacheDir: options.CacheDir,
		http:     httpClient,
		limiter:  rate.NewLimiter(rate.Every(options.RateEvery), 1),
		logger:   logger.Named("upmapi"),
	}
}

func (c *Client) cachePath(year, planCode, subjectCode string) string {
	return filepath.Join(c.cacheDir, fmt.Sprintf("%s_%s", year, c.semester),
		fmt.Sprintf("%s_%s.json", planCode, subjectCode))
}

// SubjectYearData returns the API document for one (year, subject) pair. A
// valid cache file short-circuits the network call; any fetch failure is
// reported as an error and the caller treats it as absent year data.
func (c *Client) SubjectYearData(ctx context.Context, year, planCode, subjectCode string) (*YearRecord, error) {
	path := c.cachePath(year, planCode, subjectCode)

	if raw, err := os.ReadFile(path); err == nil {
		var cached YearRecord
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
		// Corrupt cache file: fall through to a fresh fetch.
		c.logger.Warn("discarding unreadable cache file", zap.String("path", path))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/%s/%s_%s.json", c.baseURL, year, c.semester, planCode, subjectCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	var record YearRecord
	raw := json.RawMessage{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}

	if err := c.writeCache(path, raw); err != nil {
		c.logger.Warn("failed to cache API response", zap.String("path", path), zap.Error(err))
	}

	c.logger.Info("fetched subject year data",
		zap.String("subject", subjectCode),
		zap.String("year", year))

	return &record, nil
}

func (c *Client) writeCache(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// FetchMultiYear fetches every (subject, year) combination. Individual fetch
// failures are logged and leave the year absent for that subject; the batch
// always completes.
func (c *Client) FetchMultiYear(ctx context.Context, subjectCodes, years []string, planCode string) map[string]map[string]*YearRecord {
	all := make(map[string]map[string]*YearRecord)

	for _, code := range subjectCodes {
		all[code] = make(map[string]*YearRecord)
		for _, year := range years {
			record, err := c.SubjectYearData(ctx, year, planCode, code)
			if err != nil {
				c.logger.Warn("no API data for subject year",
					zap.String("subject", code),
					zap.String("year", year),
					zap.Error(err))
				continue
			}
			all[code][year] = record
		}
	}

	return all
}
