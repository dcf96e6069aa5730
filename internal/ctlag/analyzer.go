package ctlag

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/certificate-transparency-go/client"
	"github.com/google/certificate-transparency-go/jsonclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/crlwatch/crlwatch/pkg/models"
)

// ErrNoManifest is returned when no manifest resolves within the lookback
// window.
var ErrNoManifest = errors.New("no ct log manifest found in lookback window")

// Analyzer compares each monitored CT log's locally ingested high-water mark
// against the log's own signed tree head. It runs independently of the
// snapshot aggregation, consuming the newest available daily manifest plus a
// live poll per active log.
type Analyzer struct {
	cfg       models.CTLogsConfig
	baseURL   string
	userAgent string
	probe     *http.Client
	poll      *http.Client
	limiter   *rate.Limiter
	logger    *logrus.Logger
}

func NewAnalyzer(cfg models.CTLogsConfig, baseURL, userAgent string, logger *logrus.Logger) *Analyzer {
	if logger == nil {
		logger = logrus.New()
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Analyzer{
		cfg:       cfg,
		baseURL:   baseURL,
		userAgent: userAgent,
		probe:     &http.Client{Transport: transport, Timeout: cfg.ProbeTimeout},
		poll:      &http.Client{Transport: transport, Timeout: cfg.PollTimeout},
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// LatestManifestURL probes candidate manifest URLs for the last LookbackDays
// calendar days, most recent day first, preferring the secondary generation
// over the primary for the same day, and returns the first that resolves.
func (a *Analyzer) LatestManifestURL(ctx context.Context, now time.Time) (string, error) {
	for i := 0; i < a.cfg.LookbackDays; i++ {
		day := now.AddDate(0, 0, -i)
		for _, gen := range []int{1, 0} {
			url := fmt.Sprintf("%s/%s/%s", a.baseURL, models.NewSlot(day, gen), a.cfg.ManifestFile)

			req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
			if err != nil {
				return "", fmt.Errorf("create probe request: %w", err)
			}
			req.Header.Set("User-Agent", a.userAgent)

			resp, err := a.probe.Do(req)
			if err != nil {
				a.logger.Debugf("Manifest probe failed for %s: %v", url, err)
				continue
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return url, nil
			}
		}
	}
	return "", ErrNoManifest
}

// FetchManifest downloads and parses the manifest at the given URL.
func (a *Analyzer) FetchManifest(ctx context.Context, url string) ([]models.ManifestEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create manifest request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.poll.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download manifest: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var entries []models.ManifestEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return entries, nil
}

// logURI normalizes a manifest ShortURL into a base URI the CT client can
// append /ct/v1/get-sth to.
func logURI(shortURL string) string {
	u := strings.TrimSuffix(shortURL, "/")
	if !strings.HasPrefix(u, "http") {
		u = "https://" + u
	}
	return u
}

// Analyze polls every active manifest entry's STH endpoint and derives lag
// records. A failed poll marks that log's record and moves on; it never
// aborts the batch.
func (a *Analyzer) Analyze(ctx context.Context, entries []models.ManifestEntry) []models.LogStatus {
	var (
		mu       sync.Mutex
		statuses []models.LogStatus
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)

	for _, entry := range entries {
		if !entry.Active() {
			continue
		}
		entry := entry
		g.Go(func() error {
			if err := a.limiter.Wait(ctx); err != nil {
				return err
			}
			st := a.analyzeLog(ctx, entry)
			mu.Lock()
			statuses = append(statuses, st)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.logger.Warnf("CT log analysis interrupted: %v", err)
	}

	sortStatuses(statuses)
	return statuses
}

func (a *Analyzer) analyzeLog(ctx context.Context, entry models.ManifestEntry) models.LogStatus {
	st := models.LogStatus{
		ShortURL:     entry.ShortURL,
		LogID:        entry.LogID,
		MinEntry:     entry.MinEntry,
		MaxEntry:     entry.MaxEntry,
		MaxTimestamp: entry.MaxTimestamp,
	}

	lc, err := client.New(logURI(entry.ShortURL), a.poll, jsonclient.Options{UserAgent: a.userAgent})
	if err != nil {
		a.logger.Warnf("Failed to create CT log client for %s: %v", entry.ShortURL, err)
		st.PollError = "Failed to get STH"
		return st
	}

	sth, err := lc.GetSTH(ctx)
	if err != nil {
		a.logger.Warnf("Failed to get STH for %s: %v", entry.ShortURL, err)
		st.PollError = "Failed to get STH"
		return st
	}

	st.Polled = true
	st.TreeSize = int64(sth.TreeSize)
	st.STHTimestamp = int64(sth.Timestamp)

	st.EntryLag = st.TreeSize - entry.MaxEntry
	st.HasEntryLag = true

	if entry.MaxTimestamp > 0 && st.STHTimestamp > 0 {
		st.TimeDiffHours = float64(st.STHTimestamp-entry.MaxTimestamp) / (1000 * 60 * 60)
		st.HasTimeDiff = true
	}
	if st.TreeSize > 0 {
		st.IngestRatio = float64(entry.MaxEntry) / float64(st.TreeSize) * 100
		st.HasRatio = true
	}
	return st
}

// sortStatuses orders records worst-first: unavailable time differences sort
// as if infinitely lagged, then descending absolute lag, ties broken by URL.
func sortStatuses(statuses []models.LogStatus) {
	key := func(s models.LogStatus) float64 {
		if !s.HasTimeDiff {
			return math.Inf(1)
		}
		return math.Abs(s.TimeDiffHours)
	}
	sort.SliceStable(statuses, func(i, j int) bool {
		ki, kj := key(statuses[i]), key(statuses[j])
		if ki != kj {
			return ki > kj
		}
		return statuses[i].ShortURL < statuses[j].ShortURL
	})
}

// Run locates the newest manifest, downloads it, and analyzes every active
// log. The reference time is explicit so callers can pin it in tests.
func (a *Analyzer) Run(ctx context.Context, now time.Time) ([]models.LogStatus, error) {
	url, err := a.LatestManifestURL(ctx, now)
	if err != nil {
		return nil, err
	}
	a.logger.Infof("Downloading CT log manifest from %s", url)

	entries, err := a.FetchManifest(ctx, url)
	if err != nil {
		return nil, err
	}
	a.logger.Infof("Processing %d CT logs", len(entries))

	return a.Analyze(ctx, entries), nil
}
