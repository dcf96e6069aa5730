package snapshot

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/crlwatch/crlwatch/pkg/models"
)

// ErrNoData signals that no slot in the expected window yielded any audit
// entries. It is the one condition a run cannot degrade around.
var ErrNoData = errors.New("no audit data available in the expected window")

// Fetcher retrieves snapshot slot payloads from the snapshot source and
// stores them in the cache. Each slot is independent and idempotent, so
// fetches fan out concurrently without changing observable output.
type Fetcher struct {
	client      *http.Client
	limiter     *rate.Limiter
	logger      *logrus.Logger
	baseURL     string
	auditFile   string
	userAgent   string
	concurrency int
}

func NewFetcher(cfg models.SnapshotConfig, userAgent string, logger *logrus.Logger) *Fetcher {
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

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.FetchTimeout,
		},
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger,
		baseURL:     cfg.BaseURL,
		auditFile:   cfg.AuditFile,
		userAgent:   userAgent,
		concurrency: cfg.Concurrency,
	}
}

// FetchSlot retrieves one slot's raw payload and verifies it parses before
// handing it back.
func (f *Fetcher) FetchSlot(ctx context.Context, slot models.Slot) ([]byte, error) {
	url := SlotURL(f.baseURL, f.auditFile, slot)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body for %s: %w", url, err)
	}
	if _, err := DecodeEntries(body); err != nil {
		return nil, fmt.Errorf("slot %s: %w", slot, err)
	}
	return body, nil
}

// UpdateResult summarizes one cache update pass.
type UpdateResult struct {
	Fetched []models.Slot
	Failed  []models.Slot
}

// Update fetches every expected slot that is not yet cached. A slot that
// fails to fetch or parse is logged and skipped; it degrades that one data
// point only and never aborts the batch.
func (f *Fetcher) Update(ctx context.Context, cache *Cache, expected []models.Slot) UpdateResult {
	var missing []models.Slot
	for _, slot := range expected {
		if !cache.Has(slot) {
			missing = append(missing, slot)
		}
	}
	if len(missing) == 0 {
		return UpdateResult{}
	}

	var (
		mu     sync.Mutex
		result UpdateResult
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, slot := range missing {
		slot := slot
		g.Go(func() error {
			if err := f.limiter.Wait(ctx); err != nil {
				return err
			}

			f.logger.Infof("Fetching %s...", slot)
			body, err := f.FetchSlot(ctx, slot)
			if err != nil {
				f.logger.Warnf("Error updating %s: %v", slot, err)
				mu.Lock()
				result.Failed = append(result.Failed, slot)
				mu.Unlock()
				return nil
			}
			if err := cache.Write(slot, body); err != nil {
				f.logger.Warnf("Error caching %s: %v", slot, err)
				mu.Lock()
				result.Failed = append(result.Failed, slot)
				mu.Unlock()
				return nil
			}

			mu.Lock()
			result.Fetched = append(result.Fetched, slot)
			mu.Unlock()
			f.logger.Infof("Successfully updated %s", slot)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		f.logger.Warnf("Slot update interrupted: %v", err)
	}

	sort.Slice(result.Fetched, func(i, j int) bool { return result.Fetched[i].Less(result.Fetched[j]) })
	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i].Less(result.Failed[j]) })
	return result
}

// LoadAll reads every expected slot from the cache, tolerating absent and
// unparseable files. The returned map holds only slots that yielded entries;
// parse failures are logged per slot.
func (f *Fetcher) LoadAll(cache *Cache, expected []models.Slot) map[models.Slot][]models.AuditEntry {
	docs := make(map[models.Slot][]models.AuditEntry, len(expected))
	for _, slot := range expected {
		if !cache.Has(slot) {
			continue
		}
		entries, err := cache.Read(slot)
		if err != nil {
			f.logger.Warnf("Error loading %s: %v", slot, err)
			continue
		}
		docs[slot] = entries
	}
	return docs
}
