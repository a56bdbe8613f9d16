package siri

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/transitlive/transitlive/arrivals"
	"github.com/transitlive/transitlive/cache"
	"github.com/transitlive/transitlive/config"
)

// visitCacheKey is the shared-cache key for a stop's latest visit list.
func visitCacheKey(stopCode string) string { return "realtime:" + stopCode }

// Client batches stop-monitoring requests against the provider. Stops
// answered from cache are never re-requested; the remainder is split into
// provider-sized groups fetched concurrently.
type Client struct {
	url        string
	variant    string
	groupSize  int
	ttl        time.Duration
	httpClient *http.Client
	cache      cache.Cache[arrivals.CacheEntry]
	encoder    *RequestEncoder
	log        zerolog.Logger
}

// NewClient builds a stop-monitoring client from configuration. The cache
// is shared with other aggregator instances when backed by redis.
func NewClient(cfg config.StopMonitoringConfig, c cache.Cache[arrivals.CacheEntry], log zerolog.Logger) *Client {
	return &Client{
		url:        cfg.URL,
		variant:    cfg.Variant,
		groupSize:  cfg.GroupSize,
		ttl:        time.Duration(cfg.CacheTTLSeconds) * time.Second,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
		cache:      c,
		encoder:    NewRequestEncoder(cfg.RequestorRef, cfg.PreviewInterval),
		log:        log,
	}
}

// Request returns upcoming visits for each stop code, at most maxVisits per
// stop. Batching and caching are invisible to the caller: the response
// always keys exactly the requested codes. A group whose fetch fails
// transport-wise degrades to an error string in the response; only when
// every group fails and nothing was cached does Request return an error.
func (c *Client) Request(ctx context.Context, stopCodes []string, maxVisits int) (*arrivals.Response, error) {
	stopCodes = dedupe(stopCodes)
	resp := arrivals.NewResponse(stopCodes)

	cached := make(map[string]arrivals.CacheEntry)
	var toFetch []string
	for _, code := range stopCodes {
		if entry, ok := c.cache.Get(ctx, visitCacheKey(code)); ok {
			cached[code] = entry
		} else {
			toFetch = append(toFetch, code)
		}
	}

	groups := group(toFetch, c.groupSize)
	results := make([]*arrivals.Response, len(groups))
	errs := make([]error, len(groups))
	var wg conc.WaitGroup
	for i := range groups {
		i := i
		wg.Go(func() {
			results[i], errs[i] = c.fetchGroup(ctx, groups[i], maxVisits)
		})
	}
	wg.Wait()

	fetched := 0
	for i := range groups {
		if errs[i] != nil {
			if errors.Is(errs[i], ErrMalformedEnvelope) {
				return nil, errs[i]
			}
			c.log.Warn().Err(errs[i]).Strs("stop_codes", groups[i]).Msg("stop-monitoring group fetch failed")
			resp.Errors = append(resp.Errors, errs[i].Error())
			continue
		}
		fetched++
		resp.Append(results[i])
		resp.Timestamp = results[i].Timestamp
		for _, code := range groups[i] {
			entry := arrivals.CacheEntry{Visits: results[i].Visits[code], Timestamp: results[i].Timestamp}
			c.cache.Set(ctx, visitCacheKey(code), entry, c.ttl)
		}
	}
	if len(groups) > 0 && fetched == 0 && len(cached) == 0 {
		return nil, fmt.Errorf("siri: all stop-monitoring requests failed: %w", errs[0])
	}

	for _, entry := range cached {
		for _, v := range entry.Visits {
			resp.Add(v)
		}
		// With nothing freshly fetched, the response is only as recent as
		// its stalest cache entry.
		if fetched == 0 && (resp.Timestamp.IsZero() || entry.Timestamp.Before(resp.Timestamp)) {
			resp.Timestamp = entry.Timestamp
		}
	}
	return resp, nil
}

func (c *Client) fetchGroup(ctx context.Context, stopCodes []string, maxVisits int) (*arrivals.Response, error) {
	var (
		raw []byte
		err error
	)
	if c.variant == "json" {
		raw, err = c.fetchJSON(ctx, stopCodes)
	} else {
		raw, err = c.fetchSOAP(ctx, stopCodes, maxVisits)
	}
	if err != nil {
		return nil, err
	}
	return Decode(raw, stopCodes, c.log)
}

func (c *Client) fetchSOAP(ctx context.Context, stopCodes []string, maxVisits int) ([]byte, error) {
	body, err := c.encoder.Encode(stopCodes, maxVisits)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	return c.do(req)
}

func (c *Client) fetchJSON(ctx context.Context, stopCodes []string) ([]byte, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("Key", c.encoder.RequestorRef)
	q.Set("MonitoringRef", strings.Join(stopCodes, ","))
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("siri: provider returned %s", res.Status)
	}
	return io.ReadAll(res.Body)
}

func dedupe(stopCodes []string) []string {
	seen := make(map[string]bool, len(stopCodes))
	out := stopCodes[:0:0]
	for _, code := range stopCodes {
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	return out
}

func group(stopCodes []string, size int) [][]string {
	if len(stopCodes) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]string{stopCodes}
	}
	var groups [][]string
	for size < len(stopCodes) {
		groups = append(groups, stopCodes[:size])
		stopCodes = stopCodes[size:]
	}
	return append(groups, stopCodes)
}
