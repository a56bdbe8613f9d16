package gtfsrt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/proto"

	"github.com/transitlive/transitlive/arrivals"
	"github.com/transitlive/transitlive/cache"
	"github.com/transitlive/transitlive/config"
	"github.com/transitlive/transitlive/gtfs"
)

const snapshotKey = "gtfsrt:snapshot"

// Client polls the delta feed and turns snapshots into visits. The snapshot
// is fetched at most once per TTL regardless of how many requests arrive;
// concurrent cold-cache requests share a single fetch.
type Client struct {
	feedURL    string
	authKey    string
	tripPrefix string
	httpClient *http.Client

	snapshot  *cache.Loader[*gtfsrtpb.FeedMessage]
	tripInfo  cache.Cache[gtfs.TripRouteInfo]
	stopMap   cache.Cache[string]
	staticTTL time.Duration

	store gtfs.Store
	log   zerolog.Logger
}

// NewClient builds a delta-feed client over the given schedule store.
func NewClient(cfg config.DeltaFeedConfig, store gtfs.Store, log zerolog.Logger) *Client {
	snapshotTTL := time.Duration(cfg.SnapshotTTLSeconds) * time.Second
	return &Client{
		feedURL:    cfg.FeedURL,
		authKey:    cfg.AuthKey,
		tripPrefix: cfg.TripIDPrefix,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
		snapshot:   cache.NewLoader[*gtfsrtpb.FeedMessage](cache.NewMemory[*gtfsrtpb.FeedMessage](), snapshotTTL),
		tripInfo:   cache.NewMemory[gtfs.TripRouteInfo](),
		stopMap:    cache.NewMemory[string](),
		staticTTL:  time.Duration(cfg.TripInfoTTLMinutes) * time.Minute,
		store:      store,
		log:        log,
	}
}

// Request returns the snapshot's visits for the requested stop codes,
// cross-referenced against the schedule store.
func (c *Client) Request(ctx context.Context, stopCodes []string, maxVisits int) (*arrivals.Response, error) {
	feed, err := c.FetchSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	trips, err := c.tripInfoFor(ctx, TripIDs(feed, c.tripPrefix))
	if err != nil {
		return nil, err
	}
	mapping, err := c.stopCodesFor(ctx, FeedStopIDs(feed))
	if err != nil {
		return nil, err
	}
	resp := Decode(feed, stopCodes, c.tripPrefix, trips, mapping, c.log)
	if maxVisits > 0 {
		for code, visits := range resp.Visits {
			if len(visits) > maxVisits {
				resp.Visits[code] = visits[:maxVisits]
			}
		}
	}
	return resp, nil
}

// FetchSnapshot returns the current feed snapshot, fetching from upstream
// only when the cached one has expired.
func (c *Client) FetchSnapshot(ctx context.Context) (*gtfsrtpb.FeedMessage, error) {
	return c.snapshot.GetOrLoad(ctx, snapshotKey, c.fetch)
}

func (c *Client) fetch(ctx context.Context) (*gtfsrtpb.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, err
	}
	if c.authKey != "" {
		req.Header.Set("Authorization", c.authKey)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gtfsrt: feed returned %s", res.Status)
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	feed := &gtfsrtpb.FeedMessage{}
	if err := proto.Unmarshal(raw, feed); err != nil {
		return nil, fmt.Errorf("gtfsrt: undecodable feed snapshot: %w", err)
	}
	return feed, nil
}

// tripInfoFor resolves trip→route info, answering from cache and issuing one
// batched store query for the rest. Trips the schedule does not know are
// absent from the result, not errors.
func (c *Client) tripInfoFor(ctx context.Context, tripIDs []string) (map[string]gtfs.TripRouteInfo, error) {
	result := make(map[string]gtfs.TripRouteInfo, len(tripIDs))
	var missing []string
	for _, id := range tripIDs {
		if info, ok := c.tripInfo.Get(ctx, "trip:"+id); ok {
			result[id] = info
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return result, nil
	}
	fetched, err := c.store.RouteInfoForTrips(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, info := range fetched {
		result[id] = info
		c.tripInfo.Set(ctx, "trip:"+id, info, c.staticTTL)
	}
	return result, nil
}

func (c *Client) stopCodesFor(ctx context.Context, feedStopIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(feedStopIDs))
	var missing []string
	for _, id := range feedStopIDs {
		if code, ok := c.stopMap.Get(ctx, "stop:"+id); ok {
			result[id] = code
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return result, nil
	}
	fetched, err := c.store.MappedStopCodes(ctx, missing)
	if err != nil {
		if errors.Is(err, gtfs.ErrNotFound) {
			return result, nil
		}
		return nil, err
	}
	for id, code := range fetched {
		result[id] = code
		c.stopMap.Set(ctx, "stop:"+id, code, c.staticTTL)
	}
	return result, nil
}
