// Package transitlive aggregates live transit arrivals from a primary
// stop-monitoring provider and an optional supplementary realtime feed, and
// cross-references them against a static schedule store for display
// enrichment.
package transitlive

import (
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/transitlive/transitlive/arrivals"
	"github.com/transitlive/transitlive/cache"
	"github.com/transitlive/transitlive/config"
	"github.com/transitlive/transitlive/gtfs"
	"github.com/transitlive/transitlive/gtfsrt"
	"github.com/transitlive/transitlive/siri"
)

// New wires a full aggregator from configuration: the schedule store, the
// visit cache (redis when configured, in-process otherwise), the
// stop-monitoring client, and the delta-feed client when a feed URL is set.
// The returned close function releases the database pool.
func New(cfg config.AppConfig, log zerolog.Logger) (*Aggregator, func() error, error) {
	db, err := gtfs.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	store := gtfs.NewPostgresStore(db)

	var visitCache cache.Cache[arrivals.CacheEntry]
	if cfg.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
		})
		visitCache = cache.NewRedis[arrivals.CacheEntry](client)
	} else {
		visitCache = cache.NewMemory[arrivals.CacheEntry]()
	}

	agg := NewAggregator(siri.NewClient(cfg.StopMonitoring, visitCache, log), log)
	agg.Resolver = gtfs.NewResolver(store, log)
	if cfg.DeltaFeed.FeedURL != "" {
		agg.Feed = gtfsrt.NewClient(cfg.DeltaFeed, store, log)
		agg.FeedDays = FeedDaysFromISO(cfg.DeltaFeed.ServiceDays)
	}
	return agg, db.Close, nil
}
