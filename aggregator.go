package transitlive

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/transitlive/transitlive/arrivals"
)

// ArrivalSource produces upcoming visits for a set of stop codes. Both the
// stop-monitoring client and the delta-feed client satisfy it.
type ArrivalSource interface {
	Request(ctx context.Context, stopCodes []string, maxVisits int) (*arrivals.Response, error)
}

// StaticResolver enriches a visit with schedule-derived display data.
type StaticResolver interface {
	Resolve(ctx context.Context, v *arrivals.Visit) (*arrivals.StaticInfo, error)
}

// Aggregator answers arrival queries by combining the primary
// stop-monitoring source with an optional supplementary feed, then joining
// schedule enrichment onto every visit.
type Aggregator struct {
	Primary  ArrivalSource
	Feed     ArrivalSource
	Resolver StaticResolver

	// FeedDays gates the supplementary feed to the weekdays its service
	// actually runs. Nil means every day.
	FeedDays map[time.Weekday]bool

	Now func() time.Time

	log zerolog.Logger
}

// NewAggregator returns an aggregator over the primary source alone;
// callers attach the feed and resolver as deployment dictates.
func NewAggregator(primary ArrivalSource, log zerolog.Logger) *Aggregator {
	return &Aggregator{Primary: primary, Now: time.Now, log: log}
}

// FeedDaysFromISO converts ISO weekday numbers (1=Monday..7=Sunday) into a
// gating set. An empty list means no gating.
func FeedDaysFromISO(days []int) map[time.Weekday]bool {
	if len(days) == 0 {
		return nil
	}
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[time.Weekday(d%7)] = true
	}
	return set
}

// Arrivals returns the merged, enriched visits for the requested stop codes,
// at most maxVisits per stop per source. A primary-source failure is fatal
// unless the supplementary feed is active today, in which case it degrades
// to an error string alongside the feed's visits.
func (a *Aggregator) Arrivals(ctx context.Context, stopCodes []string, maxVisits int) (*arrivals.Response, error) {
	feedActive := a.Feed != nil && (a.FeedDays == nil || a.FeedDays[a.Now().Weekday()])

	resp, err := a.Primary.Request(ctx, stopCodes, maxVisits)
	if err != nil {
		if !feedActive {
			return nil, err
		}
		a.log.Warn().Err(err).Msg("primary arrival source failed, continuing with feed only")
		resp = arrivals.NewResponse(stopCodes)
		resp.Errors = append(resp.Errors, err.Error())
		resp.Timestamp = a.Now()
	}

	if feedActive {
		feedResp, err := a.Feed.Request(ctx, stopCodes, maxVisits)
		if err != nil {
			a.log.Warn().Err(err).Msg("supplementary feed request failed")
			resp.Errors = append(resp.Errors, err.Error())
		} else {
			resp.Append(feedResp)
			if resp.Timestamp.IsZero() {
				resp.Timestamp = feedResp.Timestamp
			}
		}
	}

	if a.Resolver != nil {
		for _, visits := range resp.Visits {
			for _, v := range visits {
				si, err := a.Resolver.Resolve(ctx, v)
				if err != nil {
					a.log.Warn().Err(err).Str("trip_id", v.TripID).Msg("schedule enrichment failed")
					continue
				}
				resp.SetStaticInfo(v, si)
			}
		}
	}
	return resp, nil
}
