package gtfs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/transitlive/transitlive/arrivals"
	"github.com/transitlive/transitlive/cache"
)

// DefaultLang is the language key an untranslated string is returned under.
const DefaultLang = "HE"

// staticInfoTTL bounds the memoization of schedule facts, which change at
// most daily.
const staticInfoTTL = 30 * time.Minute

// Resolver cross-references live visits against the static schedule to
// recover human-readable destination, agency and headsign information.
//
// Direction disambiguation for multi-directional routes is not attempted:
// resolution keys on the visit's trip id or destination reference only, and
// the direction id is carried through verbatim.
type Resolver struct {
	store Store
	rules *Rules

	// OperatorNames optionally supplies display names for operator ids the
	// schedule only carries in its source language. Owned by the embedding
	// application.
	OperatorNames func(operatorID string) (string, bool)

	agencies     cache.Cache[*Agency]
	translations cache.Cache[map[string]string]
	cityNames    cache.Cache[string]

	log zerolog.Logger
}

// NewResolver returns a Resolver over the given store with default
// translation rules and in-process memoization.
func NewResolver(store Store, log zerolog.Logger) *Resolver {
	return &Resolver{
		store:        store,
		rules:        DefaultRules(),
		agencies:     cache.NewMemory[*Agency](),
		translations: cache.NewMemory[map[string]string](),
		cityNames:    cache.NewMemory[string](),
		log:          log,
	}
}

// SetRules replaces the translation rule tables.
func (r *Resolver) SetRules(rules *Rules) { r.rules = rules }

// Resolve enriches a visit with schedule-derived display data, following the
// fallback chain: the trip's final scheduled stop, then the realtime
// destination reference, then explicit absence. A reference the schedule
// does not know is an expected state of the upstream data; only store
// failures return an error.
func (r *Resolver) Resolve(ctx context.Context, v *arrivals.Visit) (*arrivals.StaticInfo, error) {
	si := &arrivals.StaticInfo{}

	agency, err := r.agencyByID(ctx, v.OperatorID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if agency != nil {
		name := map[string]string{DefaultLang: agency.Name}
		if r.OperatorNames != nil {
			if display, ok := r.OperatorNames(v.OperatorID); ok {
				name["EN"] = display
			}
		}
		si.Agency = &arrivals.AgencyInfo{Name: name, URL: agency.URL}
	}

	var dest *Stop
	if v.TripID != "" {
		trip, err := r.store.TripByID(ctx, v.TripID)
		switch {
		case err == nil:
			// Prefer the destination from the scheduled trip.
			code, err := r.store.LastStopCodeForTrip(ctx, trip.TripID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			if code != "" {
				if dest, err = r.stopByCode(ctx, code); err != nil {
					return nil, err
				}
			}
			if trip.Headsign != nil && *trip.Headsign != "" {
				headsign, err := r.Translate(ctx, *trip.Headsign)
				if err != nil {
					return nil, err
				}
				si.Headsign = headsign
			}
		case errors.Is(err, ErrNotFound):
			// Stale or incomplete schedule; fall through to the realtime
			// destination reference.
		default:
			return nil, err
		}
	}
	if dest == nil && v.DestinationID != "" {
		var err error
		if dest, err = r.stopByCode(ctx, v.DestinationID); err != nil {
			return nil, err
		}
	}

	if dest != nil {
		name, err := r.Translate(ctx, dest.Name)
		if err != nil {
			return nil, err
		}
		addr, err := r.TranslatedAddress(ctx, dest)
		if err != nil {
			return nil, err
		}
		si.Destination = &arrivals.Destination{
			Code:     dest.Code,
			Name:     name,
			Address:  addr,
			Location: &arrivals.Location{Lat: dest.Lat, Lon: dest.Lon},
		}
	}
	return si, nil
}

func (r *Resolver) agencyByID(ctx context.Context, agencyID string) (*Agency, error) {
	if agencyID == "" {
		return nil, ErrNotFound
	}
	key := "agency:" + agencyID
	if a, ok := r.agencies.Get(ctx, key); ok {
		return a, nil
	}
	a, err := r.store.AgencyByID(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	r.agencies.Set(ctx, key, a, staticInfoTTL)
	return a, nil
}

// stopByCode tolerates a missing stop: the realtime data sometimes
// references stops the schedule does not carry.
func (r *Resolver) stopByCode(ctx context.Context, code string) (*Stop, error) {
	stop, err := r.store.StopByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return stop, err
}
