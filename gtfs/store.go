package gtfs

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Store lookups when no row matches. Callers in
// the cross-referencing path treat it as an expected state of the data, not
// a failure.
var ErrNotFound = errors.New("gtfs: not found")

// Store is the read-only interface to the static schedule data. All lookups
// are by natural string key unless noted. Implementations must be safe for
// concurrent use.
type Store interface {
	AgencyByID(ctx context.Context, agencyID string) (*Agency, error)

	RouteByID(ctx context.Context, routeID string) (*Route, error)
	// RoutesByShortName returns an agency's routes with the given published
	// name, ordered by route id so repeated calls are stable.
	RoutesByShortName(ctx context.Context, agencyID, shortName string) ([]*Route, error)
	// CountRouteLicenses counts an agency's distinct route license numbers:
	// the first segment of the route description field, split on "-".
	CountRouteLicenses(ctx context.Context, agencyID string) (int, error)

	TripByID(ctx context.Context, tripID string) (*Trip, error)
	// TripsByRoute returns a route's trips, optionally filtered by
	// direction.
	TripsByRoute(ctx context.Context, routeID string, directionID *int) ([]*Trip, error)
	// StopTimesByTrip returns a trip's stop times ordered by stop sequence.
	StopTimesByTrip(ctx context.Context, tripID string) ([]*StopTime, error)
	// LastStopCodeForTrip returns the stop code of the trip's final
	// scheduled stop (maximum stop sequence).
	LastStopCodeForTrip(ctx context.Context, tripID string) (string, error)
	// RouteInfoForTrips batches the trip→route join for the delta-feed
	// decoder. Trips with no schedule counterpart are absent from the
	// result, not errors.
	RouteInfoForTrips(ctx context.Context, tripIDs []string) (map[string]TripRouteInfo, error)

	StopByID(ctx context.Context, stopID string) (*Stop, error)
	StopByCode(ctx context.Context, stopCode string) (*Stop, error)
	StopByName(ctx context.Context, name string) (*Stop, error)
	StopAtLocation(ctx context.Context, lat, lon float64) (*Stop, error)
	// StopsInBox returns stops inside the bounding box (exclusive bounds).
	StopsInBox(ctx context.Context, north, south, east, west float64) ([]*Stop, error)

	// Translations returns every translation of source keyed by language
	// code, trying both the literal string and its apostrophe-normalized
	// variant (the schedule sometimes writes '' where translations use ").
	// An empty map means no translation exists.
	Translations(ctx context.Context, source string) (map[string]string, error)
	// Translation returns the single translation of source to lang.
	Translation(ctx context.Context, source, lang string) (string, error)

	CityByName(ctx context.Context, name string) (*City, error)

	// MappedStopCodes resolves delta-feed-local stop ids to canonical stop
	// codes through the feed stop mapping table. Unmapped ids are absent
	// from the result.
	MappedStopCodes(ctx context.Context, feedStopIDs []string) (map[string]string, error)
}

// NormalizeQuotes rewrites the schedule's doubled-apostrophe quoting to the
// double quotes the translation table uses.
func NormalizeQuotes(s string) string {
	return strings.ReplaceAll(s, "''", `"`)
}
