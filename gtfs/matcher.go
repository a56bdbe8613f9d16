package gtfs

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
)

// fuzzyRadiusMeters is how far a candidate's coordinates may drift from the
// schedule's before a location match is rejected. GPS-surveyed municipal
// feeds disagree with the national schedule by a few meters at most.
const fuzzyRadiusMeters = 9

// CandidateStop is a stop as described by a feed-local source, carrying
// whichever identifying fields that source happens to publish.
type CandidateStop struct {
	ID          string
	Code        string
	Name        string
	Lat         float64
	Lon         float64
	HasLocation bool
}

// MatchStats counts how each candidate was resolved, for operator visibility
// into feed quality.
type MatchStats struct {
	ByCode           int
	ByLocation       int
	ByLocationFuzzy  int
	ByName           int
	ByNormalizedName int
	Failed           int
}

// MatchStops resolves feed-local stops to schedule stop ids, trying in
// order: the published stop code, exact coordinates, coordinates within
// fuzzyRadiusMeters (only when unambiguous), the exact name, and finally a
// normalized form of the name. Candidates that match nothing are counted
// and skipped.
func MatchStops(ctx context.Context, store Store, candidates []CandidateStop) (map[string]string, MatchStats, error) {
	matched := make(map[string]string, len(candidates))
	var stats MatchStats
	for _, c := range candidates {
		stop, err := matchStop(ctx, store, c, &stats)
		if err != nil {
			return nil, stats, err
		}
		if stop == nil {
			stats.Failed++
			continue
		}
		matched[c.ID] = stop.StopID
	}
	return matched, stats, nil
}

func matchStop(ctx context.Context, store Store, c CandidateStop, stats *MatchStats) (*Stop, error) {
	if c.Code != "" {
		stop, err := store.StopByCode(ctx, c.Code)
		if err == nil {
			stats.ByCode++
			return stop, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if c.HasLocation {
		stop, err := store.StopAtLocation(ctx, c.Lat, c.Lon)
		if err == nil {
			stats.ByLocation++
			return stop, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		nearby, err := NearbyStops(ctx, store, c.Lat, c.Lon, fuzzyRadiusMeters)
		if err != nil {
			return nil, err
		}
		// More than one stop in radius is ambiguous; fall through.
		if len(nearby) == 1 {
			stats.ByLocationFuzzy++
			return nearby[0], nil
		}
	}
	if c.Name != "" {
		stop, err := store.StopByName(ctx, c.Name)
		if err == nil {
			stats.ByName++
			return stop, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		stop, err = store.StopByName(ctx, normalizeStopName(c.Name))
		if err == nil {
			stats.ByNormalizedName++
			return stop, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// NearbyStops returns schedule stops within radius meters of the point,
// ordered by distance.
func NearbyStops(ctx context.Context, store Store, lat, lon, radius float64) ([]*Stop, error) {
	north, south, east, west := boundingBox(lat, lon, radius)
	stops, err := store.StopsInBox(ctx, north, south, east, west)
	if err != nil {
		return nil, err
	}
	within := stops[:0]
	for _, s := range stops {
		if distanceMeters(lat, lon, s.Lat, s.Lon) <= radius {
			within = append(within, s)
		}
	}
	sort.Slice(within, func(i, j int) bool {
		return distanceMeters(lat, lon, within[i].Lat, within[i].Lon) <
			distanceMeters(lat, lon, within[j].Lat, within[j].Lon)
	})
	return within, nil
}

// normalizeStopName strips the slash-separated decorations some feeds add to
// stop names and unifies the apostrophe variants used for transliteration.
func normalizeStopName(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	name = strings.Join(parts, "/")
	return strings.ReplaceAll(name, "`", "'")
}

const earthRadiusMeters = 6371000

// boundingBox returns a latitude/longitude box guaranteed to contain every
// point within radius meters of the center. Close enough for single-digit
// radii; not valid near the poles.
func boundingBox(lat, lon, radius float64) (north, south, east, west float64) {
	dLat := (radius / earthRadiusMeters) * (180 / math.Pi)
	dLon := dLat / math.Cos(lat*math.Pi/180)
	return lat + dLat, lat - dLat, lon + dLon, lon - dLon
}

// distanceMeters is the haversine great-circle distance.
func distanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180
	phi1, phi2 := lat1*rad, lat2*rad
	dPhi := (lat2 - lat1) * rad
	dLambda := (lon2 - lon1) * rad
	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}
