package gtfs

import (
	"context"
	"testing"

	"github.com/matryer/is"
)

func matcherFixture() *fakeStore {
	store := newFakeStore()
	store.addStop(&Stop{StopID: "s1", Code: "40001", Name: "תחנה ראשית", Lat: 32.0500, Lon: 34.7500})
	store.addStop(&Stop{StopID: "s2", Code: "40002", Name: "כיכר העיר", Lat: 32.0600, Lon: 34.7600})
	store.addStop(&Stop{StopID: "s3", Code: "40003", Name: "דרך הים / גן  ", Lat: 32.0700, Lon: 34.7700})
	return store
}

func TestMatchStopsTiers(t *testing.T) {
	is := is.New(t)
	store := matcherFixture()
	store.stopsByName["דרך הים/גן"] = store.stopsByCode["40003"]

	candidates := []CandidateStop{
		// Tier 1: stop code.
		{ID: "c1", Code: "40001", Name: "ignored", Lat: 1, Lon: 1, HasLocation: true},
		// Tier 2: exact coordinates.
		{ID: "c2", Lat: 32.0600, Lon: 34.7600, HasLocation: true},
		// Tier 3: a few meters off the schedule's coordinates.
		{ID: "c3", Lat: 32.07004, Lon: 34.77004, HasLocation: true},
		// Tier 4: exact name.
		{ID: "c4", Name: "תחנה ראשית"},
		// Tier 5: name differs only in slash spacing.
		{ID: "c5", Name: "דרך הים  / גן"},
		// No match at all.
		{ID: "c6", Name: "לא קיימת", Lat: 31.0, Lon: 35.0, HasLocation: true},
	}

	matched, stats, err := MatchStops(context.Background(), store, candidates)
	is.NoErr(err)

	is.Equal(matched["c1"], "s1")
	is.Equal(matched["c2"], "s2")
	is.Equal(matched["c3"], "s3")
	is.Equal(matched["c4"], "s1")
	is.Equal(matched["c5"], "s3")
	_, ok := matched["c6"]
	is.True(!ok)

	is.Equal(stats.ByCode, 1)
	is.Equal(stats.ByLocation, 1)
	is.Equal(stats.ByLocationFuzzy, 1)
	is.Equal(stats.ByName, 1)
	is.Equal(stats.ByNormalizedName, 1)
	is.Equal(stats.Failed, 1)
}

func TestMatchStopsAmbiguousLocation(t *testing.T) {
	is := is.New(t)
	store := matcherFixture()
	// Two stops within the fuzzy radius of the candidate.
	store.addStop(&Stop{StopID: "s4", Code: "40004", Name: "אחת", Lat: 32.08000, Lon: 34.78000})
	store.addStop(&Stop{StopID: "s5", Code: "40005", Name: "שתיים", Lat: 32.08004, Lon: 34.78004})

	matched, stats, err := MatchStops(context.Background(), store, []CandidateStop{
		{ID: "c1", Lat: 32.08002, Lon: 34.78002, HasLocation: true},
	})
	is.NoErr(err)
	is.Equal(len(matched), 0) // ambiguous fuzzy matches are rejected
	is.Equal(stats.Failed, 1)
}

func TestNearbyStopsOrdersByDistance(t *testing.T) {
	is := is.New(t)
	store := newFakeStore()
	store.addStop(&Stop{StopID: "far", Lat: 32.08006, Lon: 34.78000})
	store.addStop(&Stop{StopID: "near", Lat: 32.08001, Lon: 34.78000})

	stops, err := NearbyStops(context.Background(), store, 32.08000, 34.78000, 9)
	is.NoErr(err)
	is.Equal(len(stops), 2)
	is.Equal(stops[0].StopID, "near")
	is.Equal(stops[1].StopID, "far")
}

func TestDistanceMeters(t *testing.T) {
	is := is.New(t)
	// One degree of latitude is about 111km.
	d := distanceMeters(32.0, 34.0, 33.0, 34.0)
	is.True(d > 110_000 && d < 112_000)
	is.Equal(distanceMeters(32.0, 34.0, 32.0, 34.0), 0.0)
}
