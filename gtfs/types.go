package gtfs

import (
	"sync"

	"github.com/transitlive/transitlive/arrivals"
)

// Agency contains data from a gtfs agency definition in an agency.txt file.
type Agency struct {
	AgencyID string  `db:"agency_id" json:"agency_id"`
	Name     string  `db:"agency_name" json:"agency_name"`
	URL      string  `db:"agency_url" json:"agency_url"`
	Timezone string  `db:"agency_timezone" json:"agency_timezone"`
	Lang     *string `db:"agency_lang" json:"agency_lang"`
	Phone    *string `db:"agency_phone" json:"agency_phone"`
	FareURL  *string `db:"agency_fare_url" json:"agency_fare_url"`
}

// Stop contains data from a gtfs stop definition in a stops.txt file.
// StopID is the internal identifier; Code is the rider-facing one.
type Stop struct {
	StopID        string  `db:"stop_id" json:"stop_id"`
	Code          string  `db:"stop_code" json:"stop_code"`
	Name          string  `db:"stop_name" json:"stop_name"`
	Desc          string  `db:"stop_desc" json:"stop_desc"`
	Lat           float64 `db:"stop_lat" json:"stop_lat"`
	Lon           float64 `db:"stop_lon" json:"stop_lon"`
	LocationType  bool    `db:"location_type" json:"location_type"`
	ParentStation *string `db:"parent_station" json:"parent_station"`
	ZoneID        *string `db:"zone_id" json:"zone_id"`

	addrOnce sync.Once
	addr     *arrivals.Address
}

// Address parses the stop's descriptive text into street/city/platform/floor.
// The source text never changes within a request, so the result is parsed
// once and cached for the lifetime of the object. Returns nil when the text
// does not match the labeled shape.
func (s *Stop) Address() *arrivals.Address {
	s.addrOnce.Do(func() {
		s.addr = ParseAddress(s.Desc, DefaultAddressLabels)
	})
	return s.addr
}

// Route contains data from a gtfs route definition in a routes.txt file.
type Route struct {
	RouteID   string  `db:"route_id" json:"route_id"`
	AgencyID  string  `db:"agency_id" json:"agency_id"`
	ShortName string  `db:"route_short_name" json:"route_short_name"`
	LongName  string  `db:"route_long_name" json:"route_long_name"`
	Desc      string  `db:"route_desc" json:"route_desc"`
	Type      int     `db:"route_type" json:"route_type"`
	Color     *string `db:"route_color" json:"route_color"`
}

// Trip contains data from a gtfs trip definition in a trips.txt file.
type Trip struct {
	TripID               string  `db:"trip_id" json:"trip_id"`
	RouteID              string  `db:"route_id" json:"route_id"`
	ServiceID            string  `db:"service_id" json:"service_id"`
	Headsign             *string `db:"trip_headsign" json:"trip_headsign"`
	DirectionID          int     `db:"direction_id" json:"direction_id"`
	ShapeID              *string `db:"shape_id" json:"shape_id"`
	WheelchairAccessible *string `db:"wheelchair_accessible" json:"wheelchair_accessible"`
}

// StopTime contains data from a gtfs stop time definition in a
// stop_times.txt file.
type StopTime struct {
	TripID        string  `db:"trip_id" json:"trip_id"`
	ArrivalTime   string  `db:"arrival_time" json:"arrival_time"`
	DepartureTime string  `db:"departure_time" json:"departure_time"`
	StopID        string  `db:"stop_id" json:"stop_id"`
	Sequence      int     `db:"stop_sequence" json:"stop_sequence"`
	PickupType    bool    `db:"pickup_type" json:"pickup_type"`
	DropOffType   bool    `db:"drop_off_type" json:"drop_off_type"`
	ShapeDist     *string `db:"shape_dist_traveled" json:"shape_dist_traveled"`
}

// Translation is one translated string from the gtfs translations extension,
// keyed by the source string and a language code.
type Translation struct {
	SourceText  string `db:"trans_id" json:"trans_id"`
	Lang        string `db:"lang" json:"lang"`
	Translation string `db:"translation" json:"translation"`
}

// City maps a settlement name in the schedule's source language to its
// official transliterated name. Not a gtfs type, but the fallback reference
// for place names the translation table misses.
type City struct {
	Name        string `db:"name" json:"name"`
	EnglishName string `db:"english_name" json:"english_name"`
}

// FeedStopMapping resolves a delta-feed-local stop id to the canonical
// schedule stop id. Built offline by MatchStops and consulted read-only at
// request time.
type FeedStopMapping struct {
	FeedStopID string `db:"feed_stop_id" json:"feed_stop_id"`
	StopID     string `db:"stop_id" json:"stop_id"`
}

// TripRouteInfo is the batched join of a trip with its route, used by the
// delta-feed decoder which receives bare trip ids on the wire.
type TripRouteInfo struct {
	TripID          string `db:"trip_id" json:"trip_id"`
	RouteID         string `db:"route_id" json:"route_id"`
	RouteShortName  string `db:"route_short_name" json:"route_short_name"`
	RouteLongName   string `db:"route_long_name" json:"route_long_name"`
	DirectionID     string `db:"direction_id" json:"direction_id"`
	AgencyID        string `db:"agency_id" json:"agency_id"`
	DestinationCode string `db:"destination_code" json:"destination_code"`
}
