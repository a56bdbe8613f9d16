// Package arrivals defines the normalized live-arrival data model shared by
// every live-data source. A Visit is one real-time prediction of a vehicle
// arriving at a stop; a Response groups the visits for a set of requested
// stop codes together with any per-delivery errors.
package arrivals

import (
	"fmt"
	"time"
)

// Producer tags identify which protocol produced a Visit. Independent sources
// use unrelated identifier spaces, so the producer participates in equality.
const (
	ProducerSIRI   = "SIRI"
	ProducerGTFSRT = "GTFS-RT"
)

// Location is a WGS84 point.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Address is the parsed form of a stop's descriptive text. All fields are
// optional; an unparseable description yields a nil Address, not an error.
type Address struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	Platform string `json:"platform"`
	Floor    string `json:"floor"`

	// CityMultilingual holds the city name keyed by language code,
	// filled in during translation.
	CityMultilingual map[string]string `json:"city_multilingual,omitempty"`
}

// Visit is one normalized real-time arrival prediction. A Visit is immutable
// once decoded; schedule enrichment is attached by the owning Response
// (see Response.SetStaticInfo) so a cached Visit is never aliased to a
// request-specific enrichment result.
type Visit struct {
	Producer string `json:"producer"`

	// RecordedAt is the moment the source produced this prediction
	// (SIRI RecordedAtTime, or the delta feed's header timestamp).
	RecordedAt time.Time `json:"timestamp"`

	StopCode string `json:"stop_code"`

	// RouteID matches the schedule's route_id. SIRI calls this LineRef;
	// both names are exposed on the wire.
	RouteID string `json:"route_id"`

	DirectionID   string `json:"direction_id"`
	LineName      string `json:"line_name"`
	OperatorID    string `json:"operator_id"`
	DestinationID string `json:"destination_id"`

	// VehicleRef is the train number for rail, and either the license plate
	// or the internal fleet number for buses. May be empty.
	VehicleRef string `json:"vehicle_ref"`

	// TripID is the day-scoped trip identifier "{trip}_{ddmmyy}". Empty when
	// the source omitted the journey frame; downstream resolution then falls
	// back to realtime-only destination data.
	TripID string `json:"trip_id"`

	ETA time.Time `json:"eta"`

	// Departed is the aimed departure time from the origin stop, when
	// reported. It occasionally disagrees with the static schedule.
	Departed *time.Time `json:"departed"`

	// Status is a free-form arrival status (OnTime, early, delayed,
	// cancelled, arrived, noReport) when the source reports one.
	Status string `json:"status"`

	Location *Location `json:"location"`
}

// Equal reports whether two Visits describe the same real-world prediction.
// Visits equal under this relation must collapse to one during a merge.
// Decode-time transient state (enrichment, raw payloads) never participates.
func (v *Visit) Equal(o *Visit) bool {
	if v == nil || o == nil {
		return v == o
	}
	return v.Producer == o.Producer &&
		v.StopCode == o.StopCode &&
		v.RecordedAt.Equal(o.RecordedAt) &&
		v.ETA.Equal(o.ETA) &&
		v.RouteID == o.RouteID &&
		v.VehicleRef == o.VehicleRef &&
		v.DirectionID == o.DirectionID
}

// TripIDFromFrame combines a SIRI framed vehicle journey (data-frame date plus
// dated journey reference) into the canonical day-scoped trip id.
func TripIDFromFrame(datedJourneyRef string, frameDate time.Time) string {
	return fmt.Sprintf("%s_%s", datedJourneyRef, frameDate.Format("020106"))
}

// StaticInfo bundles the schedule-derived display data for a Visit, produced
// by the cross-referencer. Destination is nil when neither the trip nor the
// realtime destination reference resolved against the schedule; that is a
// known state of the upstream data, not an error.
type StaticInfo struct {
	Destination *Destination      `json:"destination"`
	Agency      *AgencyInfo       `json:"agency"`
	Headsign    map[string]string `json:"headsign"`
}

// Destination describes the final stop of a visit's trip.
type Destination struct {
	Code     string            `json:"code"`
	Name     map[string]string `json:"name"`
	Address  *Address          `json:"address"`
	Location *Location         `json:"location"`
}

// AgencyInfo is the operating agency's display info. Name is keyed by
// language code.
type AgencyInfo struct {
	Name map[string]string `json:"name"`
	URL  string            `json:"url"`
}
