package gtfsrt

import (
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rs/zerolog"

	"github.com/transitlive/transitlive/arrivals"
	"github.com/transitlive/transitlive/gtfs"
)

// Decode turns a feed snapshot into visits for the requested stop codes.
// It is pure: trip info and the feed-stop→stop-code mapping are looked up
// by the caller and passed in, keyed by prefixed trip id and feed-local stop
// id respectively. tripPrefix namespaces the feed's trip ids into the
// schedule's id space.
func Decode(feed *gtfsrtpb.FeedMessage, requested []string, tripPrefix string,
	trips map[string]gtfs.TripRouteInfo, stopCodes map[string]string, log zerolog.Logger) *arrivals.Response {

	resp := arrivals.NewResponse(requested)
	resp.Timestamp = time.Unix(int64(feed.GetHeader().GetTimestamp()), 0).UTC()

	positions := vehiclePositions(feed)

	for _, entity := range feed.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil {
			continue
		}
		tripID := tripPrefix + tu.GetTrip().GetTripId()
		info, known := trips[tripID]
		vehicleRef := tu.GetVehicle().GetId()

		for _, stu := range tu.GetStopTimeUpdate() {
			stopCode, mapped := stopCodes[stu.GetStopId()]
			if !mapped {
				// Feed-local stops the matcher could not place have no
				// canonical identity; nothing to key the visit on.
				continue
			}
			if _, wanted := resp.Visits[stopCode]; !wanted {
				continue
			}
			if !known {
				log.Warn().Str("trip_id", tripID).Str("stop_code", stopCode).
					Msg("dropping visit for trip missing from schedule")
				continue
			}
			v := &arrivals.Visit{
				Producer:      arrivals.ProducerGTFSRT,
				RecordedAt:    resp.Timestamp,
				StopCode:      stopCode,
				RouteID:       info.RouteID,
				DirectionID:   info.DirectionID,
				LineName:      info.RouteShortName,
				OperatorID:    info.AgencyID,
				DestinationID: info.DestinationCode,
				VehicleRef:    vehicleRef,
				TripID:        tripID,
				ETA:           time.Unix(stu.GetArrival().GetTime(), 0).UTC(),
			}
			if pos, ok := positions[vehicleRef]; ok {
				v.Location = &arrivals.Location{
					Lat: float64(pos.GetPosition().GetLatitude()),
					Lon: float64(pos.GetPosition().GetLongitude()),
				}
			}
			resp.Add(v)
		}
	}
	return resp
}

// vehiclePositions indexes the snapshot's position entities by vehicle id.
// A trip update whose vehicle has no position entity simply yields a visit
// without a location.
func vehiclePositions(feed *gtfsrtpb.FeedMessage) map[string]*gtfsrtpb.VehiclePosition {
	positions := map[string]*gtfsrtpb.VehiclePosition{}
	for _, entity := range feed.GetEntity() {
		if vp := entity.GetVehicle(); vp != nil {
			positions[vp.GetVehicle().GetId()] = vp
		}
	}
	return positions
}

// TripIDs collects the prefixed trip ids of every trip update in the
// snapshot, for batched schedule lookup.
func TripIDs(feed *gtfsrtpb.FeedMessage, tripPrefix string) []string {
	var ids []string
	seen := map[string]bool{}
	for _, entity := range feed.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil {
			continue
		}
		id := tripPrefix + tu.GetTrip().GetTripId()
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// FeedStopIDs collects the feed-local stop ids referenced by trip updates.
func FeedStopIDs(feed *gtfsrtpb.FeedMessage) []string {
	var ids []string
	seen := map[string]bool{}
	for _, entity := range feed.GetEntity() {
		for _, stu := range entity.GetTripUpdate().GetStopTimeUpdate() {
			id := stu.GetStopId()
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
