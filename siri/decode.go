package siri

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/transitlive/transitlive/arrivals"
)

// ErrMalformedEnvelope reports a response whose envelope does not contain a
// service delivery at any known location. This is a provider-side schema
// break, not a transient failure.
var ErrMalformedEnvelope = errors.New("siri: malformed response envelope")

// xmlNode is a schema-free XML tree. Decoding into it first, then converting
// to the same map shape the JSON variant unmarshals to, lets both wire
// flavors share one parse path. Keying on local names makes the decode
// indifferent to namespace prefixes, so attributes are not retained.
type xmlNode struct {
	XMLName xml.Name
	Nodes   []xmlNode `xml:",any"`
	Text    string    `xml:",chardata"`
}

// Decode parses a stop-monitoring response, SOAP or JSON, into visits for
// the requested stop codes. Visits for stops that were not requested are
// dropped. Provider-reported delivery errors land in the response's Errors
// list rather than failing the decode.
func Decode(raw []byte, requested []string, log zerolog.Logger) (*arrivals.Response, error) {
	body, err := deliveryBody(raw)
	if err != nil {
		log.Error().Err(err).Str("payload", string(raw)).Msg("undecodable stop-monitoring response")
		return nil, err
	}

	resp := arrivals.NewResponse(requested)
	resp.Timestamp = parseTime(str(body["ResponseTimestamp"]))

	for _, d := range listify(body["StopMonitoringDelivery"]) {
		delivery, ok := d.(map[string]any)
		if !ok {
			continue
		}
		if str(delivery["Status"]) != "true" {
			resp.Errors = append(resp.Errors, deliveryError(delivery))
			continue
		}
		for _, sv := range listify(delivery["MonitoredStopVisit"]) {
			visit, ok := sv.(map[string]any)
			if !ok {
				continue
			}
			v := parseVisit(visit)
			if _, wanted := resp.Visits[v.StopCode]; !wanted {
				log.Debug().Str("stop_code", v.StopCode).Msg("dropping visit for unrequested stop")
				continue
			}
			resp.Add(v)
		}
	}
	return resp, nil
}

// deliveryBody locates the service delivery inside either envelope flavor.
func deliveryBody(raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrMalformedEnvelope
	}

	var doc map[string]any
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
	} else {
		var root xmlNode
		if err := xml.Unmarshal(trimmed, &root); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		doc = map[string]any{root.XMLName.Local: nodeToMap(root)}
	}

	// JSON flavor: {"Siri": {"ServiceDelivery": {...}}}
	if body, ok := dig(doc, "Siri", "ServiceDelivery"); ok {
		return body, nil
	}
	// SOAP flavor: Envelope/Body/GetStopMonitoringServiceResponse/Answer.
	if body, ok := dig(doc, "Envelope", "Body", "GetStopMonitoringServiceResponse", "Answer"); ok {
		return body, nil
	}
	return nil, ErrMalformedEnvelope
}

// nodeToMap flattens an XML subtree into the JSON map shape: element text
// for leaves, child maps for interior nodes, and repeated element names
// collected into slices. Namespace prefixes vary per provider, so children
// are keyed by local name; the element's resolved namespace already encodes
// which vocabulary it came from.
func nodeToMap(n xmlNode) any {
	if len(n.Nodes) == 0 {
		return strings.TrimSpace(n.Text)
	}
	m := make(map[string]any, len(n.Nodes))
	for _, child := range n.Nodes {
		key := child.XMLName.Local
		value := nodeToMap(child)
		switch existing := m[key].(type) {
		case nil:
			m[key] = value
		case []any:
			m[key] = append(existing, value)
		default:
			m[key] = []any{existing, value}
		}
	}
	return m
}

// listify normalizes the provider's scalar-or-list ambiguity: single-element
// sequences arrive as a bare object, multi-element ones as an array.
func listify(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

func dig(m map[string]any, path ...string) (map[string]any, bool) {
	for _, key := range path {
		next, ok := m[key].(map[string]any)
		if !ok {
			return nil, false
		}
		m = next
	}
	return m, true
}

func deliveryError(delivery map[string]any) string {
	if cond, ok := dig(delivery, "ErrorCondition"); ok {
		if desc := str(cond["Description"]); desc != "" {
			return desc
		}
	}
	return "stop monitoring delivery failed without error condition"
}

func parseVisit(m map[string]any) *arrivals.Visit {
	v := &arrivals.Visit{
		Producer:   arrivals.ProducerSIRI,
		RecordedAt: parseTime(str(m["RecordedAtTime"])),
		StopCode:   str(m["MonitoringRef"]),
	}
	journey, ok := dig(m, "MonitoredVehicleJourney")
	if !ok {
		return v
	}
	v.RouteID = str(journey["LineRef"])
	v.DirectionID = str(journey["DirectionRef"])
	v.LineName = str(journey["PublishedLineName"])
	v.OperatorID = str(journey["OperatorRef"])
	v.DestinationID = str(journey["DestinationRef"])
	v.VehicleRef = str(journey["VehicleRef"])

	if frame, ok := dig(journey, "FramedVehicleJourneyRef"); ok {
		if date, err := time.Parse("2006-01-02", str(frame["DataFrameRef"])); err == nil {
			v.TripID = arrivals.TripIDFromFrame(str(frame["DatedVehicleJourneyRef"]), date)
		}
	}
	call, hasCall := dig(journey, "MonitoredCall")
	if hasCall {
		v.ETA = parseTime(str(call["ExpectedArrivalTime"]))
		v.Status = str(call["ArrivalStatus"])
	}
	// The call-level departure is the authoritative one; the journey-level
	// origin departure is only a fallback.
	departed := ""
	if hasCall {
		departed = str(call["AimedDepartureTime"])
	}
	if departed == "" {
		departed = str(journey["OriginAimedDepartureTime"])
	}
	if departed != "" {
		if t, err := time.Parse(time.RFC3339, departed); err == nil {
			v.Departed = &t
		}
	}
	if loc, ok := dig(journey, "VehicleLocation"); ok {
		lat, latErr := parseFloat(str(loc["Latitude"]))
		lon, lonErr := parseFloat(str(loc["Longitude"]))
		if latErr == nil && lonErr == nil {
			v.Location = &arrivals.Location{Lat: lat, Lon: lon}
		}
	}
	return v
}

// str renders the decoded scalar under a key: XML leaves are strings, but
// the JSON variant also emits bare numbers and booleans.
func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
