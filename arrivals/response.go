package arrivals

import (
	"encoding/json"
	"time"
)

// Response is the per-request aggregation result. Visits holds an entry for
// every requested stop code, even when a stop has no visits: absence of a key
// is never used to signal "no data".
type Response struct {
	Visits    map[string][]*Visit
	Errors    []string
	Timestamp time.Time

	// static holds per-request schedule enrichment keyed by visit identity.
	// Visits themselves stay immutable so cached copies are never aliased
	// to a request-specific enrichment.
	static map[*Visit]*StaticInfo
}

// NewResponse returns a Response with an empty visit list for every
// requested stop code.
func NewResponse(stopCodes []string) *Response {
	r := &Response{Visits: make(map[string][]*Visit, len(stopCodes))}
	for _, code := range stopCodes {
		if _, ok := r.Visits[code]; !ok {
			r.Visits[code] = []*Visit{}
		}
	}
	return r
}

// Add appends a visit to its stop's list, keeping source delivery order.
func (r *Response) Add(v *Visit) {
	r.Visits[v.StopCode] = append(r.Visits[v.StopCode], v)
}

// Append merges another response into this one. Error lists concatenate.
// For stop codes present in both, other's visits are appended in their own
// order with duplicates (Visit.Equal) dropped; stop codes only in other are
// adopted verbatim. Earlier data is never overwritten.
func (r *Response) Append(other *Response) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	for stopCode, visits := range other.Visits {
		existing, ok := r.Visits[stopCode]
		if !ok {
			r.Visits[stopCode] = visits
			continue
		}
		for _, v := range visits {
			dup := false
			for _, mine := range existing {
				if mine.Equal(v) {
					dup = true
					break
				}
			}
			if !dup {
				existing = append(existing, v)
			}
		}
		r.Visits[stopCode] = existing
	}
	for v, si := range other.static {
		r.SetStaticInfo(v, si)
	}
}

// SetStaticInfo attaches schedule enrichment for a visit in this response.
func (r *Response) SetStaticInfo(v *Visit, si *StaticInfo) {
	if r.static == nil {
		r.static = map[*Visit]*StaticInfo{}
	}
	r.static[v] = si
}

// StaticInfo returns the enrichment attached for v, if any.
func (r *Response) StaticInfo(v *Visit) *StaticInfo {
	return r.static[v]
}

// FilterLines keeps only visits whose published line name is in names.
// Stop codes stay keyed even when everything is filtered away.
func (r *Response) FilterLines(names []string) {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	for stopCode, visits := range r.Visits {
		filtered := make([]*Visit, 0, len(visits))
		for _, v := range visits {
			if keep[v.LineName] {
				filtered = append(filtered, v)
			}
		}
		r.Visits[stopCode] = filtered
	}
}

// ToMap serializes the response for the front-end layer: errors (nil when
// empty), the overall timestamp, and per-stop visit dictionaries with
// enrichment joined in and time fields stringified.
func (r *Response) ToMap() map[string]any {
	visits := make(map[string]any, len(r.Visits))
	for stopCode, list := range r.Visits {
		dicts := make([]map[string]any, 0, len(list))
		for _, v := range list {
			dicts = append(dicts, r.visitMap(v))
		}
		visits[stopCode] = dicts
	}
	var errs []string
	if len(r.Errors) > 0 {
		errs = r.Errors
	}
	return map[string]any{
		"errors":    errs,
		"timestamp": r.Timestamp.Format(time.RFC3339),
		"visits":    visits,
	}
}

// MarshalJSON renders the ToMap form.
func (r *Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}

func (r *Response) visitMap(v *Visit) map[string]any {
	m := map[string]any{
		"producer":       v.Producer,
		"timestamp":      v.RecordedAt.Format(time.RFC3339),
		"stop_code":      v.StopCode,
		"route_id":       v.RouteID,
		"line_id":        v.RouteID,
		"direction_id":   v.DirectionID,
		"line_name":      v.LineName,
		"operator_id":    v.OperatorID,
		"destination_id": v.DestinationID,
		"vehicle_ref":    v.VehicleRef,
		"eta":            v.ETA.Format(time.RFC3339),
		"status":         orNil(v.Status),
		"location":       v.Location,
	}
	m["trip_id"] = orNil(v.TripID)
	if v.Departed != nil {
		m["departed"] = v.Departed.Format(time.RFC3339)
	} else {
		m["departed"] = nil
	}
	if si := r.StaticInfo(v); si != nil {
		m["static_info"] = map[string]any{"route": si}
	} else {
		m["static_info"] = nil
	}
	return m
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CacheEntry is the per-stop cached visit list. Entries are overwritten
// wholesale on refresh, never partially mutated, and each carries the
// timestamp of the fetch that produced it.
type CacheEntry struct {
	Visits    []*Visit  `json:"visits"`
	Timestamp time.Time `json:"timestamp"`
}

// MarshalBinary lets shared cache backends store entries directly.
func (e CacheEntry) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalBinary is the inverse of MarshalBinary.
func (e *CacheEntry) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, e)
}
