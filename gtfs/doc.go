// Package gtfs models the static schedule reference data (agencies, routes,
// trips, stops, stop times, translations) and cross-references live arrival
// records against it. Relationships between entities are string-reference
// joins with no enforced integrity, so every lookup tolerates a missing
// counterpart.
package gtfs
