// Package gtfsrt consumes the supplementary realtime delta feed: a whole-
// feed protobuf snapshot polled on demand, cross-referenced against the
// schedule store through prefixed trip ids and a feed-local stop id mapping.
package gtfsrt
