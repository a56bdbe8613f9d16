// Package config handles application configuration loading and validation.
//
// Configuration is loaded from a YAML file and validated using struct tags.
// It shapes the aggregation engine's behavior (endpoints, batch group sizes,
// cache TTLs, timeouts) but is owned by the embedding application.
package config
