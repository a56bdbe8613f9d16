package config

// StopMonitoringConfig configures the request/response stop-monitoring
// source.
type StopMonitoringConfig struct {
	URL          string `yaml:"url" validate:"required,url"`
	RequestorRef string `yaml:"requestorRef" validate:"required"`

	// Variant selects the wire flavor: "soap" (namespaced XML envelope,
	// POST) or "json" (comma-joined monitoring refs, GET).
	Variant string `yaml:"variant" validate:"omitempty,oneof=soap json"`

	// GroupSize caps how many stops go into one batched request. The SOAP
	// endpoint enforces a server-side batch limit, so its default is lower
	// than the JSON variant's.
	GroupSize int `yaml:"groupSize" validate:"gte=0"`

	// PreviewInterval is the ISO-8601 duration sent per monitored stop.
	PreviewInterval string `yaml:"previewInterval"`

	CacheTTLSeconds int `yaml:"cacheTTLSeconds" validate:"gte=0"`
	TimeoutMS       int `yaml:"timeoutMS" validate:"gte=0"`
}

// DeltaFeedConfig configures the periodically-polled binary entity feed.
type DeltaFeedConfig struct {
	FeedURL string `yaml:"feedURL" validate:"omitempty,url"`
	AuthKey string `yaml:"authKey"`

	// TripIDPrefix namespaces the feed's trip ids into the schedule store's
	// id space (the supplementary feed is imported under a prefix).
	TripIDPrefix string `yaml:"tripIDPrefix"`

	SnapshotTTLSeconds int `yaml:"snapshotTTLSeconds" validate:"gte=0"`
	TripInfoTTLMinutes int `yaml:"tripInfoTTLMinutes" validate:"gte=0"`
	TimeoutMS          int `yaml:"timeoutMS" validate:"gte=0"`

	// ServiceDays limits feed queries to ISO weekdays (1=Monday..7=Sunday);
	// the municipal feed only runs on weekends. Empty means every day.
	ServiceDays []int `yaml:"serviceDays" validate:"dive,gte=1,lte=7"`
}

// DatabaseConfig holds the schedule store connection settings.
type DatabaseConfig struct {
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Host       string `yaml:"host"`
	Name       string `yaml:"name"`
	DisableTLS bool   `yaml:"disableTLS"`
}

// RedisConfig enables the shared visit cache. An empty address keeps
// caching in-process.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	StopMonitoring StopMonitoringConfig `yaml:"stopMonitoring" validate:"required"`
	DeltaFeed      DeltaFeedConfig      `yaml:"deltaFeed"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
}
