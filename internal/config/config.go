// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional .env file, an optional YAML file and env vars.
package config

// DefaultYears is the fixed year set covered by the broadband dataset.
var DefaultYears = []string{"2017", "2018", "2019", "2020", "2021", "2022", "2023", "2024"}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// DataFile is the CSV loaded once at boot.
	DataFile string `koanf:"data_file"`

	// Years is the ordered, fixed year set. DefaultYear must be one of them.
	Years       []string `koanf:"years"`
	DefaultYear string   `koanf:"default_year"`

	// ResolverWorkers sets the coordinate resolution pool width.
	ResolverWorkers int `koanf:"resolver_workers"`
	// ResolverQueueSize bounds the resolution job queue.
	ResolverQueueSize int `koanf:"resolver_queue_size"`

	// GeocodeBaseURL points at the name to coordinates service.
	GeocodeBaseURL string `koanf:"geocode_base_url"`
	// GeocodeTimeoutMS caps a single lookup; 0 disables the timeout.
	GeocodeTimeoutMS int `koanf:"geocode_timeout_ms"`
	// OfflineGeocoder enables the embedded geobed lookup after the remote one.
	OfflineGeocoder bool `koanf:"offline_geocoder"`

	// CacheBackend selects the session coordinate cache: memory or redis.
	CacheBackend string `koanf:"cache_backend"`
	// CacheKey is the fixed key the session cache object is stored under.
	CacheKey          string `koanf:"cache_key"`
	RedisAddr         string `koanf:"redis_addr"`
	RedisPassword     string `koanf:"redis_password"`
	RedisDB           int    `koanf:"redis_db"`
	SessionTTLMinutes int    `koanf:"session_ttl_minutes"`

	// PlayIntervalMS is the period of the play timer.
	PlayIntervalMS int `koanf:"play_interval_ms"`
	// DefaultTopN is the initial bar race size.
	DefaultTopN int `koanf:"default_top_n"`
	// MaxUploadBytes caps CSV uploads.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
	// JournalSize is the number of log panel lines kept.
	JournalSize int `koanf:"journal_size"`
	// DedupeSize is the number of remembered dataset fingerprints.
	DedupeSize int `koanf:"dedupe_size"`
}

// New creates a Config with defaults.
func New() *Config {
	years := make([]string, len(DefaultYears))
	copy(years, DefaultYears)
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		DataFile:          "data.csv",
		Years:             years,
		DefaultYear:       "2024",
		ResolverWorkers:   6,
		ResolverQueueSize: 1024,
		GeocodeBaseURL:    "https://restcountries.com/v3.1",
		GeocodeTimeoutMS:  10_000,
		OfflineGeocoder:   false,
		CacheBackend:      CacheMemory,
		CacheKey:          "countryLatLngCache_v1",
		SessionTTLMinutes: 720,
		PlayIntervalMS:    1200,
		DefaultTopN:       12,
		MaxUploadBytes:    10 << 20,
		JournalSize:       200,
		DedupeSize:        64,
	}
}
