package domain

import "time"

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Component configurations
	FeatureStore FeatureStoreConfig `json:"featureStore"`
	Cache        CacheConfig        `json:"cache"`
	EventBus     EventBusConfig     `json:"eventBus"`

	// Pipeline configuration
	Engine      EngineConfig      `json:"engine"`
	Degradation DegradationConfig `json:"degradation"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// FeatureStoreConfig holds configuration for loading the member and
// product feature snapshots.
type FeatureStoreConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

// EngineConfig holds orchestrator settings.
type EngineConfig struct {
	// TopK is the default recommendation count when a request omits n.
	TopK int `json:"topK"`

	// CandidatePool caps the candidate product list passed to scorers.
	CandidatePool int `json:"candidatePool"`

	// SlowQueryThresholdMs flags requests slower than this total.
	SlowQueryThresholdMs float64 `json:"slowQueryThresholdMs"`

	// HistoryCacheSize bounds the member history LRU.
	HistoryCacheSize int `json:"historyCacheSize"`

	// SourceTimeoutMs is the per-candidate-source deadline. A source
	// that misses it is skipped for the request.
	SourceTimeoutMs int `json:"sourceTimeoutMs"`

	// SourceWeights assigns each candidate source its share of n for
	// the hybrid strategy. Zero-weight sources stay registered but idle.
	SourceWeights map[RecommendationSource]float64 `json:"sourceWeights"`
}

// DegradationConfig holds the fallback thresholds.
type DegradationConfig struct {
	MinQualityScore   float64 `json:"minQualityScore"`
	MaxResponseTimeMs float64 `json:"maxResponseTimeMs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		FeatureStore: FeatureStoreConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 1000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Engine: EngineConfig{
			TopK:                 5,
			CandidatePool:        100,
			SlowQueryThresholdMs: 1000,
			HistoryCacheSize:     1000,
			SourceTimeoutMs:      800,
			// The ML model carries the whole hybrid split by default;
			// the other sources stay registered but idle until a
			// deployment assigns them weight.
			SourceWeights: map[RecommendationSource]float64{
				SourceMLModel:       1.0,
				SourceCollaborative: 0,
				SourcePopularity:    0,
				SourceDiversity:     0,
				SourceRuleBased:     0,
			},
		},
		Degradation: DegradationConfig{
			MinQualityScore:   40,
			MaxResponseTimeMs: 2000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.FeatureStore = FeatureStoreConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
