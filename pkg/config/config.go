package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Database            DatabaseConfig            `yaml:"database"`
	Server              ServerConfig              `yaml:"server"`
	Model               ModelConfig               `yaml:"model"`
	Training            TrainingConfig            `yaml:"training"`
	Confidence          ConfidenceConfig          `yaml:"confidence"`
	TransferMultipliers map[string]float64        `yaml:"transfer_multipliers"`
	ZoneDefaults        map[string]ZoneDefault    `yaml:"zone_defaults"`
	Neighborhoods       map[string]Neighborhood   `yaml:"neighborhoods"`
	Realtime            RealtimeConfig            `yaml:"realtime"`
	Serving             ServingConfig             `yaml:"serving"`
	Privacy             PrivacyConfig             `yaml:"privacy"`
	Request             RequestConfig             `yaml:"request"`
	Logging             LoggingConfig             `yaml:"logging"`
}

// DatabaseConfig holds persistent storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// BoosterConfig holds hyperparameters for one gradient-boosted model. The
// online service only records them; they are consumed by the offline
// training pipeline that produces the artifact bundles.
type BoosterConfig struct {
	NEstimators        int     `yaml:"n_estimators"`
	MaxDepth           int     `yaml:"max_depth"`
	LearningRate       float64 `yaml:"learning_rate"`
	EvalMetric         string  `yaml:"eval_metric"`
	EarlyStoppingRounds int    `yaml:"early_stopping_rounds"`
}

// ModelConfig holds model artifact settings.
type ModelConfig struct {
	ArtifactsDir string        `yaml:"artifacts_dir"`
	Occupancy    BoosterConfig `yaml:"occupancy"`
	Turnover     BoosterConfig `yaml:"turnover"`
}

// TrainingConfig holds offline training-split settings (recorded only).
type TrainingConfig struct {
	SampleRateRandom float64 `yaml:"sample_rate_random"`
	TimeSlotMinutes  int     `yaml:"time_slot_minutes"`
	TrainMonths      int     `yaml:"train_months"`
	ValMonths        int     `yaml:"val_months"`
	TestMonths       int     `yaml:"test_months"`
}

// ConfidenceConfig holds the confidence-score weights and thresholds.
type ConfidenceConfig struct {
	MeterSampleThreshold    int     `yaml:"meter_sample_threshold"`
	RealtimeFreshMinutes    float64 `yaml:"realtime_fresh_minutes"`
	RealtimeStaleMinutes    float64 `yaml:"realtime_stale_minutes"`
	MeterDataWeight         float64 `yaml:"meter_data_weight"`
	SpatialDataWeight       float64 `yaml:"spatial_data_weight"`
	RealtimeFreshnessWeight float64 `yaml:"realtime_freshness_weight"`
	ModelCertaintyWeight    float64 `yaml:"model_certainty_weight"`
}

// ZoneDefault assigns neighborhoods and a base churn rate to a zone type.
type ZoneDefault struct {
	Neighborhoods []string `yaml:"neighborhoods"`
	BaseChurn     float64  `yaml:"base_churn"`
}

// Neighborhood defines a named circular region.
type Neighborhood struct {
	Name    string  `yaml:"name"`
	Lat     float64 `yaml:"lat"`
	Lng     float64 `yaml:"lng"`
	RadiusM float64 `yaml:"radius_m"`
}

// RealtimeConfig holds polling intervals for the signal pollers.
type RealtimeConfig struct {
	TrafficInterval Duration `yaml:"traffic_interval"`
	WeatherInterval Duration `yaml:"weather_interval"`
	EventsInterval  Duration `yaml:"events_interval"`
	GaragesInterval Duration `yaml:"garages_interval"`
}

// ServingConfig holds prediction cache settings.
type ServingConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	CacheMaxEntries int `yaml:"cache_max_entries"`
}

// ProTierPrivacy holds the distance thresholds for pro-tier coordinates.
type ProTierPrivacy struct {
	ExactWithinM float64 `yaml:"exact_within_m"`
	FuzzyWithinM float64 `yaml:"fuzzy_within_m"`
	FuzzMeters   float64 `yaml:"fuzz_meters"`
}

// PrivacyConfig holds privacy gating settings.
type PrivacyConfig struct {
	ProTier ProTierPrivacy `yaml:"pro_tier"`
}

// RequestConfig holds outbound HTTP settings.
type RequestConfig struct {
	Timeout Duration      `yaml:"timeout"`
	Retries int           `yaml:"retries"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "data/curbcast.db"},
		Server:   ServerConfig{Address: ":8420"},
		Model: ModelConfig{
			ArtifactsDir: "models",
			Occupancy: BoosterConfig{
				NEstimators:        400,
				MaxDepth:           6,
				LearningRate:       0.05,
				EvalMetric:         "logloss",
				EarlyStoppingRounds: 30,
			},
			Turnover: BoosterConfig{
				NEstimators:        300,
				MaxDepth:           5,
				LearningRate:       0.05,
				EvalMetric:         "rmse",
				EarlyStoppingRounds: 30,
			},
		},
		Training: TrainingConfig{
			SampleRateRandom: 0.02,
			TimeSlotMinutes:  15,
			TrainMonths:      30,
			ValMonths:        3,
			TestMonths:       3,
		},
		Confidence: ConfidenceConfig{
			MeterSampleThreshold:    100,
			RealtimeFreshMinutes:    5,
			RealtimeStaleMinutes:    60,
			MeterDataWeight:         0.4,
			SpatialDataWeight:       0.2,
			RealtimeFreshnessWeight: 0.2,
			ModelCertaintyWeight:    0.2,
		},
		TransferMultipliers: map[string]float64{
			"residential": 1.15,
			"commercial":  1.25,
			"restaurant":  1.30,
			"gym":         1.20,
			"mixed":       1.20,
		},
		ZoneDefaults: map[string]ZoneDefault{
			"residential": {
				Neighborhoods: []string{"marina", "castro", "haight"},
				BaseChurn:     0.8,
			},
			"commercial": {
				Neighborhoods: []string{"financial_district", "union_square", "soma"},
				BaseChurn:     2.5,
			},
			"restaurant": {
				Neighborhoods: []string{"north_beach", "mission", "chinatown"},
				BaseChurn:     3.0,
			},
			"gym": {
				Neighborhoods: []string{},
				BaseChurn:     2.0,
			},
			"mixed": {
				Neighborhoods: []string{"civic_center"},
				BaseChurn:     1.5,
			},
		},
		Neighborhoods: map[string]Neighborhood{
			"financial_district": {Name: "Financial District", Lat: 37.7946, Lng: -122.3999, RadiusM: 800},
			"soma":               {Name: "SoMa", Lat: 37.7785, Lng: -122.4056, RadiusM: 1000},
			"mission":            {Name: "Mission", Lat: 37.7599, Lng: -122.4148, RadiusM: 1000},
			"north_beach":        {Name: "Fisherman's Wharf / North Beach", Lat: 37.8060, Lng: -122.4103, RadiusM: 900},
			"marina":             {Name: "Marina", Lat: 37.8021, Lng: -122.4369, RadiusM: 900},
			"civic_center":       {Name: "Civic Center / Hayes Valley", Lat: 37.7793, Lng: -122.4193, RadiusM: 800},
			"union_square":       {Name: "Union Square", Lat: 37.7880, Lng: -122.4075, RadiusM: 600},
			"chinatown":          {Name: "Chinatown", Lat: 37.7941, Lng: -122.4078, RadiusM: 500},
			"castro":             {Name: "Castro", Lat: 37.7609, Lng: -122.4350, RadiusM: 700},
			"haight":             {Name: "Haight-Ashbury", Lat: 37.7692, Lng: -122.4481, RadiusM: 800},
		},
		Realtime: RealtimeConfig{
			TrafficInterval: Duration(5 * time.Minute),
			WeatherInterval: Duration(15 * time.Minute),
			EventsInterval:  Duration(1 * time.Hour),
			GaragesInterval: Duration(5 * time.Minute),
		},
		Serving: ServingConfig{
			CacheTTLSeconds: 300,
			CacheMaxEntries: 4096,
		},
		Privacy: PrivacyConfig{
			ProTier: ProTierPrivacy{
				ExactWithinM: 200,
				FuzzyWithinM: 400,
				FuzzMeters:   50,
			},
		},
		Request: RequestConfig{
			Timeout: Duration(15 * time.Second),
			Retries: 3,
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Logging: LoggingConfig{Level: "INFO", Format: "text"},
	}
}

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes ${VAR} references with environment values.
// Unset variables expand to the empty string.
func expandEnv(raw []byte) []byte {
	return envRefPattern.ReplaceAllFunc(raw, func(ref []byte) []byte {
		name := envRefPattern.FindSubmatch(ref)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads the config file at path, expands ${VAR} environment references
// and overlays the result onto DefaultConfig. A missing file returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Serving.CacheTTLSeconds <= 0 {
		return fmt.Errorf("serving.cache_ttl_seconds must be positive")
	}
	wsum := c.Confidence.MeterDataWeight + c.Confidence.SpatialDataWeight +
		c.Confidence.RealtimeFreshnessWeight + c.Confidence.ModelCertaintyWeight
	if wsum <= 0 {
		return fmt.Errorf("confidence weights must sum to a positive value")
	}
	return nil
}

// ZoneForNeighborhood maps a neighborhood key to its configured zone type,
// falling back to "mixed".
func (c *Config) ZoneForNeighborhood(key string) string {
	for zone, zd := range c.ZoneDefaults {
		for _, n := range zd.Neighborhoods {
			if n == key {
				return zone
			}
		}
	}
	return "mixed"
}

// BaseChurn returns the configured base churn rate for a zone type.
func (c *Config) BaseChurn(zoneType string) float64 {
	if zd, ok := c.ZoneDefaults[zoneType]; ok && zd.BaseChurn > 0 {
		return zd.BaseChurn
	}
	return 1.0
}

// TransferMultiplier returns the transfer multiplier for a zone type,
// defaulting to 1.20.
func (c *Config) TransferMultiplier(zoneType string) float64 {
	if m, ok := c.TransferMultipliers[zoneType]; ok && m > 0 {
		return m
	}
	return 1.20
}
