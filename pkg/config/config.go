package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type FactorConfig struct {
	ID         string  `yaml:"id"`
	Weight     float64 `yaml:"weight"`
	PriorAlpha float64 `yaml:"prior_alpha"`
	PriorBeta  float64 `yaml:"prior_beta"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Engine struct {
		CorrelationThreshold  float64        `yaml:"correlation_threshold"`
		CorrelationWindow     time.Duration  `yaml:"correlation_window"`
		CooccurrenceWindow    time.Duration  `yaml:"cooccurrence_window"`
		DecayFloor            float64        `yaml:"decay_floor"`
		DisagreementThreshold float64        `yaml:"disagreement_threshold"`
		StalenessECE          float64        `yaml:"staleness_ece_threshold"`
		DefaultHalfLife       time.Duration  `yaml:"default_half_life"`
		Factors               []FactorConfig `yaml:"factors"`
		Similarity            struct {
			FactorMatch    float64 `yaml:"factor_match"`
			SourceCooccur  float64 `yaml:"source_cooccur"`
			TopicalOverlap float64 `yaml:"topical_overlap"`
		} `yaml:"similarity"`
	} `yaml:"engine"`
	Kafka struct {
		Brokers         []string `yaml:"brokers"`
		SignalsTopic    string   `yaml:"signals_topic"`
		AssessmentTopic string   `yaml:"assessment_topic"`
		RequiredAcks    int      `yaml:"required_acks"`
		Compression     string   `yaml:"compression"`
		Producer        struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	AISFeed struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Lanes          []string      `yaml:"lanes"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"ais_feed"`
	Similarity struct {
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"similarity"`
	ModelStore struct {
		URL             string        `yaml:"url"`
		Timeout         time.Duration `yaml:"timeout"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
	} `yaml:"model_store"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		CacheTTL struct {
			Assessment time.Duration `yaml:"assessment"`
			Beliefs    time.Duration `yaml:"beliefs"`
		} `yaml:"cache_ttl"`
		QueueKeyPrefix string `yaml:"queue_key_prefix"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("AIS_API_KEY"); v != "" {
		c.AISFeed.APIKey = v
	}
	if v := os.Getenv("LANES"); v != "" {
		c.AISFeed.Lanes = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SIGNALS_TOPIC"); v != "" {
		c.Kafka.SignalsTopic = v
	}
	if v := os.Getenv("MODEL_STORE_URL"); v != "" {
		c.ModelStore.URL = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	e := &c.Engine
	if e.CorrelationThreshold <= 0 {
		e.CorrelationThreshold = 0.7
	}
	if e.CorrelationWindow <= 0 {
		e.CorrelationWindow = 6 * time.Hour
	}
	if e.CooccurrenceWindow <= 0 {
		e.CooccurrenceWindow = 6 * time.Hour
	}
	if e.DecayFloor <= 0 {
		e.DecayFloor = 0.01
	}
	if e.DisagreementThreshold <= 0 {
		e.DisagreementThreshold = 0.15
	}
	if e.StalenessECE <= 0 {
		e.StalenessECE = 0.05
	}
	if e.DefaultHalfLife <= 0 {
		e.DefaultHalfLife = 12 * time.Hour
	}
	if e.Similarity.FactorMatch <= 0 && e.Similarity.SourceCooccur <= 0 && e.Similarity.TopicalOverlap <= 0 {
		e.Similarity.FactorMatch = 0.4
		e.Similarity.SourceCooccur = 0.3
		e.Similarity.TopicalOverlap = 0.3
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Engine.Factors) == 0 {
		return fmt.Errorf("engine.factors cannot be empty: factors must be pre-declared")
	}
	seen := make(map[string]bool, len(c.Engine.Factors))
	wsum := 0.0
	for _, f := range c.Engine.Factors {
		if f.ID == "" {
			return fmt.Errorf("engine.factors: id is required")
		}
		if seen[f.ID] {
			return fmt.Errorf("engine.factors: duplicate id %q", f.ID)
		}
		seen[f.ID] = true
		if f.Weight < 0 {
			return fmt.Errorf("engine.factors: %q weight must be non-negative", f.ID)
		}
		wsum += f.Weight
	}
	if wsum <= 0 {
		return fmt.Errorf("engine.factors: weights must sum to a positive value")
	}
	if c.Engine.CorrelationThreshold > 1 {
		return fmt.Errorf("engine.correlation_threshold must be <= 1")
	}
	return nil
}
