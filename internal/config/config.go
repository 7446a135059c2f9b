package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/calmcompass/places-cli/internal/reconcile"
	"github.com/calmcompass/places-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig           `yaml:"store" mapstructure:"store"`
	Yelp      YelpConfig            `yaml:"yelp" mapstructure:"yelp"`
	Google    GoogleConfig          `yaml:"google" mapstructure:"google"`
	Geocoder  GeocoderConfig        `yaml:"geocoder" mapstructure:"geocoder"`
	Collect   CollectConfig         `yaml:"collect" mapstructure:"collect"`
	Reconcile reconcile.MatchConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Server    ServerConfig          `yaml:"server" mapstructure:"server"`
	Log       LogConfig             `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// YelpConfig holds Yelp Fusion API settings.
type YelpConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	QPS     float64 `yaml:"qps" mapstructure:"qps"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	QPS     float64 `yaml:"qps" mapstructure:"qps"`
}

// GeocoderConfig holds Nominatim settings for city lookup.
type GeocoderConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// CollectConfig configures provider collection runs.
type CollectConfig struct {
	MaxPerCategory int `yaml:"max_per_category" mapstructure:"max_per_category"`
	TimeoutSecs    int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PLACES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "places.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("yelp.base_url", "https://api.yelp.com/v3")
	v.SetDefault("yelp.qps", 4)
	v.SetDefault("google.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("google.qps", 8)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "places-cli/1.0")
	v.SetDefault("collect.max_per_category", 200)
	v.SetDefault("collect.timeout_secs", 300)
	v.SetDefault("reconcile.max_distance_meters", 150)
	v.SetDefault("reconcile.name_threshold", 0.85)
	v.SetDefault("reconcile.loose_name_threshold", 0.60)
	v.SetDefault("reconcile.tight_radius_meters", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required for the given mode are set.
// Modes correspond to command entry points: collect, combine, serve, geocode.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
		problems = append(problems, "store.driver must be postgres or sqlite")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if c.Reconcile.NameThreshold < 0 || c.Reconcile.NameThreshold > 1 {
		problems = append(problems, "reconcile.name_threshold must be in [0, 1]")
	}
	if c.Reconcile.LooseNameThreshold < 0 || c.Reconcile.LooseNameThreshold > c.Reconcile.NameThreshold {
		problems = append(problems, "reconcile.loose_name_threshold must be in [0, name_threshold]")
	}
	if c.Reconcile.MaxDistanceMeters <= 0 {
		problems = append(problems, "reconcile.max_distance_meters must be > 0")
	}
	if c.Reconcile.TightRadiusMeters <= 0 || c.Reconcile.TightRadiusMeters > c.Reconcile.MaxDistanceMeters {
		problems = append(problems, "reconcile.tight_radius_meters must be in (0, max_distance_meters]")
	}

	switch mode {
	case "collect":
		if c.Yelp.Key == "" && c.Google.Key == "" {
			problems = append(problems, "collect requires yelp.key or google.key")
		}
	case "combine":
		// Store checks above are sufficient.
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "geocode":
		if c.Geocoder.BaseURL == "" {
			problems = append(problems, "geocoder.base_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
