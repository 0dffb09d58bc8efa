// Package config loads service configuration from an optional file, a .env file, FLEETMAP_*
// environment variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "FLEETMAP"

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Map       MapConfig       `mapstructure:"map"`
	Placement PlacementConfig `mapstructure:"placement"`
	Zones     ZonesConfig     `mapstructure:"zones"`
}

type HTTPConfig struct {
	Listen string `mapstructure:"listen"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type FeedConfig struct {
	Driver       string         `mapstructure:"driver"`
	Postgres     PostgresConfig `mapstructure:"postgres"`
	MySQL        MySQLConfig    `mapstructure:"mysql"`
	PollInterval time.Duration  `mapstructure:"poll_interval"`
	DBDebug      bool           `mapstructure:"db_debug"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type MySQLConfig struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Database string `mapstructure:"database"`
}

type EngineConfig struct {
	StalenessRefresh  time.Duration `mapstructure:"staleness_refresh"`
	NotificationLimit int           `mapstructure:"notification_limit"`
	JournalSize       int           `mapstructure:"journal_size"`
}

type MapConfig struct {
	Theme      string `mapstructure:"theme"`
	FollowZoom int    `mapstructure:"follow_zoom"`
}

type PlacementConfig struct {
	DefaultZone string `mapstructure:"default_zone"`
}

type ZonesConfig struct {
	DefaultRadiusMeters float64 `mapstructure:"default_radius_meters"`
	DefaultCapacity     int     `mapstructure:"default_capacity"`
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.listen", ":8081")
	v.SetDefault("log.level", "info")
	v.SetDefault("feed.driver", DriverMemory)
	v.SetDefault("feed.postgres.url", "")
	v.SetDefault("feed.mysql.user", "")
	v.SetDefault("feed.mysql.password", "")
	v.SetDefault("feed.mysql.host", "")
	v.SetDefault("feed.mysql.database", "")
	v.SetDefault("feed.poll_interval", 2*time.Second)
	v.SetDefault("feed.db_debug", false)
	v.SetDefault("engine.staleness_refresh", 30*time.Second)
	v.SetDefault("engine.notification_limit", 100)
	v.SetDefault("engine.journal_size", 2048)
	v.SetDefault("map.theme", "dark")
	v.SetDefault("map.follow_zoom", 18)
	v.SetDefault("placement.default_zone", "ZONE-A")
	v.SetDefault("zones.default_radius_meters", 40.0)
	v.SetDefault("zones.default_capacity", 50)
}

// Load reads the configuration. path may be empty. Flags that were explicitly set override
// everything else; a flag named "listen" maps to http.listen and "log-level" to log.level.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for key, name := range map[string]string{
			"http.listen": "listen",
			"log.level":   "log-level",
			"feed.driver": "feed-driver",
			"map.theme":   "theme",
		} {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Feed.Driver = strings.ToLower(strings.TrimSpace(c.Feed.Driver))
	c.Map.Theme = strings.ToLower(strings.TrimSpace(c.Map.Theme))
	c.Placement.DefaultZone = strings.TrimSpace(c.Placement.DefaultZone)
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Listen) == "" {
		errs = append(errs, errors.New("http.listen is required"))
	}
	switch c.Feed.Driver {
	case DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(c.Feed.Postgres.URL) == "" {
			errs = append(errs, errors.New("feed.postgres.url is required for the postgres driver"))
		}
	case DriverMySQL:
		m := c.Feed.MySQL
		if m.User == "" || m.Host == "" || m.Database == "" {
			errs = append(errs, errors.New("feed.mysql.user, host and database are required for the mysql driver"))
		}
		if c.Feed.PollInterval <= 0 {
			errs = append(errs, errors.New("feed.poll_interval must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown feed.driver %q", c.Feed.Driver))
	}
	if c.Engine.StalenessRefresh <= 0 {
		errs = append(errs, errors.New("engine.staleness_refresh must be positive"))
	}
	if c.Map.Theme != "dark" && c.Map.Theme != "light" {
		errs = append(errs, fmt.Errorf("map.theme must be dark or light, got %q", c.Map.Theme))
	}
	if c.Map.FollowZoom < 1 || c.Map.FollowZoom > 22 {
		errs = append(errs, fmt.Errorf("map.follow_zoom must be between 1 and 22, got %d", c.Map.FollowZoom))
	}
	if c.Zones.DefaultRadiusMeters <= 0 {
		errs = append(errs, errors.New("zones.default_radius_meters must be positive"))
	}
	if c.Zones.DefaultCapacity <= 0 {
		errs = append(errs, errors.New("zones.default_capacity must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
