package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samirrijal/cityplanner/internal/core/domain"
)

// Payload formats understood by the recommendation service.
const (
	PayloadPoints      = "points"
	PayloadCoordinates = "coordinates"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	City        CityConfig        `mapstructure:"city"`
	Map         MapConfig         `mapstructure:"map"`
	Styles      StylesConfig      `mapstructure:"styles"`
	Recommender RecommenderConfig `mapstructure:"recommender"`
	Places      PlacesConfig      `mapstructure:"places"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	AllowOrigins string `mapstructure:"allow_origins"`
}

// CityConfig is the city being planned. Its center is the base marker.
type CityConfig struct {
	Name      string  `mapstructure:"name"`
	CenterLat float64 `mapstructure:"center_lat"`
	CenterLon float64 `mapstructure:"center_lon"`
}

// Center returns the base marker coordinate.
func (c CityConfig) Center() domain.Coordinate {
	return domain.Coordinate{Latitude: c.CenterLat, Longitude: c.CenterLon}
}

// BaseMarker returns the fixed reference marker for the city.
func (c CityConfig) BaseMarker() domain.BaseMarker {
	return domain.BaseMarker{Label: c.Name, Position: c.Center()}
}

// MapConfig controls the initial map viewport and tiles.
type MapConfig struct {
	Zoom        int    `mapstructure:"zoom"`
	TileURL     string `mapstructure:"tile_url"`
	Attribution string `mapstructure:"attribution"`
}

// StylesConfig holds marker colors per class. An explicit icon_url overrides the
// color-derived icon.
type StylesConfig struct {
	Base     StyleConfig `mapstructure:"base"`
	User     StyleConfig `mapstructure:"user"`
	Activity StyleConfig `mapstructure:"activity"`
}

type StyleConfig struct {
	Color   string `mapstructure:"color"`
	IconURL string `mapstructure:"icon_url"`
}

// Registry builds the style registry injected into the map view.
func (s StylesConfig) Registry() domain.StyleRegistry {
	build := func(sc StyleConfig) domain.MarkerStyle {
		st := domain.ColorMarkerStyle(sc.Color)
		if sc.IconURL != "" {
			st.IconURL = sc.IconURL
		}
		return st
	}
	return domain.StyleRegistry{
		domain.ClassBase:     build(s.Base),
		domain.ClassUser:     build(s.User),
		domain.ClassActivity: build(s.Activity),
	}
}

// RecommenderConfig is the contract with the external recommendation service.
type RecommenderConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	Path          string `mapstructure:"path"`
	PayloadFormat string `mapstructure:"payload_format"`
	TimeoutMS     int    `mapstructure:"timeout_ms"`
}

// Endpoint joins base URL and path.
func (r RecommenderConfig) Endpoint() string {
	return strings.TrimRight(r.BaseURL, "/") + "/" + strings.TrimLeft(r.Path, "/")
}

// Timeout returns the request timeout.
func (r RecommenderConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// PlacesConfig tunes the reference recommender's place search. Port is where
// cmd/recommender listens.
type PlacesConfig struct {
	Port         int     `mapstructure:"port"`
	RadiusMeters float64 `mapstructure:"radius_meters"`
	Limit        int     `mapstructure:"limit"`
	CacheTTL     int     `mapstructure:"cache_ttl"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from defaults, an optional config file, an optional
// .env file and environment variables, in increasing priority.
func Load(service string) (*Config, error) {
	// .env only fills variables that are not already set.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CITYPLANNER_RECOMMENDER_BASE_URL → recommender.base_url
	v.SetEnvPrefix("CITYPLANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.allow_origins", "http://localhost:3000, http://localhost:5173")

	v.SetDefault("city.name", "Paris")
	v.SetDefault("city.center_lat", 48.8575)
	v.SetDefault("city.center_lon", 2.3514)

	v.SetDefault("map.zoom", 13)
	v.SetDefault("map.tile_url", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("map.attribution", `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`)

	v.SetDefault("styles.base.color", "red")
	v.SetDefault("styles.user.color", "green")
	v.SetDefault("styles.activity.color", "blue")

	v.SetDefault("recommender.base_url", "http://localhost:8000")
	v.SetDefault("recommender.path", "/api/coordinates")
	v.SetDefault("recommender.payload_format", PayloadPoints)
	v.SetDefault("recommender.timeout_ms", 10000)

	v.SetDefault("places.port", 8000)
	v.SetDefault("places.radius_meters", 1500)
	v.SetDefault("places.limit", 20)
	v.SetDefault("places.cache_ttl", 300)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "planner")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "cityplanner")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	if strings.TrimSpace(c.City.Name) == "" {
		errs = append(errs, "city.name is required")
	}
	if !c.City.Center().InRange() {
		errs = append(errs, fmt.Sprintf("city center %.6f,%.6f is not a valid coordinate", c.City.CenterLat, c.City.CenterLon))
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		errs = append(errs, fmt.Sprintf("map.zoom must be 0-22, got %d", c.Map.Zoom))
	}
	if err := c.Styles.Registry().Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if u, err := url.Parse(c.Recommender.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("recommender.base_url must be an absolute http(s) URL, got %q", c.Recommender.BaseURL))
	}
	if !strings.HasPrefix(c.Recommender.Path, "/") {
		errs = append(errs, "recommender.path must start with /")
	}
	switch c.Recommender.PayloadFormat {
	case PayloadPoints, PayloadCoordinates:
	default:
		errs = append(errs, fmt.Sprintf("recommender.payload_format must be %q or %q, got %q",
			PayloadPoints, PayloadCoordinates, c.Recommender.PayloadFormat))
	}
	if c.Recommender.TimeoutMS <= 0 {
		errs = append(errs, "recommender.timeout_ms must be positive")
	}

	if c.Places.Port <= 0 || c.Places.Port > 65535 {
		errs = append(errs, fmt.Sprintf("places.port must be 1-65535, got %d", c.Places.Port))
	}
	if c.Places.RadiusMeters <= 0 || c.Places.RadiusMeters > 10000 {
		errs = append(errs, "places.radius_meters must be between 1 and 10000")
	}
	if c.Places.Limit <= 0 || c.Places.Limit > 200 {
		errs = append(errs, "places.limit must be between 1 and 200")
	}
	if c.Places.CacheTTL < 0 {
		errs = append(errs, "places.cache_ttl must not be negative")
	}

	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats.enabled is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
