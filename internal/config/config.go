package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yycdata/mlxsweep/internal/domain"
)

// Config holds the mlxsweep crawler configuration.
type Config struct {
	MLX      MLXConfig      `yaml:"mlx"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Throttle ThrottleConfig `yaml:"throttle"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	Status   StatusConfig   `yaml:"status"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// MLXConfig holds the remote search endpoint settings.
type MLXConfig struct {
	HomeURL      string       `yaml:"home_url"`
	SearchURL    string       `yaml:"search_url"`
	TypeaheadURL string       `yaml:"typeahead_url"`
	Referer      string       `yaml:"referer"`
	UserAgent    string       `yaml:"user_agent"`
	CookieFile   string       `yaml:"cookie_file"`
	TimeoutSec   int          `yaml:"timeout_sec"`
	MaxRetries   int          `yaml:"max_retries"`
	PxWidth      int          `yaml:"px_width"`
	PxHeight     int          `yaml:"px_height"`
	MinTileSize  int          `yaml:"min_tile_size"`
	MaxTileSize  int          `yaml:"max_tile_size"`
	Bounds       BoundsConfig `yaml:"bounds"`
}

// BoundsConfig is the city-wide map viewport sent when no tile narrows the
// query.
type BoundsConfig struct {
	SWLat float64 `yaml:"sw_lat"`
	SWLng float64 `yaml:"sw_lng"`
	NELat float64 `yaml:"ne_lat"`
	NELng float64 `yaml:"ne_lng"`
}

// Area is one enumeration target from the config file.
type Area struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // SUBAREA or COMMUNITY
}

// CrawlConfig holds the enumeration window and partitioning knobs.
type CrawlConfig struct {
	Areas        []Area  `yaml:"areas"`
	YearFrom     int     `yaml:"year_from"`
	YearTo       int     `yaml:"year_to"`
	PriceFrom    int     `yaml:"price_from"`
	PriceTo      int     `yaml:"price_to"`
	PriceStep    int     `yaml:"price_step"`
	MinPriceStep int     `yaml:"min_price_step"`
	TileRadius   float64 `yaml:"tile_radius"`
	RetryRadius  float64 `yaml:"retry_radius"`
	Dwelling     string  `yaml:"dwelling_type"`
	AreaWorkers  int     `yaml:"area_workers"`
	StateDir     string  `yaml:"state_dir"`
}

// ThrottleConfig bounds request rate against the remote endpoint.
type ThrottleConfig struct {
	BaseMs      int `yaml:"base_ms"`
	JitterMs    int `yaml:"jitter_ms"`
	MaxInflight int `yaml:"max_inflight"`
}

// GeocoderConfig holds centroid lookup settings.
type GeocoderConfig struct {
	URL        string  `yaml:"url"`
	UserAgent  string  `yaml:"user_agent"`
	City       string  `yaml:"city"`
	Province   string  `yaml:"province"`
	Country    string  `yaml:"country"`
	MaxRetries int     `yaml:"max_retries"`
	RetryDelay int     `yaml:"retry_delay_sec"`
	DefaultLat float64 `yaml:"default_lat"`
	DefaultLon float64 `yaml:"default_lon"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	CSVPath     string `yaml:"csv_path"`
}

// CacheConfig holds the Valkey/Redis geocode cache settings. Empty addrs
// disable the cache and every centroid lookup goes to the live geocoder.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLHours int      `yaml:"ttl_hours"`
}

// StatusConfig holds the status/metrics HTTP server settings.
type StatusConfig struct {
	Port int `yaml:"port"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.MLX.TimeoutSec <= 0 {
		c.MLX.TimeoutSec = 30
	}
	if c.MLX.MaxRetries <= 0 {
		c.MLX.MaxRetries = 3
	}
	if c.MLX.CookieFile == "" {
		c.MLX.CookieFile = "data/cookies.json"
	}
	if c.MLX.PxWidth <= 0 {
		c.MLX.PxWidth = 1878
	}
	if c.MLX.PxHeight <= 0 {
		c.MLX.PxHeight = 771
	}
	if c.MLX.MinTileSize <= 0 {
		c.MLX.MinTileSize = 50
	}
	if c.MLX.MaxTileSize <= 0 {
		c.MLX.MaxTileSize = 150
	}
	if c.MLX.Bounds == (BoundsConfig{}) {
		c.MLX.Bounds = BoundsConfig{
			SWLat: 50.80385356806897,
			SWLng: -114.73967292417584,
			NELat: 51.21931073434607,
			NELng: -113.17798414259289,
		}
	}
	if c.Crawl.PriceStep <= 0 {
		c.Crawl.PriceStep = 100000
	}
	if c.Crawl.MinPriceStep <= 0 {
		c.Crawl.MinPriceStep = 1000
	}
	if c.Crawl.TileRadius <= 0 {
		c.Crawl.TileRadius = 0.02
	}
	if c.Crawl.RetryRadius <= 0 {
		c.Crawl.RetryRadius = 0.03
	}
	if c.Crawl.Dwelling == "" {
		c.Crawl.Dwelling = "DET"
	}
	if c.Crawl.AreaWorkers <= 0 {
		c.Crawl.AreaWorkers = 1
	}
	if c.Crawl.StateDir == "" {
		c.Crawl.StateDir = "data"
	}
	if c.Throttle.BaseMs <= 0 {
		c.Throttle.BaseMs = 500
	}
	if c.Throttle.JitterMs <= 0 {
		c.Throttle.JitterMs = 100
	}
	if c.Throttle.MaxInflight <= 0 {
		c.Throttle.MaxInflight = 2
	}
	if c.Geocoder.MaxRetries <= 0 {
		c.Geocoder.MaxRetries = 3
	}
	if c.Geocoder.RetryDelay <= 0 {
		c.Geocoder.RetryDelay = 2
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24 * 30
	}
	if c.Status.Port <= 0 {
		c.Status.Port = 9090
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.MLX.SearchURL == "" {
		return fmt.Errorf("mlx.search_url is required")
	}
	if c.MLX.HomeURL == "" {
		return fmt.Errorf("mlx.home_url is required")
	}
	if len(c.Crawl.Areas) == 0 {
		return fmt.Errorf("crawl.areas is required")
	}
	for i, a := range c.Crawl.Areas {
		if a.Code == "" || a.Name == "" {
			return fmt.Errorf("crawl.areas[%d]: code and name are required", i)
		}
		if !domain.AreaKind(a.Kind).IsValid() {
			return fmt.Errorf("crawl.areas[%d]: kind must be SUBAREA or COMMUNITY, got %q", i, a.Kind)
		}
	}
	if c.Crawl.YearFrom == 0 || c.Crawl.YearTo == 0 {
		return fmt.Errorf("crawl.year_from and crawl.year_to are required")
	}
	if c.Crawl.YearFrom > c.Crawl.YearTo {
		return fmt.Errorf("crawl.year_from %d exceeds crawl.year_to %d", c.Crawl.YearFrom, c.Crawl.YearTo)
	}
	if err := domain.ValidatePriceRange(c.Crawl.PriceFrom, c.Crawl.PriceTo); err != nil {
		return fmt.Errorf("crawl price window: %w", err)
	}
	if c.Crawl.MinPriceStep > c.Crawl.PriceStep {
		return fmt.Errorf("crawl.min_price_step %d exceeds crawl.price_step %d",
			c.Crawl.MinPriceStep, c.Crawl.PriceStep)
	}
	if c.Status.Port > 65535 {
		return fmt.Errorf("status.port must be at most 65535, got %d", c.Status.Port)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
