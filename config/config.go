package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/spf13/viper"
)

// Input modes
const (
	InputModeNames = "names"
	InputModeURLs  = "urls"
)

// Store layouts and inexact-value policies
const (
	LayoutWide = "wide"
	LayoutLong = "long"

	InexactBound = "bound" // store the detection limit as a number
	InexactText  = "text"  // store "<x" as text
)

// Resolver backends
const (
	BackendBrowser = "browser"
	BackendAPI     = "api"
)

// Config holds all configuration for the application
type Config struct {
	Source     SourceConfig
	Browser    BrowserConfig
	Resolver   ResolverConfig
	Categories []domain.Category
	Units      UnitsConfig
	Store      StoreConfig
	Output     OutputConfig
	Input      InputConfig
	Pipeline   PipelineConfig
	Server     ServerConfig
	Log        LogConfig
}

// SourceConfig describes the FoodData Central web UI and API
type SourceConfig struct {
	SearchURLTemplate string `mapstructure:"search_url_template"` // %s is the escaped query
	DetailURLTemplate string `mapstructure:"detail_url_template"` // %d is the FDC id
	APIBaseURL        string `mapstructure:"api_base_url"`
	APIKey            string `mapstructure:"api_key"`
	DataType          string `mapstructure:"data_type"`
}

// BrowserConfig holds headless browser settings
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"`
	ExecPaths         []string      `mapstructure:"exec_paths"` // tried in order, empty uses autodetection
	WaitTimeout       time.Duration `mapstructure:"wait_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Selectors         Selectors     `mapstructure:"selectors"`
}

// Selectors are the CSS selectors used to read FDC pages
type Selectors struct {
	ResultRows        string `mapstructure:"result_rows"`
	ResultDescription string `mapstructure:"result_description"`
	FoodDescription   string `mapstructure:"food_description"`
	TableHeaders      string `mapstructure:"table_headers"`
	TableRows         string `mapstructure:"table_rows"`
	TableCells        string `mapstructure:"table_cells"`
}

// ResolverConfig holds retry and cache settings for name resolution
type ResolverConfig struct {
	Backend        string        `mapstructure:"backend"`
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// UnitsConfig controls unit normalization
type UnitsConfig struct {
	Strict bool     `mapstructure:"strict"`
	Known  []string `mapstructure:"known"`
}

// StoreConfig holds relational store settings
type StoreConfig struct {
	Path          string `mapstructure:"path"`
	Layout        string `mapstructure:"layout"`
	InexactPolicy string `mapstructure:"inexact_policy"`
}

// OutputConfig holds flat-file output settings
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// InputConfig selects the input list and its mode
type InputConfig struct {
	Mode string `mapstructure:"mode"`
	Path string `mapstructure:"path"`
}

// PipelineConfig controls stage composition
type PipelineConfig struct {
	ExtractResolved bool `mapstructure:"extract_resolved"`
}

// ServerConfig holds read API settings
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimitPerIP int      `mapstructure:"rate_limit_per_ip"` // requests per minute
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// DefaultCategories is the category set of the most complete FDC layout
var DefaultCategories = []domain.Category{
	{Header: "Proximates:", Table: "proximates"},
	{Header: "Carbohydrates:", Table: "carbohydrates"},
	{Header: "Minerals:", Table: "minerals"},
	{Header: "Vitamins and Other Components:", Table: "vitamins"},
	{Header: "Lipids:", Table: "lipids"},
	{Header: "Amino acids:", Table: "amino_acids"},
	{Header: "Phytosterols:", Table: "phytosterols"},
	{Header: "Organic acids:", Table: "organic_acids"},
	{Header: "Isoflavones:", Table: "isoflavones"},
	{Header: "Oligosaccharides:", Table: "oligosaccharides"},
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load loads configuration from environment variables and an optional
// config file. An empty path searches the default locations.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/fdcscrape/")
	}

	v.SetEnvPrefix("FDCSCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if len(config.Categories) == 0 {
		config.Categories = append([]domain.Category(nil), DefaultCategories...)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("source.search_url_template", "https://fdc.nal.usda.gov/fdc-app.html#/food-search?type=Foundation&query=%s")
	v.SetDefault("source.detail_url_template", "https://fdc.nal.usda.gov/fdc-app.html#/food-details/%d/nutrients")
	v.SetDefault("source.api_base_url", "https://api.nal.usda.gov/fdc")
	v.SetDefault("source.api_key", "")
	v.SetDefault("source.data_type", "Foundation")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_paths", []string{})
	v.SetDefault("browser.wait_timeout", "10s")
	v.SetDefault("browser.settle_delay", "1s")
	v.SetDefault("browser.requests_per_second", 1.0)
	v.SetDefault("browser.burst", 1)
	v.SetDefault("browser.selectors.result_rows", "tbody tr")
	v.SetDefault("browser.selectors.result_description", "td:nth-child(2)")
	v.SetDefault("browser.selectors.food_description", "#foodDetailsDescription")
	v.SetDefault("browser.selectors.table_headers", "thead th")
	v.SetDefault("browser.selectors.table_rows", "tbody tr")
	v.SetDefault("browser.selectors.table_cells", "td")

	v.SetDefault("resolver.backend", BackendBrowser)
	v.SetDefault("resolver.max_retries", 5)
	v.SetDefault("resolver.initial_backoff", "1s")
	v.SetDefault("resolver.max_backoff", "30s")
	v.SetDefault("resolver.cache_ttl", "1h")

	v.SetDefault("units.strict", false)
	v.SetDefault("units.known", []string{"g", "mg", "µg", "μg", "kcal", "kJ", "IU"})

	v.SetDefault("store.path", "output/food_components.db")
	v.SetDefault("store.layout", LayoutWide)
	v.SetDefault("store.inexact_policy", InexactBound)

	v.SetDefault("output.dir", "output")

	v.SetDefault("input.mode", InputModeURLs)
	v.SetDefault("input.path", "urls.txt")

	v.SetDefault("pipeline.extract_resolved", true)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})
	v.SetDefault("server.rate_limit_per_ip", 120)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Input.Mode != InputModeNames && config.Input.Mode != InputModeURLs {
		return fmt.Errorf("input mode must be '%s' or '%s', got: %s", InputModeNames, InputModeURLs, config.Input.Mode)
	}

	if config.Store.Layout != LayoutWide && config.Store.Layout != LayoutLong {
		return fmt.Errorf("store layout must be '%s' or '%s', got: %s", LayoutWide, LayoutLong, config.Store.Layout)
	}

	if config.Store.InexactPolicy != InexactBound && config.Store.InexactPolicy != InexactText {
		return fmt.Errorf("inexact policy must be '%s' or '%s', got: %s", InexactBound, InexactText, config.Store.InexactPolicy)
	}

	if config.Resolver.Backend != BackendBrowser && config.Resolver.Backend != BackendAPI {
		return fmt.Errorf("resolver backend must be '%s' or '%s', got: %s", BackendBrowser, BackendAPI, config.Resolver.Backend)
	}

	if config.Resolver.Backend == BackendAPI && config.Source.APIKey == "" {
		return fmt.Errorf("FDC API key is required when resolver backend is 'api' (set FDCSCRAPE_SOURCE_API_KEY)")
	}

	if config.Resolver.MaxRetries < 0 {
		return fmt.Errorf("resolver max_retries must not be negative")
	}

	if config.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}

	return ValidateCategories(config.Categories)
}

// ValidateCategories checks that headers and tables are present and unique
// and that table names are safe identifiers
func ValidateCategories(categories []domain.Category) error {
	headers := make(map[string]bool)
	tables := make(map[string]bool)
	for _, c := range categories {
		header := strings.TrimSpace(c.Header)
		if header == "" {
			return fmt.Errorf("category header must not be empty")
		}
		if !tableNamePattern.MatchString(c.Table) {
			return fmt.Errorf("category %q: invalid table name %q", header, c.Table)
		}
		if headers[header] {
			return fmt.Errorf("duplicate category header %q", header)
		}
		if tables[strings.ToLower(c.Table)] {
			return fmt.Errorf("duplicate category table %q", c.Table)
		}
		headers[header] = true
		tables[strings.ToLower(c.Table)] = true
	}
	return nil
}
