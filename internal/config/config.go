package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"stratbench/internal/domain"
	"stratbench/internal/engine"
	"stratbench/internal/search"
)

// DefaultPath is used when STRATBENCH_CONFIG is unset.
const DefaultPath = "config/stratbench.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for stratbench.
type Config struct {
	Storage     Storage             `yaml:"storage"`
	Server      Server              `yaml:"server"`
	Alpaca      Alpaca              `yaml:"alpaca"`
	Logging     Logging             `yaml:"logging"`
	Gather      GatherConfig        `yaml:"gather"`
	Simulation  Simulation          `yaml:"simulation"`
	Search      SearchConfig        `yaml:"search"`
	Instruments []domain.Instrument `yaml:"instruments"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	// ParamsFile, when set, keeps saved parameters in a JSON file instead of
	// SQLite.
	ParamsFile string `yaml:"params_file"`
	ChartDir   string `yaml:"chart_dir"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Addr returns host:grpc_port.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort)
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	// BaseURL is the trading API, used only for the market calendar.
	BaseURL string `yaml:"base_url"`
	Feed    string `yaml:"feed"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GatherConfig controls daily bar gathering.
type GatherConfig struct {
	StartDate       string `yaml:"start_date"`
	MaxWorkers      int    `yaml:"max_workers"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	MaxAttempts     int    `yaml:"max_attempts"`
	// CSVDir holds <name>.csv files for the csv importer.
	CSVDir string `yaml:"csv_dir"`
}

// Start parses StartDate.
func (g GatherConfig) Start() (time.Time, error) {
	return time.Parse("2006-01-02", g.StartDate)
}

// Simulation holds the cash, fee and horizon settings of every analysis.
type Simulation struct {
	InitialCash            float64 `yaml:"initial_cash"`
	TransactionPercentCost float64 `yaml:"transaction_percent_cost"`
	TransactionMinCost     float64 `yaml:"transaction_min_cost"`
	DaysToAnalyze          int     `yaml:"days_to_analyze"`
	DaysToPlot             int     `yaml:"days_to_plot"`
	// ReuseSaved replays saved windows instead of searching again.
	ReuseSaved bool `yaml:"reuse_saved"`
	MaxWorkers int  `yaml:"max_workers"`
}

// Fees builds the engine fee schedule.
func (s Simulation) Fees() (engine.FeeSchedule, error) {
	return engine.NewFeeSchedule(s.TransactionPercentCost, s.TransactionMinCost)
}

// SearchConfig sizes the window grid search.
type SearchConfig struct {
	Workers int          `yaml:"workers"`
	TopK    int          `yaml:"top_k"`
	SMA     BoundsConfig `yaml:"sma"`
	EMA     BoundsConfig `yaml:"ema"`
}

// RangeConfig is an inclusive min..max range stepped by step.
type RangeConfig struct {
	Min  int `yaml:"min"`
	Max  int `yaml:"max"`
	Step int `yaml:"step"`
}

// BoundsConfig is the grid of one moving-average kind.
type BoundsConfig struct {
	Short         RangeConfig `yaml:"short"`
	Long          RangeConfig `yaml:"long"`
	MinSeparation int         `yaml:"min_separation"`
}

// Bounds converts the configuration into search bounds.
func (b BoundsConfig) Bounds() search.Bounds {
	return search.Bounds{
		Short:         search.Range{Min: b.Short.Min, Max: b.Short.Max, Step: b.Short.Step},
		Long:          search.Range{Min: b.Long.Min, Max: b.Long.Max, Step: b.Long.Step},
		MinSeparation: b.MinSeparation,
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns the configuration file path from STRATBENCH_CONFIG, or
// DefaultPath.
func Path() string {
	if v := os.Getenv("STRATBENCH_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, fills defaults, applies environment variable overrides and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func defaultBounds() BoundsConfig {
	return BoundsConfig{
		Short:         RangeConfig{Min: 3, Max: 50, Step: 1},
		Long:          RangeConfig{Min: 10, Max: 75, Step: 5},
		MinSeparation: 5,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" && cfg.Storage.ParamsFile == "" {
		cfg.Storage.SQLitePath = "stratbench.db"
	}
	if cfg.Storage.ChartDir == "" {
		cfg.Storage.ChartDir = "charts"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 9090
	}
	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "iex"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Gather.StartDate == "" {
		cfg.Gather.StartDate = "2016-01-01"
	}
	if cfg.Gather.MaxWorkers == 0 {
		cfg.Gather.MaxWorkers = 4
	}
	if cfg.Gather.RateLimitPerMin == 0 {
		cfg.Gather.RateLimitPerMin = 200
	}
	if cfg.Gather.MaxAttempts == 0 {
		cfg.Gather.MaxAttempts = 3
	}
	if cfg.Simulation.InitialCash == 0 {
		cfg.Simulation.InitialCash = 10000
	}
	if cfg.Simulation.DaysToAnalyze == 0 {
		cfg.Simulation.DaysToAnalyze = 500
	}
	if cfg.Simulation.DaysToPlot == 0 {
		cfg.Simulation.DaysToPlot = 250
	}
	if cfg.Simulation.MaxWorkers == 0 {
		cfg.Simulation.MaxWorkers = 2
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = search.DefaultTopK
	}
	if cfg.Search.SMA == (BoundsConfig{}) {
		cfg.Search.SMA = defaultBounds()
	}
	if cfg.Search.EMA == (BoundsConfig{}) {
		cfg.Search.EMA = defaultBounds()
	}
	for i := range cfg.Instruments {
		if cfg.Instruments[i].Name == "" {
			cfg.Instruments[i].Name = cfg.Instruments[i].Symbol
		}
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("PARAMS_FILE"); v != "" {
		cfg.Storage.ParamsFile = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("SEARCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.Workers = n
		}
	}

	// Standard Alpaca env vars take priority over the names above.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// Validate reports every setting that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	if c.Simulation.InitialCash < 0 {
		errs = append(errs, fmt.Errorf("simulation.initial_cash %v is negative", c.Simulation.InitialCash))
	}
	if _, err := c.Simulation.Fees(); err != nil {
		errs = append(errs, fmt.Errorf("simulation fees: %w", err))
	}
	if c.Simulation.DaysToAnalyze < 0 || c.Simulation.DaysToPlot < 0 {
		errs = append(errs, errors.New("simulation day counts must not be negative"))
	}
	// Grid feasibility against a concrete series length is checked per run.
	if err := c.Search.SMA.Bounds().Validate(c.Search.SMA.Long.Max); err != nil {
		errs = append(errs, fmt.Errorf("search.sma: %w", err))
	}
	if err := c.Search.EMA.Bounds().Validate(c.Search.EMA.Long.Max); err != nil {
		errs = append(errs, fmt.Errorf("search.ema: %w", err))
	}
	if _, err := c.Gather.Start(); err != nil {
		errs = append(errs, fmt.Errorf("gather.start_date: %w", err))
	}
	seen := make(map[string]bool, len(c.Instruments))
	for i, in := range c.Instruments {
		if in.Symbol == "" {
			errs = append(errs, fmt.Errorf("instruments[%d]: missing symbol", i))
			continue
		}
		if seen[in.Symbol] {
			errs = append(errs, fmt.Errorf("instruments[%d]: duplicate symbol %s", i, in.Symbol))
		}
		seen[in.Symbol] = true
	}
	return errors.Join(errs...)
}
