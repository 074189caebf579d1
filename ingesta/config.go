package ingesta

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log     LogConfig     `toml:"log"`
	API     APIConfig     `toml:"api"`
	DB      DBConfig      `toml:"db"`
	Cache   CacheConfig   `toml:"cache"`
	Browser BrowserConfig `toml:"browser"`
	Spaces  SpacesConfig  `toml:"spaces"`
	Jobs    []JobConfig   `toml:"jobs"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

type CacheConfig struct {
	DataRawDir    string `toml:"data_raw_dir"`
	HistoricosDir string `toml:"historicos_dir"`
	LogsDir       string `toml:"logs_dir"`
}

type BrowserConfig struct {
	Binary          string   `toml:"binary"`
	SearchPaths     []string `toml:"search_paths"`
	DownloadTimeout int      `toml:"download_timeout"` // seconds
	MaxSessions     int      `toml:"max_sessions"`
}

type SpacesConfig struct {
	Enabled bool   `toml:"enabled"`
	Key     string `toml:"key"`
	Secret  string `toml:"secret"`
	Region  string `toml:"region"`
	Bucket  string `toml:"bucket"`
	Root    string `toml:"root"`
}

// JobConfig is one entry of the [[jobs]] array: a full source descriptor.
type JobConfig struct {
	Name       string `toml:"name"`
	Active     bool   `toml:"active"`
	VariableID int    `toml:"variable_id"`
	CountryID  int    `toml:"country_id"`
	Mode       string `toml:"mode"` // replace | merge

	Driver       string `toml:"driver"` // http | browser | api
	URL          string `toml:"url"`
	File         string `toml:"file"` // canonical filename under data_raw
	InsecureTLS  bool   `toml:"insecure_tls"`
	Selector     string `toml:"selector"` // browser driver click target
	MonthlyProbe bool   `toml:"monthly_probe"`
	WindowYears  int    `toml:"window_years"` // api driver chunk size
	APIKeyParam  string `toml:"api_key_param"`
	APIKey       string `toml:"api_key"`
	StartDate    string `toml:"start_date"` // api driver lower bound, YYYY-MM-DD

	Parser      string `toml:"parser"` // csv | excel | matrix | api
	Sheet       string `toml:"sheet"`
	SkipRows    int    `toml:"skip_rows"`
	DateColumn  int    `toml:"date_column"`
	ValueColumn int    `toml:"value_column"`

	// HistoricalFile names a full-history artifact under historicos/ that
	// is merged under the fresh download: dates the live source carries win.
	HistoricalFile string `toml:"historical_file"`

	Periodicity  string `toml:"periodicity"` // D | W | M
	ToMonthly    bool   `toml:"to_monthly"`
	FillDaily    bool   `toml:"fill_daily"`
	BusinessOnly bool   `toml:"business_only"`
}
