package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Planning Center API credentials
	PCAppID   string `long:"pc-app-id" env:"PLANNING_CENTER_APP_ID" description:"Planning Center application ID (required)" required:"true"`
	PCSecret  string `long:"pc-secret" env:"PLANNING_CENTER_SECRET" description:"Planning Center secret (required)" required:"true"`
	PCAPIBase string `long:"pc-api-base" env:"PLANNING_CENTER_API_BASE" default:"https://api.planningcenteronline.com" description:"Planning Center API base URL"`

	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/groups-sync.db" description:"SQLite database path for run history"`

	// Application configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	PublicDir    string `long:"public-dir" env:"PUBLIC_DIR" default:"./public" description:"Directory the published snapshot is written to"`
	DataDir      string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory for unpublished raw data dumps"`
	RulesFile    string `long:"rules-file" env:"RULES_FILE" default:"./config/classification.yml" description:"Classification rules file"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`

	// Rate limiting
	RateLimitMaxRequests int `long:"rate-limit-max" env:"RATE_LIMIT_MAX_REQUESTS" default:"80" description:"Max upstream requests per window"`
	RateLimitWindow      int `long:"rate-limit-window" env:"RATE_LIMIT_WINDOW" default:"60" description:"Rate limit window in seconds"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"C3-Connect-Groups/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/Toronto)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		PCAppID:              raw.PCAppID,
		PCSecret:             raw.PCSecret,
		PCAPIBase:            raw.PCAPIBase,
		DBPath:               raw.DBPath,
		Port:                 raw.Port,
		PublicDir:            raw.PublicDir,
		DataDir:              raw.DataDir,
		RulesFile:            raw.RulesFile,
		APIAccessKey:         raw.APIAccessKey,
		RateLimitMaxRequests: raw.RateLimitMaxRequests,
		RateLimitWindow:      raw.RateLimitWindow,
		UserAgent:            raw.UserAgent,
		Timezone:             raw.Timezone,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
