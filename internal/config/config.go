package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DateLayout is the layout for as-of dates in config and flags.
const DateLayout = "2006-01-02"

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Scorer     ScorerConfig     `yaml:"scorer" mapstructure:"scorer"`
	Leakage    LeakageConfig    `yaml:"leakage" mapstructure:"leakage"`
	Playbook   PlaybookConfig   `yaml:"playbook" mapstructure:"playbook"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend used for run history and the
// store source.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourceConfig selects where account and order records are loaded from.
type SourceConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"` // xlsx, csv, salesforce, store
	Path          string `yaml:"path" mapstructure:"path"`
	AccountsSheet string `yaml:"accounts_sheet" mapstructure:"accounts_sheet"`
	OrdersSheet   string `yaml:"orders_sheet" mapstructure:"orders_sheet"`
	AccountsCSV   string `yaml:"accounts_csv" mapstructure:"accounts_csv"`
	OrdersCSV     string `yaml:"orders_csv" mapstructure:"orders_csv"`
}

// SalesforceConfig holds Salesforce JWT auth settings and the custom fields
// that carry rep tier and account status.
type SalesforceConfig struct {
	ClientID     string  `yaml:"client_id" mapstructure:"client_id"`
	Username     string  `yaml:"username" mapstructure:"username"`
	KeyPath      string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL     string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxAttempts  int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RepTierField string  `yaml:"rep_tier_field" mapstructure:"rep_tier_field"`
	StatusField  string  `yaml:"status_field" mapstructure:"status_field"`
}

// EngineConfig controls how a report run is executed.
type EngineConfig struct {
	// AsOf anchors every trailing window. Empty means the latest order
	// date in the snapshot.
	AsOf               string `yaml:"as_of" mapstructure:"as_of"`
	Concurrency        int    `yaml:"concurrency" mapstructure:"concurrency"`
	OnInvalid          string `yaml:"on_invalid" mapstructure:"on_invalid"`                     // abort, skip
	OnUndefinedLeakage string `yaml:"on_undefined_leakage" mapstructure:"on_undefined_leakage"` // exclude, abort
}

// ScorerConfig holds normalization, ROI, phase, and coverage parameters.
type ScorerConfig struct {
	// Normalization.
	RecentWindowDays int    `yaml:"recent_window_days" mapstructure:"recent_window_days"`
	Scaling          string `yaml:"scaling" mapstructure:"scaling"` // minmax, percentile
	StrictPopulation bool   `yaml:"strict_population" mapstructure:"strict_population"`

	// ROI weights.
	RecentActivityWeight    float64 `yaml:"recent_activity_weight" mapstructure:"recent_activity_weight"`
	HistoricalRevenueWeight float64 `yaml:"historical_revenue_weight" mapstructure:"historical_revenue_weight"`
	CoverageBonus           float64 `yaml:"coverage_bonus" mapstructure:"coverage_bonus"`

	// Priority bands.
	HighThreshold   float64 `yaml:"high_threshold" mapstructure:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold" mapstructure:"medium_threshold"`

	// Phase classification.
	Phase2Threshold  float64 `yaml:"phase2_threshold" mapstructure:"phase2_threshold"`
	GapThresholdDays int     `yaml:"gap_threshold_days" mapstructure:"gap_threshold_days"`

	// Coverage audit.
	CoverageHighROI float64 `yaml:"coverage_high_roi" mapstructure:"coverage_high_roi"`
	CoverageLowROI  float64 `yaml:"coverage_low_roi" mapstructure:"coverage_low_roi"`
}

// LeakageConfig holds the trailing windows and flag threshold.
type LeakageConfig struct {
	BaselineMonths int     `yaml:"baseline_months" mapstructure:"baseline_months"`
	CurrentMonths  int     `yaml:"current_months" mapstructure:"current_months"`
	DropThreshold  float64 `yaml:"drop_threshold" mapstructure:"drop_threshold"`
	ShortlistSize  int     `yaml:"shortlist_size" mapstructure:"shortlist_size"`
}

// PlaybookConfig points at an optional phase action catalog override.
type PlaybookConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP report server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
}

// Load reads configuration from .env, config file, and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STRATEGY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "strategy.db")
	v.SetDefault("source.driver", "xlsx")
	v.SetDefault("source.accounts_sheet", "Accounts")
	v.SetDefault("source.orders_sheet", "Orders")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5)
	v.SetDefault("salesforce.max_attempts", 3)
	v.SetDefault("salesforce.rep_tier_field", "Rep_Tier__c")
	v.SetDefault("salesforce.status_field", "Account_Status__c")
	v.SetDefault("engine.concurrency", 8)
	v.SetDefault("engine.on_invalid", "abort")
	v.SetDefault("engine.on_undefined_leakage", "exclude")
	v.SetDefault("scorer.recent_window_days", 90)
	v.SetDefault("scorer.scaling", "minmax")
	v.SetDefault("scorer.recent_activity_weight", 0.4)
	v.SetDefault("scorer.historical_revenue_weight", 0.4)
	v.SetDefault("scorer.coverage_bonus", 20)
	v.SetDefault("scorer.high_threshold", 70)
	v.SetDefault("scorer.medium_threshold", 40)
	v.SetDefault("scorer.phase2_threshold", 60)
	v.SetDefault("scorer.gap_threshold_days", 180)
	v.SetDefault("scorer.coverage_high_roi", 70)
	v.SetDefault("scorer.coverage_low_roi", 30)
	v.SetDefault("leakage.baseline_months", 12)
	v.SetDefault("leakage.current_months", 3)
	v.SetDefault("leakage.drop_threshold", 0.25)
	v.SetDefault("leakage.shortlist_size", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 16)
	v.SetDefault("log.max_backups", 8)

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

// Validate checks the settings a command depends on. Sections are named
// after the config keys ("source", "store", "salesforce", "engine").
func (c *Config) Validate(sections ...string) error {
	var errs []string
	for _, s := range sections {
		switch s {
		case "source":
			switch c.Source.Driver {
			case "xlsx":
				if c.Source.Path == "" {
					errs = append(errs, "source.path is required for the xlsx source")
				}
			case "csv":
				if c.Source.AccountsCSV == "" || c.Source.OrdersCSV == "" {
					errs = append(errs, "source.accounts_csv and source.orders_csv are required for the csv source")
				}
			case "salesforce", "store":
			default:
				errs = append(errs, "source.driver must be xlsx, csv, salesforce, or store")
			}
		case "store":
			if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
				errs = append(errs, "store.driver must be sqlite or postgres")
			}
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required")
			}
		case "salesforce":
			if c.Salesforce.ClientID == "" {
				errs = append(errs, "salesforce.client_id is required (STRATEGY_SALESFORCE_CLIENT_ID)")
			}
			if c.Salesforce.KeyPath == "" {
				errs = append(errs, "salesforce.key_path is required")
			}
		case "engine":
			if c.Engine.AsOf != "" {
				if _, err := time.Parse(DateLayout, c.Engine.AsOf); err != nil {
					errs = append(errs, "engine.as_of must be YYYY-MM-DD")
				}
			}
			if c.Engine.OnInvalid != "abort" && c.Engine.OnInvalid != "skip" {
				errs = append(errs, "engine.on_invalid must be abort or skip")
			}
			if c.Engine.OnUndefinedLeakage != "exclude" && c.Engine.OnUndefinedLeakage != "abort" {
				errs = append(errs, "engine.on_undefined_leakage must be exclude or abort")
			}
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger. When cfg.File is set, log
// entries are also written to a size-rotated file.
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

	var opts []zap.Option
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			zapCfg.Level,
		)
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
