package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. Resolution order is
// explicit flag > PRIHLASKY_* environment variable > built-in default;
// commands apply their flag overrides onto the loaded Config.
type Config struct {
	PowerBI PowerBIConfig `yaml:"powerbi" mapstructure:"powerbi"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// PowerBIConfig identifies the published dashboard dataset and how to reach
// it. ResourceKey is the opaque bearer credential; its acquisition is out of
// scope and it is never logged in full.
type PowerBIConfig struct {
	Endpoint      string `yaml:"endpoint" mapstructure:"endpoint"`
	DatasetID     string `yaml:"dataset_id" mapstructure:"dataset_id"`
	ReportID      string `yaml:"report_id" mapstructure:"report_id"`
	VisualID      string `yaml:"visual_id" mapstructure:"visual_id"`
	ModelID       int64  `yaml:"model_id" mapstructure:"model_id"`
	ResourceKey   string `yaml:"resource_key" mapstructure:"resource_key"`
	ResourceQuery string `yaml:"resource_query" mapstructure:"resource_query"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ExtractConfig configures the extraction stage.
type ExtractConfig struct {
	SchoolsFile     string  `yaml:"schools_file" mapstructure:"schools_file"`
	CurriculumsFile string  `yaml:"curriculums_file" mapstructure:"curriculums_file"`
	MetricsFile     string  `yaml:"metrics_file" mapstructure:"metrics_file"`
	DelaySecs       float64 `yaml:"delay_secs" mapstructure:"delay_secs"`
}

// EnrichConfig configures the enrichment stage.
type EnrichConfig struct {
	OriginStop     string `yaml:"origin_stop" mapstructure:"origin_stop"`
	OriginStopCode string `yaml:"origin_stop_code" mapstructure:"origin_stop_code"`
	ArrivalTime    string `yaml:"arrival_time" mapstructure:"arrival_time"`
	Weekday        string `yaml:"weekday" mapstructure:"weekday"`
	PlannerBaseURL string `yaml:"planner_base_url" mapstructure:"planner_base_url"`
	DirectoryFile  string `yaml:"directory_file" mapstructure:"directory_file"`
	DelayMillis    int    `yaml:"delay_millis" mapstructure:"delay_millis"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Concurrency    int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// CacheConfig configures the lookup cache.
type CacheConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	FailedTTLMins int    `yaml:"failed_ttl_mins" mapstructure:"failed_ttl_mins"`
}

// OutputConfig configures the flat-file stores.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Delay returns the pause between entity queries.
func (c ExtractConfig) Delay() time.Duration {
	return time.Duration(c.DelaySecs * float64(time.Second))
}

// Timeout returns the per-request timeout for the analytics endpoint.
func (c PowerBIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Delay returns the pause between routing-provider requests.
func (c EnrichConfig) Delay() time.Duration {
	return time.Duration(c.DelayMillis) * time.Millisecond
}

// Timeout returns the per-request timeout for enrichment lookups.
func (c EnrichConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// FailedTTL returns the validity window of cached failed lookups.
func (c CacheConfig) FailedTTL() time.Duration {
	return time.Duration(c.FailedTTLMins) * time.Minute
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRIHLASKY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("powerbi.endpoint", "https://wabi-west-europe-d-primary-api.analysis.windows.net/public/reports/querydata")
	v.SetDefault("powerbi.dataset_id", "58a0ec54-35f2-4fc3-94f0-f9e0891c5e1c")
	v.SetDefault("powerbi.report_id", "0b26f6ef-7ff7-45a8-8f12-78d023127d91")
	v.SetDefault("powerbi.visual_id", "b8b4c55cb84dc45e8c03")
	v.SetDefault("powerbi.model_id", 5073049)
	// Empty defaults still register the key; without that viper's Unmarshal
	// never consults the environment for it.
	v.SetDefault("powerbi.resource_key", "")
	v.SetDefault("powerbi.resource_query", "20ed6fa8-cfee-406f-b105-945624c1d966")
	v.SetDefault("powerbi.timeout_secs", 30)
	v.SetDefault("extract.schools_file", "config/schools.json")
	v.SetDefault("extract.curriculums_file", "config/curriculums.json")
	v.SetDefault("extract.metrics_file", "")
	v.SetDefault("extract.delay_secs", 2.0)
	v.SetDefault("enrich.origin_stop", "Rajská zahrada")
	v.SetDefault("enrich.origin_stop_code", "301003")
	v.SetDefault("enrich.arrival_time", "07:45")
	v.SetDefault("enrich.weekday", "monday")
	v.SetDefault("enrich.planner_base_url", "https://idos.cz/pid/spojeni/")
	v.SetDefault("enrich.directory_file", "config/schools_addresses.json")
	v.SetDefault("enrich.delay_millis", 500)
	v.SetDefault("enrich.timeout_secs", 10)
	v.SetDefault("enrich.concurrency", 4)
	v.SetDefault("cache.path", "cache/lookups.db")
	v.SetDefault("cache.failed_ttl_mins", 60)
	v.SetDefault("output.dir", "output")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// ParseWeekday maps a lowercase weekday name to time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday":
		return time.Sunday, nil
	case "monday", "":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	}
	return time.Monday, eris.Errorf("config: unknown weekday %q", name)
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
