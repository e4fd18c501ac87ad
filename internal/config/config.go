package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	AppName       string              `mapstructure:"appName"`
	Log           LogConfig           `mapstructure:"log"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	GeminiClient  GeminiClientConfig  `mapstructure:"geminiClient"`
	YouTubeClient YouTubeClientConfig `mapstructure:"youTubeClient"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Poller        PollerConfig        `mapstructure:"poller"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	Driver         string `mapstructure:"driver" validate:"oneof=mysql postgres"`
	Host           string `mapstructure:"host" validate:"required"`
	Port           int    `mapstructure:"port" validate:"min=1,max=65535"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbName" validate:"required"`
	SSLMode        string `mapstructure:"sslMode"`
	MaxOpenConns   int    `mapstructure:"maxOpenConns" validate:"min=1"`
	MigrationsPath string `mapstructure:"migrationsPath"`
}

// RedisConfig is optional; an empty Addr disables the metadata cache.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db" validate:"min=0"`
	MetadataTTL time.Duration `mapstructure:"metadataTTL"`
}

type GeminiClientConfig struct {
	APIKey          string        `mapstructure:"apiKey"`
	Model           string        `mapstructure:"model" validate:"required"`
	Temperature     float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens int32         `mapstructure:"maxOutputTokens" validate:"min=1"`
	RequestTimeout  time.Duration `mapstructure:"requestTimeout" validate:"gt=0"`
}

// YouTubeClientConfig is optional; without an API key every video is analyzed directly.
type YouTubeClientConfig struct {
	APIKey  string        `mapstructure:"apiKey"`
	BaseURL string        `mapstructure:"baseURL" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type AnalysisConfig struct {
	FullAnalysisCeiling   time.Duration `mapstructure:"fullAnalysisCeiling" validate:"gt=0"`
	SegmentLength         time.Duration `mapstructure:"segmentLength" validate:"gt=0"`
	MaxConcurrentSegments int           `mapstructure:"maxConcurrentSegments" validate:"min=1,max=20"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"maxAttempts" validate:"min=1,max=10"`
	BaseDelay   time.Duration `mapstructure:"baseDelay" validate:"gte=0"`
}

type PollerConfig struct {
	BatchSize        int           `mapstructure:"batchSize" validate:"min=1"`
	PauseBetweenJobs time.Duration `mapstructure:"pauseBetweenJobs" validate:"gte=0"`
	StaleAfter       time.Duration `mapstructure:"staleAfter" validate:"gt=0"`
}

type SchedulerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	PollCronSpec string `mapstructure:"pollCronSpec" validate:"required_if=Enabled true"`
}

// ArchiveConfig controls where unreadable model responses are kept. Empty Path disables it.
type ArchiveConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads configName.yaml from configPath, overlays environment variables
// (geminiClient.apiKey -> GEMINICLIENT_APIKEY) and validates the result.
// A missing file is not an error.
func Load(configPath string, configName string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(configPath)
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("appName", "videosafety-worker")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdownTimeout", 30*time.Second)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbName", "videosafety")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.migrationsPath", "scripts/migrate")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.metadataTTL", 24*time.Hour)

	v.SetDefault("geminiClient.apiKey", "")
	v.SetDefault("geminiClient.model", "gemini-2.5-flash")
	v.SetDefault("geminiClient.temperature", 0.1)
	v.SetDefault("geminiClient.maxOutputTokens", 8192)
	v.SetDefault("geminiClient.requestTimeout", 20*time.Minute)

	v.SetDefault("youTubeClient.apiKey", "")
	v.SetDefault("youTubeClient.baseURL", "")
	v.SetDefault("youTubeClient.timeout", 10*time.Second)

	v.SetDefault("analysis.fullAnalysisCeiling", 30*time.Minute)
	v.SetDefault("analysis.segmentLength", 20*time.Minute)
	v.SetDefault("analysis.maxConcurrentSegments", 5)

	v.SetDefault("retry.maxAttempts", 4)
	v.SetDefault("retry.baseDelay", 3*time.Second)

	v.SetDefault("poller.batchSize", 50)
	v.SetDefault("poller.pauseBetweenJobs", 2*time.Second)
	v.SetDefault("poller.staleAfter", 30*time.Minute)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.pollCronSpec", "0 * * * * *")

	v.SetDefault("archive.path", "")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Analysis.SegmentLength > c.Analysis.FullAnalysisCeiling {
		return fmt.Errorf("invalid config: analysis.segmentLength (%s) must not exceed analysis.fullAnalysisCeiling (%s)",
			c.Analysis.SegmentLength, c.Analysis.FullAnalysisCeiling)
	}
	return nil
}

// DSN is the driver connection string for database/sql.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		return d.postgresURL()
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

// MigrateURL is the database URL understood by golang-migrate.
func (d DatabaseConfig) MigrateURL() string {
	if d.Driver == "postgres" {
		return d.postgresURL()
	}
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC&multiStatements=true",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

// MigrationsSource points golang-migrate at the SQL files for the configured driver.
func (d DatabaseConfig) MigrationsSource() string {
	return "file://" + strings.TrimSuffix(d.MigrationsPath, "/") + "/" + d.Driver
}

func (d DatabaseConfig) postgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.DBName,
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	if d.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(d.SSLMode)
	}
	return u.String()
}
