package config

import (
	"bytes"
	_ "embed"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig      `mapstructure:"http"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	Cache      CacheConfig     `mapstructure:"cache"`
	Admin      AdminConfig     `mapstructure:"admin"`
	Logging    LoggingConfig   `mapstructure:"logging"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Identity   IdentityConfig  `mapstructure:"identity"`
	Ingest     IngestConfig    `mapstructure:"ingest"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	UsageTopic     string   `mapstructure:"usage_topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type CacheConfig struct {
	Capacity        int           `mapstructure:"capacity"`
	SettingsTTL     time.Duration `mapstructure:"settings_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// AdminConfig carries the privileged-operation allow-lists. Both fields are
// comma-separated so they can be supplied as single environment variables
// (CREDITGW_ADMIN_ACCOUNT_IDS, CREDITGW_ADMIN_EMAILS).
type AdminConfig struct {
	AccountIDs string `mapstructure:"account_ids"`
	Emails     string `mapstructure:"emails"`
}

// AccountIDList splits the comma-separated allow-list, dropping blanks.
func (a AdminConfig) AccountIDList() []string { return splitList(a.AccountIDs) }

// EmailList splits the comma-separated allow-list, dropping blanks.
func (a AdminConfig) EmailList() []string { return splitList(a.Emails) }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoggingConfig controls the per-operation observability records. A record is
// emitted only when BOTH thresholds pass: the outcome class is at least
// MinSeverity (4xx = warn, 5xx = error) and the status is at least MinStatus.
// The defaults (warn, 400) log every 4xx and 5xx; "error" restricts to 5xx.
type LoggingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Level       string `mapstructure:"level"`
	MinSeverity string `mapstructure:"min_severity"` // info|warn|error
	MinStatus   int    `mapstructure:"min_status"`
}

type RateLimitConfig struct {
	RPS   int `mapstructure:"rps"`
	Burst int `mapstructure:"burst"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type IdentityConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	UserinfoPath string        `mapstructure:"userinfo_path"`
	TimeoutMs    int           `mapstructure:"timeout_ms"`
	Breaker      BreakerConfig `mapstructure:"breaker"`
}

type IngestConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	BatchWait time.Duration `mapstructure:"batch_wait"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies
// env overrides (CREDITGW_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (CREDITGW_*)
	v.SetEnvPrefix("CREDITGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
