package conf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/leadhub/leadhub/internal/log"
	"github.com/leadhub/leadhub/internal/metrics"
	"github.com/leadhub/leadhub/internal/pkg/xcache"
	"github.com/leadhub/leadhub/internal/server"
	"github.com/leadhub/leadhub/internal/server/biz"
	"github.com/leadhub/leadhub/internal/server/cron"
	"github.com/leadhub/leadhub/internal/server/db"
)

const envPrefix = "LEADHUB"

type Config struct {
	fx.Out `yaml:"-" json:"-"`

	APIServer server.Config     `conf:"server" yaml:"server" json:"server"`
	DB        db.Config         `conf:"db" yaml:"db" json:"db"`
	Log       log.Config        `conf:"log" yaml:"log" json:"log"`
	Storage   biz.StorageConfig `conf:"storage" yaml:"storage" json:"storage"`
	Export    biz.ExportConfig  `conf:"export" yaml:"export" json:"export"`
	SMTP      biz.SMTPConfig    `conf:"smtp" yaml:"smtp" json:"smtp"`
	Outbox    biz.OutboxConfig  `conf:"outbox" yaml:"outbox" json:"outbox"`
	Cache     xcache.Config     `conf:"cache" yaml:"cache" json:"cache"`
	Cron      cron.Config       `conf:"cron" yaml:"cron" json:"cron"`
	Metrics   metrics.Config    `conf:"metrics" yaml:"metrics" json:"metrics"`
}

// Load reads config.yml from the usual locations, applies LEADHUB_* environment
// overrides and fills in defaults. A missing config file is not an error.
func Load() (Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./conf")
	v.AddConfigPath("/etc/leadhub/")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config

	err := v.Unmarshal(&config, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "conf"
	})
	if err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.name", "leadhub")
	v.SetDefault("server.base_path", "")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.cron_timeout", 30*time.Minute)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.trace.trace_header", "LH-Trace-Id")
	v.SetDefault("server.trace.request_header", "LH-Request-Id")
	v.SetDefault("server.cors.enabled", true)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("server.cors.allowed_headers", []string{"Content-Type", "Authorization", "LH-Trace-Id"})
	v.SetDefault("server.cors.exposed_headers", []string{"LH-Trace-Id", "LH-Request-Id"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.cors.max_age", 12*time.Hour)

	v.SetDefault("db.dialect", "sqlite3")
	v.SetDefault("db.dsn", "file:data/people.db?mode=ro")
	v.SetDefault("db.table", "people")
	v.SetDefault("db.debug", false)
	v.SetDefault("db.max_open_conns", 10)

	v.SetDefault("log.name", "leadhub")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file.filename", "logs/leadhub.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("storage.ledger_path", "data/access/access_logs.db")
	v.SetDefault("storage.user_list_dir", "data/user_lists")

	v.SetDefault("export.job_dir", "data/export_jobs")
	v.SetDefault("export.grant_batch_size", 1000)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.ssl", false)
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.from_name", "Lead Export")
	v.SetDefault("smtp.subject", "Your CSV Export")
	v.SetDefault("smtp.body", "Here is the export you requested.")
	v.SetDefault("smtp.timeout", 30*time.Second)

	v.SetDefault("outbox.type", "fs")
	v.SetDefault("outbox.directory", "data/outbox")
	v.SetDefault("outbox.s3.bucket_name", "")
	v.SetDefault("outbox.s3.endpoint", "")
	v.SetDefault("outbox.s3.region", "")
	v.SetDefault("outbox.s3.access_key", "")
	v.SetDefault("outbox.s3.secret_key", "")
	v.SetDefault("outbox.s3.path_style", false)
	v.SetDefault("outbox.gcs.bucket_name", "")
	v.SetDefault("outbox.gcs.credential", "")
	v.SetDefault("outbox.webdav.url", "")
	v.SetDefault("outbox.webdav.username", "")
	v.SetDefault("outbox.webdav.password", "")
	v.SetDefault("outbox.webdav.path", "/")
	v.SetDefault("outbox.webdav.insecure_skip_tls", false)

	v.SetDefault("cache.mode", "memory")
	v.SetDefault("cache.memory.expiration", 10*time.Minute)
	v.SetDefault("cache.memory.cleanup_interval", 20*time.Minute)
	v.SetDefault("cache.memory.max_entries", 100000)
	v.SetDefault("cache.redis.client.addr", "")
	v.SetDefault("cache.redis.client.url", "")
	v.SetDefault("cache.redis.client.username", "")
	v.SetDefault("cache.redis.client.password", "")
	v.SetDefault("cache.redis.client.tls", false)
	v.SetDefault("cache.redis.client.tls_insecure_skip_verify", false)
	v.SetDefault("cache.redis.expiration", 30*time.Minute)
	v.SetDefault("cache.redis.key_prefix", "leadhub:record:")

	v.SetDefault("cron.export", "")
	v.SetDefault("cron.checkpoint", "")
	v.SetDefault("cron.timeout", 30*time.Minute)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.interval", time.Minute)
	v.SetDefault("metrics.exporter.type", "stdout")
	v.SetDefault("metrics.exporter.endpoint", "")
	v.SetDefault("metrics.exporter.insecure", false)
}
