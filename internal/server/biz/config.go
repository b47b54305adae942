package biz

import (
	"math"
	"time"
)

// StorageConfig locates the ledger database and the per-user list databases.
type StorageConfig struct {
	LedgerPath  string `conf:"ledger_path" yaml:"ledger_path" json:"ledger_path"`
	UserListDir string `conf:"user_list_dir" yaml:"user_list_dir" json:"user_list_dir"`
}

// ExportConfig configures the durable export queue.
type ExportConfig struct {
	// JobDir holds the pending and failed lanes.
	JobDir string `conf:"job_dir" yaml:"job_dir" json:"job_dir"`

	// GrantBatchSize bounds how many ids one full-tier grant writes at once.
	GrantBatchSize int `conf:"grant_batch_size" yaml:"grant_batch_size" json:"grant_batch_size"`
}

// SMTPConfig configures email delivery. When Host is empty, exports are
// written to the outbox instead of being sent.
type SMTPConfig struct {
	Host     string        `conf:"host" yaml:"host" json:"host"`
	Port     int           `conf:"port" yaml:"port" json:"port"`
	Username string        `conf:"username" yaml:"username" json:"username"`
	Password string        `conf:"password" yaml:"password" json:"-"`
	SSL      bool          `conf:"ssl" yaml:"ssl" json:"ssl"`
	From     string        `conf:"from" yaml:"from" json:"from"`
	FromName string        `conf:"from_name" yaml:"from_name" json:"from_name"`
	Subject  string        `conf:"subject" yaml:"subject" json:"subject"`
	Body     string        `conf:"body" yaml:"body" json:"body"`
	Timeout  time.Duration `conf:"timeout" yaml:"timeout" json:"timeout"`
}

const (
	OutboxTypeFs     = "fs"
	OutboxTypeS3     = "s3"
	OutboxTypeGCS    = "gcs"
	OutboxTypeWebDAV = "webdav"
)

// OutboxConfig selects where undelivered exports are written.
type OutboxConfig struct {
	Type      string       `conf:"type" yaml:"type" json:"type"`
	Directory string       `conf:"directory" yaml:"directory" json:"directory"`
	S3        S3Config     `conf:"s3" yaml:"s3" json:"s3"`
	GCS       GCSConfig    `conf:"gcs" yaml:"gcs" json:"gcs"`
	WebDAV    WebDAVConfig `conf:"webdav" yaml:"webdav" json:"webdav"`
}

type S3Config struct {
	BucketName string `conf:"bucket_name" yaml:"bucket_name" json:"bucket_name"`
	Endpoint   string `conf:"endpoint" yaml:"endpoint" json:"endpoint"`
	Region     string `conf:"region" yaml:"region" json:"region"`
	AccessKey  string `conf:"access_key" yaml:"access_key" json:"access_key"`
	SecretKey  string `conf:"secret_key" yaml:"secret_key" json:"-"`
	PathStyle  bool   `conf:"path_style" yaml:"path_style" json:"path_style"`
}

type GCSConfig struct {
	BucketName string `conf:"bucket_name" yaml:"bucket_name" json:"bucket_name"`

	// Credential is the service account key JSON.
	Credential string `conf:"credential" yaml:"credential" json:"-"`
}

type WebDAVConfig struct {
	URL             string `conf:"url" yaml:"url" json:"url"`
	Username        string `conf:"username" yaml:"username" json:"username"`
	Password        string `conf:"password" yaml:"password" json:"-"`
	Path            string `conf:"path" yaml:"path" json:"path"`
	InsecureSkipTLS bool   `conf:"insecure_skip_tls" yaml:"insecure_skip_tls" json:"insecure_skip_tls"`
}

const (
	defaultGrantBatchSize = 1000
	showListPageSize      = 50
	maxShowListPage       = math.MaxInt32 / showListPageSize
)
