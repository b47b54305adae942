package biz

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/afero/gcsfs"
	"github.com/studio-b12/gowebdav"
	"golang.org/x/oauth2/google"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscredentials "github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3fs "github.com/looplj/afero-s3"
	googleoption "google.golang.org/api/option"

	"github.com/leadhub/leadhub/internal/log"
)

const defaultOutboxDir = "data/outbox"

// NewOutbox builds the mailer used when exports cannot be emailed: files land
// in a local directory, an S3 or GCS bucket, or a WebDAV collection.
func NewOutbox(ctx context.Context, cfg OutboxConfig) (Mailer, error) {
	switch cfg.Type {
	case "", OutboxTypeFs:
		dir := lo.CoalesceOrEmpty(cfg.Directory, defaultOutboxDir)

		osFs := afero.NewOsFs()
		if err := osFs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create outbox dir: %w", err)
		}

		return NewOutboxMailer(afero.NewBasePathFs(osFs, dir)), nil
	case OutboxTypeS3:
		fs, err := newS3Fs(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 outbox: %w", err)
		}

		return NewOutboxMailer(withDirectory(fs, cfg.Directory)), nil
	case OutboxTypeGCS:
		fs, err := newGCSFs(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("failed to create gcs outbox: %w", err)
		}

		return NewOutboxMailer(withDirectory(fs, cfg.Directory)), nil
	case OutboxTypeWebDAV:
		return NewWebDAVOutbox(cfg.WebDAV)
	default:
		return nil, fmt.Errorf("unsupported outbox type: %s", cfg.Type)
	}
}

func withDirectory(fs afero.Fs, dir string) afero.Fs {
	if dir == "" {
		return fs
	}

	return afero.NewBasePathFs(fs, dir)
}

func newS3Fs(ctx context.Context, cfg S3Config) (afero.Fs, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("s3 bucket_name is required")
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" {
		credProvider := awscredentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(credProvider))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = lo.ToPtr(cfg.Endpoint)
		}

		o.UsePathStyle = cfg.PathStyle
	})

	return s3fs.NewFsFromClient(cfg.BucketName, client), nil
}

func newGCSFs(ctx context.Context, cfg GCSConfig) (afero.Fs, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket_name is required")
	}

	if cfg.Credential == "" {
		return nil, errors.New("gcs credential is required")
	}

	creds, err := google.CredentialsFromJSON(ctx, []byte(cfg.Credential), storage.ScopeReadWrite)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GCP credentials: %w", err)
	}

	client, err := storage.NewClient(ctx, googleoption.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	fs, err := gcsfs.NewGcsFSFromClient(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS filesystem: %w", err)
	}

	return afero.NewBasePathFs(fs, cfg.BucketName), nil
}

func outboxFileName(filename string) string {
	return fmt.Sprintf("%s-%s", uuid.NewString(), filepath.Base(filename))
}

// OutboxMailer writes each attachment to a file instead of sending it.
type OutboxMailer struct {
	fs afero.Fs
}

func NewOutboxMailer(fs afero.Fs) *OutboxMailer {
	return &OutboxMailer{fs: fs}
}

func (m *OutboxMailer) Send(ctx context.Context, to string, attachment []byte, filename string) error {
	name := outboxFileName(filename)

	if err := afero.WriteFile(m.fs, name, attachment, 0o644); err != nil {
		return fmt.Errorf("write outbox file: %w", err)
	}

	log.Info(ctx, "export written to outbox",
		log.String("to", to),
		log.String("file", name),
		log.Int("bytes", len(attachment)),
	)

	return nil
}

// WebDAVOutbox uploads each attachment into a WebDAV collection.
type WebDAVOutbox struct {
	client *gowebdav.Client
	dir    string
}

func NewWebDAVOutbox(cfg WebDAVConfig) (*WebDAVOutbox, error) {
	if cfg.URL == "" {
		return nil, errors.New("webdav url is required")
	}

	client := gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)
	if cfg.InsecureSkipTLS {
		//nolint:gosec // opt-in through config for self-signed servers.
		client.SetTransport(&http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		})
	}

	dir := cfg.Path
	if dir == "" {
		dir = "/"
	}

	if !strings.HasPrefix(dir, "/") {
		dir = "/" + dir
	}

	return &WebDAVOutbox{
		client: client,
		dir:    dir,
	}, nil
}

func (o *WebDAVOutbox) Send(ctx context.Context, to string, attachment []byte, filename string) error {
	if o.dir != "/" {
		if err := o.client.MkdirAll(o.dir, 0o755); err != nil {
			return fmt.Errorf("create webdav dir %s: %w", o.dir, err)
		}
	}

	fullPath := path.Join(o.dir, outboxFileName(filename))

	if err := o.client.Write(fullPath, attachment, 0o644); err != nil {
		return fmt.Errorf("upload %s to webdav: %w", fullPath, err)
	}

	log.Info(ctx, "export uploaded to webdav outbox",
		log.String("to", to),
		log.String("path", fullPath),
		log.Int("bytes", len(attachment)),
	)

	return nil
}
