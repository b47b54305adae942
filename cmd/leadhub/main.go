package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/andreazorzetto/yh/highlight"
	"github.com/hokaccha/go-prettyjson"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"gopkg.in/yaml.v3"

	sdk "go.opentelemetry.io/otel/sdk/metric"

	"github.com/leadhub/leadhub/conf"
	"github.com/leadhub/leadhub/internal/build"
	"github.com/leadhub/leadhub/internal/log"
	"github.com/leadhub/leadhub/internal/metrics"
	"github.com/leadhub/leadhub/internal/pkg/xcache"
	"github.com/leadhub/leadhub/internal/server"
	"github.com/leadhub/leadhub/internal/server/biz"
	"github.com/leadhub/leadhub/internal/server/db"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			handleConfigCommand()
			return
		case "version", "--version", "-v":
			showVersion()
			return
		case "help", "--help", "-h":
			showHelp()
			return
		case "build-info":
			showBuildInfo()
			return
		}
	}

	startServer()
}

func showBuildInfo() {
	fmt.Println(build.GetBuildInfo())
}

type logger struct{}

func (l *logger) LogEvent(event fxevent.Event) {
	log.Debug(context.Background(), "fx event", log.Any("event", event))
}

func startServer() {
	server.Run(
		fx.WithLogger(func() fxevent.Logger {
			return &logger{}
		}),
		fx.Provide(conf.Load),
		fx.Provide(metrics.NewProvider),
		fx.Invoke(func(lc fx.Lifecycle, server *server.Server, provider *sdk.MeterProvider) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if provider != nil {
						return metrics.SetupMetrics(provider, server.Config.Name)
					}

					return nil
				},
				OnStop: func(ctx context.Context) error {
					if provider != nil {
						return provider.Shutdown(ctx)
					}

					return nil
				},
			})
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						err := server.Run()
						if err != nil {
							log.Error(context.Background(), "server run error:", log.Cause(err))
							os.Exit(1)
						}
					}()

					return nil
				},
				OnStop: func(ctx context.Context) error {
					err := server.Shutdown(ctx)
					if err != nil {
						log.Error(context.Background(), "server shutdown error:", log.Cause(err))
					}

					return nil
				},
			})
		}),
	)
}

func handleConfigCommand() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: leadhub config <preview|validate|get>")
		os.Exit(1)
	}

	switch os.Args[2] {
	case "preview":
		configPreview()
	case "validate":
		configValidate()
	case "get":
		configGet()
	default:
		fmt.Println("Usage: leadhub config <preview|validate|get>")
		os.Exit(1)
	}
}

func configPreview() {
	format := "yml"

	for i := 3; i < len(os.Args); i++ {
		if os.Args[i] == "--format" || os.Args[i] == "-f" {
			if i+1 < len(os.Args) {
				format = os.Args[i+1]
			}
		}
	}

	config, err := conf.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var output string

	switch format {
	case "json":
		b, err := prettyjson.Marshal(config)
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}

		output = string(b)
	case "yml", "yaml":
		b, err := yaml.Marshal(config)
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}

		output, err = highlight.Highlight(bytes.NewBuffer(b))
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Printf("Unsupported format: %s\n", format)
		os.Exit(1)
	}

	fmt.Println(output)
}

func configValidate() {
	config, err := conf.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	errors := validateConfig(config)

	if len(errors) == 0 {
		fmt.Println("Configuration is valid!")
		return
	}

	fmt.Println("Configuration validation failed:")

	for _, err := range errors {
		fmt.Printf("  - %s\n", err)
	}

	os.Exit(1)
}

func validateConfig(config conf.Config) []string {
	var errors []string

	if config.APIServer.Port <= 0 || config.APIServer.Port > 65535 {
		errors = append(errors, "server.port must be between 1 and 65535")
	}

	if config.DB.DSN == "" {
		errors = append(errors, "db.dsn cannot be empty")
	}

	if config.DB.Table != "" && !db.ValidTableName(config.DB.Table) {
		errors = append(errors, "db.table must be a plain SQL identifier")
	}

	if config.Log.Name == "" {
		errors = append(errors, "log.name cannot be empty")
	}

	if config.APIServer.CORS.Enabled && len(config.APIServer.CORS.AllowedOrigins) == 0 {
		errors = append(errors, "server.cors.allowed_origins cannot be empty when CORS is enabled")
	}

	if config.Storage.LedgerPath == "" {
		errors = append(errors, "storage.ledger_path cannot be empty")
	}

	if config.Storage.UserListDir == "" {
		errors = append(errors, "storage.user_list_dir cannot be empty")
	}

	if config.Export.JobDir == "" {
		errors = append(errors, "export.job_dir cannot be empty")
	}

	if config.SMTP.Host != "" && config.SMTP.From == "" && config.SMTP.Username == "" {
		errors = append(errors, "smtp.from or smtp.username is required when smtp.host is set")
	}

	switch config.Outbox.Type {
	case "", biz.OutboxTypeFs:
	case biz.OutboxTypeS3:
		if config.Outbox.S3.BucketName == "" {
			errors = append(errors, "outbox.s3.bucket_name cannot be empty when outbox.type is s3")
		}
	case biz.OutboxTypeGCS:
		if config.Outbox.GCS.BucketName == "" || config.Outbox.GCS.Credential == "" {
			errors = append(errors, "outbox.gcs.bucket_name and outbox.gcs.credential are required when outbox.type is gcs")
		}
	case biz.OutboxTypeWebDAV:
		if config.Outbox.WebDAV.URL == "" {
			errors = append(errors, "outbox.webdav.url cannot be empty when outbox.type is webdav")
		}
	default:
		errors = append(errors, "outbox.type must be one of fs, s3, gcs, webdav")
	}

	switch config.Cache.Mode {
	case "", xcache.ModeNone, xcache.ModeMemory:
	case xcache.ModeRedis, xcache.ModeTwoLevel:
		if !config.Cache.Redis.Client.Configured() {
			errors = append(errors, "cache.redis.client.addr or cache.redis.client.url is required for redis cache modes")
		}
	default:
		errors = append(errors, "cache.mode must be one of none, memory, redis, two-level")
	}

	return errors
}

func configGet() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: leadhub config get <key>")
		fmt.Println("")
		fmt.Println("Available keys:")
		fmt.Println("  server.port            Server port number")
		fmt.Println("  server.name            Server name")
		fmt.Println("  db.dialect             Record database dialect")
		fmt.Println("  db.dsn                 Record database DSN")
		fmt.Println("  storage.ledger_path    Access ledger database path")
		fmt.Println("  storage.user_list_dir  Per-user list directory")
		fmt.Println("  export.job_dir         Export job directory")
		os.Exit(1)
	}

	key := os.Args[3]

	config, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var value any

	switch key {
	case "server.port":
		value = config.APIServer.Port
	case "server.name":
		value = config.APIServer.Name
	case "server.base_path":
		value = config.APIServer.BasePath
	case "server.debug":
		value = config.APIServer.Debug
	case "db.dialect":
		value = config.DB.Dialect
	case "db.dsn":
		value = config.DB.DSN
	case "db.table":
		value = config.DB.Table
	case "storage.ledger_path":
		value = config.Storage.LedgerPath
	case "storage.user_list_dir":
		value = config.Storage.UserListDir
	case "export.job_dir":
		value = config.Export.JobDir
	case "smtp.host":
		value = config.SMTP.Host
	case "cron.export":
		value = config.Cron.Export
	case "cron.checkpoint":
		value = config.Cron.Checkpoint
	case "outbox.type":
		value = config.Outbox.Type
	case "cache.mode":
		value = config.Cache.Mode
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}

	fmt.Println(value)
}

func showHelp() {
	fmt.Println("LeadHub contact access service")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  leadhub                    Start the server (default)")
	fmt.Println("  leadhub config preview     Preview configuration")
	fmt.Println("  leadhub config validate    Validate configuration")
	fmt.Println("  leadhub config get <key>   Get a specific config value")
	fmt.Println("  leadhub version            Show version")
	fmt.Println("  leadhub build-info         Show build information")
	fmt.Println("  leadhub help               Show this help message")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -f, --format FORMAT       Output format for config preview (yml, json)")
}

func showVersion() {
	fmt.Println(build.Version)
}
