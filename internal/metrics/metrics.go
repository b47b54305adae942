package metrics

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdk "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/leadhub/leadhub/internal/build"
)

type Config struct {
	Enabled  bool           `conf:"enabled" yaml:"enabled" json:"enabled"`
	Interval time.Duration  `conf:"interval" yaml:"interval" json:"interval"`
	Exporter ExporterConfig `conf:"exporter" yaml:"exporter" json:"exporter"`
}

type ExporterConfig struct {
	// Type is "stdout" or "otlphttp".
	Type     string `conf:"type" yaml:"type" json:"type"`
	Endpoint string `conf:"endpoint" yaml:"endpoint" json:"endpoint"`
	Insecure bool   `conf:"insecure" yaml:"insecure" json:"insecure"`
}

// NewProvider returns nil when metrics are disabled.
func NewProvider(cfg Config) (*sdk.MeterProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	exporter, err := newExporter(cfg.Exporter)
	if err != nil {
		return nil, err
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	res := resource.NewSchemaless(
		attribute.String("service.version", build.Version),
		attribute.String("service.commit", build.Commit),
	)

	return sdk.NewMeterProvider(
		sdk.WithResource(res),
		sdk.WithReader(sdk.NewPeriodicReader(exporter, sdk.WithInterval(interval))),
	), nil
}

func newExporter(cfg ExporterConfig) (sdk.Exporter, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "stdout":
		return stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
	case "otlphttp", "otlp":
		var opts []otlpmetrichttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}

		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}

		return otlpmetrichttp.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported metrics exporter: %s", cfg.Type)
	}
}

// SetupMetrics installs provider as the global meter provider and registers
// the process uptime gauge.
func SetupMetrics(provider *sdk.MeterProvider, serviceName string) error {
	if provider == nil {
		return nil
	}

	otel.SetMeterProvider(provider)

	meter := provider.Meter("github.com/leadhub/leadhub/internal/metrics")

	_, err := meter.Float64ObservableGauge("leadhub.uptime",
		metric.WithDescription("Seconds since the process started"),
		metric.WithUnit("s"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(time.Since(build.StartTime).Seconds(),
				metric.WithAttributes(attribute.String("service.name", serviceName)),
			)

			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("register uptime gauge: %w", err)
	}

	return nil
}
