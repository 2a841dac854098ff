package tracing

import (
	"context"
	"testing"
	"time"
)

func shutdownProvider(t *testing.T, p *Provider) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{ServiceName: "foryou-api", Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if provider == nil {
		t.Fatal("provider is nil")
	}
	if provider.IsEnabled() {
		t.Error("IsEnabled() = true, want false")
	}
}

func TestNewProvider_MissingServiceName(t *testing.T) {
	if _, err := NewProvider(Config{Enabled: true, SamplingRate: 0.1}); err == nil {
		t.Fatal("NewProvider accepted an empty service name")
	}
}

func TestNewProvider_InvalidSamplingRate(t *testing.T) {
	for _, rate := range []float64{-0.1, 1.5} {
		cfg := Config{ServiceName: "foryou-api", Enabled: true, SamplingRate: rate}
		if _, err := NewProvider(cfg); err == nil {
			t.Errorf("NewProvider accepted sampling rate %g", rate)
		}
	}
}

func TestNewProvider_Exporters(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "otlp-http",
			cfg: Config{
				ServiceName:  "foryou-api",
				Enabled:      true,
				Environment:  "test",
				ExporterType: "otlp-http",
				OTLPEndpoint: "localhost:4318",
				SamplingRate: 0.1,
				InsecureMode: true,
			},
		},
		{
			name: "otlp-grpc full sampling",
			cfg: Config{
				ServiceName:  "foryou-api",
				Enabled:      true,
				Environment:  "test",
				ExporterType: "otlp-grpc",
				OTLPEndpoint: "localhost:4317",
				SamplingRate: 1.0,
				InsecureMode: true,
			},
		},
		{
			name: "default exporter zero sampling",
			cfg: Config{
				ServiceName:  "foryou-api",
				Enabled:      true,
				Environment:  "test",
				SamplingRate: 0.0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg)
			if err != nil {
				t.Fatalf("NewProvider: %v", err)
			}
			defer shutdownProvider(t, provider)

			if !provider.IsEnabled() {
				t.Error("IsEnabled() = false, want true")
			}
		})
	}
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	cfg := Config{
		ServiceName:  "foryou-api",
		Enabled:      true,
		ExporterType: "jaeger-thrift",
		SamplingRate: 0.1,
	}
	if _, err := NewProvider(cfg); err == nil {
		t.Fatal("NewProvider accepted an unsupported exporter type")
	}
}

func TestProvider_Tracer(t *testing.T) {
	provider, err := NewProvider(Config{
		ServiceName:  "foryou-api",
		Enabled:      true,
		Environment:  "test",
		ExporterType: "otlp-http",
		SamplingRate: 1.0,
		InsecureMode: true,
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	defer shutdownProvider(t, provider)

	tracer := provider.Tracer("feed-pipeline")
	if tracer == nil {
		t.Fatal("Tracer returned nil")
	}

	_, span := tracer.Start(context.Background(), "feed.sourcing")
	if span == nil {
		t.Fatal("Start returned a nil span")
	}
	span.End()
}

func TestProvider_Shutdown_Uninitialized(t *testing.T) {
	// A zero Provider has no tracer provider behind it. Shutdown must
	// still be safe to call.
	shutdownProvider(t, &Provider{})
}
