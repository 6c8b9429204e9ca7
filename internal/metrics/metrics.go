// Package metrics содержит реестр счётчиков процесса и узкие интерфейсы для компонентов.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Registry это реестр счётчиков OpenTelemetry, который отдаётся в формате Prometheus
// вместе со стандартными метриками процесса и рантайма Go.
type Registry struct {
	prom     *prometheus.Registry
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
}

// NewRegistry создаёт реестр со своей областью инструментирования.
func NewRegistry(scope string) (*Registry, error) {
	prom := prometheus.NewRegistry()
	if err := prom.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	if err := prom.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(prom),
		otelprom.WithoutScopeInfo(),
		otelprom.WithoutTargetInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	return &Registry{
		prom:     prom,
		provider: provider,
		meter:    provider.Meter(scope),
	}, nil
}

// Counter это монотонный счётчик с метками.
type Counter struct {
	inst metric.Int64Counter
}

// NewCounter регистрирует счётчик.
func (r *Registry) NewCounter(name, description string) (*Counter, error) {
	inst, err := r.meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", name, err)
	}
	return &Counter{inst: inst}, nil
}

// Inc увеличивает счётчик на единицу.
func (c *Counter) Inc(labels ...attribute.KeyValue) {
	c.inst.Add(context.Background(), 1, metric.WithAttributes(labels...))
}

// Handler отдаёт метрики реестра для сборщика Prometheus.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{})
}

// Shutdown освобождает ресурсы провайдера метрик.
func (r *Registry) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}
