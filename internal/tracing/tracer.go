// internal/tracing/tracer.go
package tracing

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"shopflow/internal/pkg/config"
)

// InitTracerProvider 创建上报到 Jaeger collector 的 TracerProvider 并注册为全局。
// 调用方负责在退出时调用 Shutdown 把缓冲中的 span 刷出去。
func InitTracerProvider(serviceName string, cfg config.JaegerConfig) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
	if err != nil {
		return nil, errors.Wrapf(err, "create jaeger exporter for %s", cfg.Endpoint)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(newSampler(cfg.SampleRatio)),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(serviceResource(serviceName)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(NewPropagator())

	log.Info().Str("service", serviceName).Str("endpoint", cfg.Endpoint).Float64("sample_ratio", cfg.SampleRatio).
		Msg("✅ tracing initialized")
	return tp, nil
}

// NewPropagator 在 HTTP 头和 kafka 消息头里传递 traceparent 与 baggage
func NewPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}

// newSampler: ratio 不在 (0,1) 内时全量采样；否则跟随上游决定，根 span 按比例采样
func newSampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func serviceResource(serviceName string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceNamespaceKey.String("shopflow"),
	)
}
