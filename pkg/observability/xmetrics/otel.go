package xmetrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultInstrumentationName = "github.com/omeyang/gatekit/pkg/observability/xmetrics"
	unknownComponent           = "unknown"
	unknownOperation           = "unknown"
)

type otelConfig struct {
	instrumentationName string
	tracerProvider      trace.TracerProvider
}

// Option 定义 OTel Observer 的配置选项。
type Option func(*otelConfig)

// WithInstrumentationName 设置 OTel instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithTracerProvider 设置 TracerProvider。
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.tracerProvider = provider
		}
	}
}

// NewOTelObserver 创建基于 OpenTelemetry 追踪的 Observer。
//
// 计数器/直方图类指标不在 Observer 职责内，由业务包
// 直接通过 metric.MeterProvider 收集（低基数、字段可控）。
func NewOTelObserver(opts ...Option) (Observer, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		tracerProvider:      otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(cfg.instrumentationName)
	if tracer == nil {
		return nil, fmt.Errorf("xmetrics: tracer provider returned nil tracer")
	}

	return &otelObserver{tracer: tracer}, nil
}

type otelObserver struct {
	tracer trace.Tracer
}

// Start 开始一次观测跨度。
func (o *otelObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	component := opts.Component
	if component == "" {
		component = unknownComponent
	}
	operation := opts.Operation
	if operation == "" {
		operation = unknownOperation
	}

	attrs := make([]attribute.KeyValue, 0, 2+len(opts.Attrs))
	attrs = append(attrs,
		attribute.String("component", component),
		attribute.String("operation", operation),
	)
	attrs = append(attrs, attrsToOTel(opts.Attrs)...)

	ctx, span := o.tracer.Start(
		ctx,
		component+"."+operation,
		trace.WithSpanKind(mapSpanKind(opts.Kind)),
		trace.WithAttributes(attrs...),
	)

	return ctx, &otelSpan{span: span, start: time.Now()}
}

type otelSpan struct {
	span  trace.Span
	start time.Time
}

// End 结束跨度并记录结果状态。
func (s *otelSpan) End(result Result) {
	s.span.SetAttributes(attrsToOTel(result.Attrs)...)
	s.span.SetAttributes(attribute.Float64("duration_seconds", time.Since(s.start).Seconds()))

	if result.Err != nil {
		s.span.RecordError(result.Err)
		s.span.SetStatus(codes.Error, result.Err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}

	s.span.End()
}

// mapSpanKind 将 Kind 映射为 OTel SpanKind。
func mapSpanKind(k Kind) trace.SpanKind {
	switch k {
	case KindServer:
		return trace.SpanKindServer
	case KindClient:
		return trace.SpanKindClient
	default:
		return trace.SpanKindInternal
	}
}

// attrsToOTel 将 Attr 转换为 OTel 属性。
// 未知类型回退为 fmt.Sprint 字符串，保证属性不丢失。
func attrsToOTel(attrs []Attr) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}

	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		if a.Key == "" {
			continue
		}
		switch v := a.Value.(type) {
		case string:
			out = append(out, attribute.String(a.Key, v))
		case int:
			out = append(out, attribute.Int(a.Key, v))
		case int64:
			out = append(out, attribute.Int64(a.Key, v))
		case float64:
			out = append(out, attribute.Float64(a.Key, v))
		case bool:
			out = append(out, attribute.Bool(a.Key, v))
		default:
			out = append(out, attribute.String(a.Key, fmt.Sprint(v)))
		}
	}
	return out
}

var _ Observer = (*otelObserver)(nil)
