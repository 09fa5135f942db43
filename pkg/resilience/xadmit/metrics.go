package xadmit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// 指标名称常量
const (
	// metricNameRequestsTotal 准入检查总数计数器
	metricNameRequestsTotal = "xadmit.requests.total"
	// metricNameRejectedTotal 被限流拒绝的请求计数器
	metricNameRejectedTotal = "xadmit.rejected.total"
	// metricNameFailOpenTotal 存储故障放行计数器
	metricNameFailOpenTotal = "xadmit.failopen.total"
	// metricNameCheckDuration 准入检查耗时直方图
	metricNameCheckDuration = "xadmit.check.duration"
)

// Metrics 准入指标收集器
// 提供 Counter 和 Histogram 类型的指标收集
type Metrics struct {
	meter         metric.Meter
	requestsTotal metric.Int64Counter
	rejectedTotal metric.Int64Counter
	failOpenTotal metric.Int64Counter
	checkDuration metric.Float64Histogram
}

// NewMetrics 创建指标收集器
// 如果 meterProvider 为 nil，返回 nil（不收集指标）
func NewMetrics(meterProvider metric.MeterProvider) (*Metrics, error) {
	if meterProvider == nil {
		return nil, nil
	}

	meter := meterProvider.Meter("xadmit",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	requestsTotal, err := meter.Int64Counter(
		metricNameRequestsTotal,
		metric.WithDescription("准入检查总数"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	rejectedTotal, err := meter.Int64Counter(
		metricNameRejectedTotal,
		metric.WithDescription("被限流拒绝的请求数"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	failOpenTotal, err := meter.Int64Counter(
		metricNameFailOpenTotal,
		metric.WithDescription("存储故障放行次数"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	checkDuration, err := meter.Float64Histogram(
		metricNameCheckDuration,
		metric.WithDescription("准入检查耗时"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0,
		),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		meter:         meter,
		requestsTotal: requestsTotal,
		rejectedTotal: rejectedTotal,
		failOpenTotal: failOpenTotal,
		checkDuration: checkDuration,
	}, nil
}

// RecordCheck 记录一次准入检查
// policy: 生效的策略名称
// allowed: 是否允许通过
// failedOpen: 是否因存储故障放行
// duration: 检查耗时
func (m *Metrics) RecordCheck(ctx context.Context, policy string, allowed, failedOpen bool, duration time.Duration) {
	if m == nil {
		return
	}

	// 使用 context.WithoutCancel 确保即使 ctx 被取消，指标仍能记录
	metricsCtx := context.WithoutCancel(ctx)

	attrs := []attribute.KeyValue{
		attribute.String("policy", policy),
		attribute.Bool("allowed", allowed),
		attribute.Bool("failed_open", failedOpen),
	}

	m.requestsTotal.Add(metricsCtx, 1, metric.WithAttributes(attrs...))
	if !allowed {
		m.rejectedTotal.Add(metricsCtx, 1, metric.WithAttributes(attrs...))
	}
	m.checkDuration.Record(metricsCtx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordFailOpen 记录一次存储故障放行
// reason: 故障归类（"timeout", "breaker_open", "network", "other"）
func (m *Metrics) RecordFailOpen(ctx context.Context, reason string) {
	if m == nil {
		return
	}

	metricsCtx := context.WithoutCancel(ctx)

	m.failOpenTotal.Add(metricsCtx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}
