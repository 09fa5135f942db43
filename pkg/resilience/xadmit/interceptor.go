package xadmit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/omeyang/gatekit/pkg/observability/xlog"
	"github.com/omeyang/gatekit/pkg/observability/xmetrics"
)

// =============================================================================
// 准入控制器
// =============================================================================

// compiledPolicy 注册时编译好的策略: 默认值已填充,
// 自定义表达式已预编译
type compiledPolicy struct {
	Policy
	tmpl *keyTemplate
}

// Admitter 请求准入控制器。
//
// 持有策略注册表、路由策略表和桶存储，是限流决策的唯一入口。
// 并发安全: 构造后所有字段只读。
type Admitter struct {
	store    Store
	policies map[string]*compiledPolicy
	handlers map[string]string
	groups   []Binding
	routes   *routeTable
	fallback string
	prefix   string
	enabled  bool
	logger   xlog.Logger
	observer xmetrics.Observer
	metrics  *Metrics
}

// New 创建准入控制器。
//
// 所有策略与绑定在此一次校验并编译，配置错误立即返回,
// 不延迟到请求路径。
func New(store Store, opts ...Option) (*Admitter, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	cfg := o.config.withDefaults()

	logger := o.logger
	if logger == nil {
		logger = xlog.Nop()
	}
	observer := o.observer
	if observer == nil {
		observer = xmetrics.NoopObserver{}
	}
	metrics, err := NewMetrics(o.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("xadmit: init metrics: %w", err)
	}

	a := &Admitter{
		policies: make(map[string]*compiledPolicy, len(cfg.Policies)),
		handlers: make(map[string]string, len(cfg.Handlers)),
		groups:   cfg.Groups,
		routes:   newRouteTable(),
		fallback: cfg.Default,
		prefix:   cfg.KeyPrefix,
		enabled:  cfg.IsEnabled(),
		logger:   logger,
		observer: observer,
		metrics:  metrics,
	}

	for _, p := range cfg.Policies {
		cp := &compiledPolicy{Policy: p.withDefaults()}
		if cp.KeyStrategy == StrategyCustom {
			tmpl, err := parseKeyTemplate(cp.KeyExpr)
			if err != nil {
				return nil, fmt.Errorf("policy %q: %w", cp.Name, err)
			}
			cp.tmpl = tmpl
		}
		a.policies[cp.Name] = cp
	}

	for _, r := range cfg.Routes {
		if err := a.routes.add(r.Pattern, r.Policy); err != nil {
			return nil, err
		}
	}
	for _, b := range cfg.Handlers {
		a.handlers[b.Path] = b.Policy
	}

	a.store = newFailOpenStore(store, cfg.StoreTimeout, logger, metrics)
	return a, nil
}

// =============================================================================
// 策略解析
// =============================================================================

// resolvePolicy 按优先级为路径解析生效策略:
// 精确绑定 > 前缀分组 > 通配路由表 > 默认策略。
// 都未命中返回 false，表示无条件放行。
func (a *Admitter) resolvePolicy(path string) (*compiledPolicy, bool) {
	if name, ok := a.handlers[path]; ok {
		return a.policies[name], true
	}
	for _, g := range a.groups {
		if strings.HasPrefix(path, g.Path) {
			return a.policies[g.Policy], true
		}
	}
	if name, ok := a.routes.resolve(path); ok {
		return a.policies[name], true
	}
	if a.fallback != "" {
		return a.policies[a.fallback], true
	}
	return nil, false
}

// PolicyFor 返回路径的生效策略名。
// 第二个返回值为 false 表示该路径不受限流约束
func (a *Admitter) PolicyFor(path string) (string, bool) {
	cp, ok := a.resolvePolicy(path)
	if !ok {
		return "", false
	}
	return cp.Name, true
}

// bucketKey 派生完整桶键: <prefix>:<policy>:<strategy>:<value>[:<route>]
func (a *Admitter) bucketKey(req Request, cp *compiledPolicy) string {
	return a.prefix + ":" + deriveKey(req, cp.Policy, cp.tmpl)
}

// =============================================================================
// 准入检查
// =============================================================================

// Check 对请求执行准入检查。
//
// 解析策略、派生键并扣减一个令牌。无策略命中或总开关关闭时
// 直接放行，返回的 Decision.Limit 为 0。
func (a *Admitter) Check(ctx context.Context, req Request) *Decision {
	if !a.enabled {
		return &Decision{Allowed: true}
	}
	cp, ok := a.resolvePolicy(req.Path)
	if !ok {
		return &Decision{Allowed: true}
	}
	return a.consume(ctx, req, cp)
}

// Enforce 按指定策略对请求执行准入检查。
//
// 非 HTTP 调用点的入口: 放行返回 nil，拒绝返回 *QuotaError。
func (a *Admitter) Enforce(ctx context.Context, req Request, policyName string) error {
	if !a.enabled {
		return nil
	}
	cp, ok := a.policies[policyName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, policyName)
	}

	d := a.consume(ctx, req, cp)
	if d.Allowed {
		return nil
	}
	return &QuotaError{
		Key:        d.Key,
		Policy:     cp.Name,
		Limit:      d.Limit,
		RetryAfter: d.RetryAfter,
		Message:    cp.ExceededMessage,
	}
}

// consume 派生键并扣减一个令牌
func (a *Admitter) consume(ctx context.Context, req Request, cp *compiledPolicy) *Decision {
	start := time.Now()
	key := a.bucketKey(req, cp)

	ctx, span := xmetrics.Start(ctx, a.observer, xmetrics.SpanOptions{
		Component: "xadmit",
		Operation: "try_consume",
		Kind:      xmetrics.KindInternal,
		Attrs: []xmetrics.Attr{
			xmetrics.String("policy", cp.Name),
			xmetrics.String("key", key),
		},
	})

	// fail-open 装饰器保证 TryConsume 不返回存储错误
	res, err := a.store.TryConsume(ctx, key, cp.Policy, 1)
	if err != nil {
		res = ConsumeResult{Allowed: true, Capacity: cp.Capacity, FailedOpen: true}
	}

	span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{
		xmetrics.Bool("allowed", res.Allowed),
		xmetrics.Bool("failed_open", res.FailedOpen),
	}})
	a.metrics.RecordCheck(ctx, cp.Name, res.Allowed, res.FailedOpen, time.Since(start))

	if !res.Allowed {
		attrs := []slog.Attr{
			slog.String("policy", cp.Name),
			slog.String("key", key),
			xlog.Method(req.Method),
			xlog.Path(req.Path),
			xlog.StatusCode(cp.ExceededStatus),
			xlog.Duration(time.Since(start)),
			slog.Int64("retry_after_seconds", res.RetryAfterSeconds()),
		}
		if id, ok := RequestIDFromContext(ctx); ok {
			attrs = append(attrs, xlog.RequestID(id))
		}
		a.logger.Warn(ctx, "request rejected by rate limit", attrs...)
	}

	return &Decision{
		Allowed:    res.Allowed,
		Policy:     cp.Policy,
		Key:        key,
		Limit:      res.Capacity,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
		FailedOpen: res.FailedOpen,
	}
}

// =============================================================================
// 运维操作
// =============================================================================

// Status 查询指定键在指定策略下的桶状态，不扣减令牌。
// key 是不含命名空间前缀的派生键，如 "standard:ip:10.0.0.1"。
func (a *Admitter) Status(ctx context.Context, key, policyName string) (BucketStatus, error) {
	cp, ok := a.policies[policyName]
	if !ok {
		return BucketStatus{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, policyName)
	}
	return a.store.Status(ctx, a.prefix+":"+key, cp.Policy)
}

// ResetKey 删除指定键的桶状态，下一次访问按满桶重新初始化。
// key 是不含命名空间前缀的派生键，如 "standard:ip:10.0.0.1"。
func (a *Admitter) ResetKey(ctx context.Context, key string) error {
	return a.store.Reset(ctx, a.prefix+":"+key)
}

// Close 释放底层存储资源
func (a *Admitter) Close() error {
	return a.store.Close()
}
