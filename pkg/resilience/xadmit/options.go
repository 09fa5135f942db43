package xadmit

import (
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/gatekit/pkg/observability/xlog"
	"github.com/omeyang/gatekit/pkg/observability/xmetrics"
)

// options 内部配置结构
type options struct {
	config        Config
	logger        xlog.Logger
	observer      xmetrics.Observer
	meterProvider metric.MeterProvider
	initErr       error // 配置加载阶段的错误，延迟到 New 时返回
}

// validate 验证选项并返回初始化阶段收集的错误
// 设计决策: Option 函数签名不支持返回错误，因此将配置加载错误
// 暂存在 initErr 中，在 New 构造时统一检查。
func (o *options) validate() error {
	if o.initErr != nil {
		return o.initErr
	}
	return o.config.Validate()
}

// Option 配置选项函数
type Option func(*options)

// defaultOptions 返回默认配置
func defaultOptions() *options {
	return &options{
		config: DefaultConfig(),
	}
}

// WithPolicies 注册限流策略
func WithPolicies(policies ...Policy) Option {
	return func(o *options) {
		o.config.Policies = append(o.config.Policies, policies...)
	}
}

// WithDefaultPolicy 设置默认策略。
// 未命中任何绑定的请求使用默认策略，不设置则无条件放行
func WithDefaultPolicy(name string) Option {
	return func(o *options) {
		o.config.Default = name
	}
}

// WithRoute 追加一条通配路由绑定，按注册顺序匹配
func WithRoute(pattern, policy string) Option {
	return func(o *options) {
		o.config.Routes = append(o.config.Routes, RouteRule{Pattern: pattern, Policy: policy})
	}
}

// WithHandlerPolicy 追加一条调用点级精确路径绑定，优先级最高
func WithHandlerPolicy(path, policy string) Option {
	return func(o *options) {
		o.config.Handlers = append(o.config.Handlers, Binding{Path: path, Policy: policy})
	}
}

// WithGroupPolicy 追加一条分组级前缀绑定，优先级次于精确绑定
func WithGroupPolicy(prefix, policy string) Option {
	return func(o *options) {
		o.config.Groups = append(o.config.Groups, Binding{Path: prefix, Policy: policy})
	}
}

// WithKeyPrefix 设置桶键的命名空间前缀
// 默认为 "ratelimit"
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.config.KeyPrefix = prefix
	}
}

// WithStoreTimeout 设置单次存储往返的超时
func WithStoreTimeout(d time.Duration) Option {
	return func(o *options) {
		o.config.StoreTimeout = d
	}
}

// WithEnabled 设置总开关。关闭时所有请求直接放行
func WithEnabled(enabled bool) Option {
	return func(o *options) {
		o.config.Enabled = &enabled
	}
}

// WithConfig 使用完整配置覆盖
func WithConfig(config Config) Option {
	return func(o *options) {
		o.config = config
	}
}

// WithConfigFile 从配置文件加载配置。
// 加载失败的错误延迟到 New 时返回
func WithConfigFile(path string) Option {
	return func(o *options) {
		cfg, err := LoadConfigFile(path)
		if err != nil {
			o.initErr = err
			return
		}
		o.config = cfg
	}
}

// WithLogger 设置日志记录器
// 使用 xlog 进行结构化日志记录
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver 设置可观测性观察者
// 使用 xmetrics 进行追踪埋点
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithMeterProvider 设置 OpenTelemetry MeterProvider
// 用于收集 Counter/Histogram 类型的指标
// 如果不设置，不会收集指标
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}
