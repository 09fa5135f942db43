package xadmit

import (
	"fmt"
	"time"
)

// =============================================================================
// 配置
// =============================================================================

// DefaultKeyPrefix 桶键的默认命名空间前缀
const DefaultKeyPrefix = "ratelimit"

// Binding 路径到策略的精确或前缀绑定
type Binding struct {
	// Path 绑定的路径（精确绑定）或路径前缀（分组绑定）
	Path string `json:"path" yaml:"path" koanf:"path"`
	// Policy 策略名称
	Policy string `json:"policy" yaml:"policy" koanf:"policy"`
}

// Config 准入控制配置
//
// 策略解析优先级: Handlers 精确绑定 > Groups 前缀绑定 >
// Routes 通配路由表 > Default 默认策略。都未命中时无条件放行。
type Config struct {
	// Enabled 总开关。nil 表示启用。关闭时所有请求直接放行
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty" koanf:"enabled"`

	// KeyPrefix 桶键的命名空间前缀，默认 "ratelimit"
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" koanf:"key_prefix"`

	// StoreTimeout 单次存储往返的超时，默认 500ms
	StoreTimeout time.Duration `json:"store_timeout,omitempty" yaml:"store_timeout,omitempty" koanf:"store_timeout"`

	// Policies 注册的策略集合
	Policies []Policy `json:"policies" yaml:"policies" koanf:"policies"`

	// Default 默认策略名称，空表示未命中任何绑定时无条件放行
	Default string `json:"default,omitempty" yaml:"default,omitempty" koanf:"default"`

	// Routes 通配路由表，按声明顺序匹配
	Routes []RouteRule `json:"routes,omitempty" yaml:"routes,omitempty" koanf:"routes"`

	// Handlers 调用点级精确绑定，优先级最高
	Handlers []Binding `json:"handlers,omitempty" yaml:"handlers,omitempty" koanf:"handlers"`

	// Groups 分组级前缀绑定，优先级次于 Handlers
	Groups []Binding `json:"groups,omitempty" yaml:"groups,omitempty" koanf:"groups"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		KeyPrefix:    DefaultKeyPrefix,
		StoreTimeout: DefaultStoreTimeout,
	}
}

// IsEnabled 返回总开关状态
func (c Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Validate 校验配置。
//
// 校验在启动时一次完成: 坏策略、悬空的策略引用、非法的路由
// 模式都让启动失败，而不是等到请求路径上才暴露。
func (c Config) Validate() error {
	names := make(map[string]struct{}, len(c.Policies))
	for _, p := range c.Policies {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("%w: duplicate policy name %q", ErrInvalidPolicy, p.Name)
		}
		names[p.Name] = struct{}{}
	}

	known := func(name string) bool {
		_, ok := names[name]
		return ok
	}

	if c.Default != "" && !known(c.Default) {
		return fmt.Errorf("%w: default policy %q is not registered", ErrUnknownPolicy, c.Default)
	}
	for _, r := range c.Routes {
		if r.Pattern == "" {
			return fmt.Errorf("%w: route pattern is required", ErrInvalidRoute)
		}
		if !known(r.Policy) {
			return fmt.Errorf("%w: route %q references policy %q", ErrUnknownPolicy, r.Pattern, r.Policy)
		}
	}
	for _, b := range c.Handlers {
		if b.Path == "" {
			return fmt.Errorf("%w: handler binding path is required", ErrInvalidRoute)
		}
		if !known(b.Policy) {
			return fmt.Errorf("%w: handler %q references policy %q", ErrUnknownPolicy, b.Path, b.Policy)
		}
	}
	for _, b := range c.Groups {
		if b.Path == "" {
			return fmt.Errorf("%w: group binding path is required", ErrInvalidRoute)
		}
		if !known(b.Policy) {
			return fmt.Errorf("%w: group %q references policy %q", ErrUnknownPolicy, b.Path, b.Policy)
		}
	}
	return nil
}

// withDefaults 返回填充了默认值的配置副本
func (c Config) withDefaults() Config {
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	return c
}
