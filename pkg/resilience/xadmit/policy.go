package xadmit

import (
	"fmt"
	"net/http"
	"time"
)

// =============================================================================
// 键策略
// =============================================================================

// KeyStrategy 限流键的派生策略
type KeyStrategy string

// 支持的键策略
const (
	// StrategyIP 按客户端 IP 限流
	StrategyIP KeyStrategy = "ip"
	// StrategyUser 按已认证用户限流
	StrategyUser KeyStrategy = "user"
	// StrategyAPIKey 按 API 凭证限流
	StrategyAPIKey KeyStrategy = "api"
	// StrategySession 按会话限流
	StrategySession KeyStrategy = "session"
	// StrategyGlobal 全局共享一个桶
	StrategyGlobal KeyStrategy = "global"
	// StrategyCustom 按自定义模板派生键
	StrategyCustom KeyStrategy = "custom"
)

// IsValid 检查键策略是否合法
func (s KeyStrategy) IsValid() bool {
	switch s {
	case StrategyIP, StrategyUser, StrategyAPIKey, StrategySession, StrategyGlobal, StrategyCustom:
		return true
	default:
		return false
	}
}

// =============================================================================
// 限流策略
// =============================================================================

// 策略默认值
const (
	// DefaultExceededStatus 拒绝响应的默认状态码
	DefaultExceededStatus = http.StatusTooManyRequests
	// DefaultExceededMessage 拒绝响应的默认提示
	DefaultExceededMessage = "Too many requests. Please try again later."

	// unlimitedCapacity 无限档的桶容量。
	// Lua 的 number 是 double, 2^53 以内的整数精确表示, 1e15 在安全范围内。
	unlimitedCapacity = int64(1e15)
)

// Policy 限流策略
//
// 描述一个令牌桶的容量与补给节奏，以及请求到桶的映射方式。
// 同名策略在所有实例上必须配置一致，键派生是确定性的,
// 相同请求属性在任何实例上都命中同一个桶。
type Policy struct {
	// Name 策略名称，注册后作为路由绑定的引用
	Name string `json:"name" yaml:"name" koanf:"name"`

	// Capacity 桶容量，同时是冷启动时的初始令牌数
	Capacity int64 `json:"capacity" yaml:"capacity" koanf:"capacity"`

	// RefillAmount 每个补给周期补给的令牌数
	RefillAmount int64 `json:"refill_amount" yaml:"refill_amount" koanf:"refill_amount"`

	// RefillPeriod 补给周期。只有经过完整周期才补给，不按比例补给部分周期
	RefillPeriod time.Duration `json:"refill_period" yaml:"refill_period" koanf:"refill_period"`

	// KeyStrategy 键派生策略，默认 StrategyIP
	KeyStrategy KeyStrategy `json:"key_strategy,omitempty" yaml:"key_strategy,omitempty" koanf:"key_strategy"`

	// KeyExpr 自定义键表达式，仅 StrategyCustom 使用。
	// 支持 ${ip} ${user} ${api_key} ${session} ${method} ${path}
	// ${header.Name} ${query.name} 占位符，注册时校验。
	KeyExpr string `json:"key_expr,omitempty" yaml:"key_expr,omitempty" koanf:"key_expr"`

	// IncludeRoute 是否把请求路径拼入限流键，使同一主体在不同
	// 路由上使用独立的桶
	IncludeRoute bool `json:"include_route,omitempty" yaml:"include_route,omitempty" koanf:"include_route"`

	// ExceededStatus 拒绝响应的状态码，默认 429
	ExceededStatus int `json:"exceeded_status,omitempty" yaml:"exceeded_status,omitempty" koanf:"exceeded_status"`

	// ExceededMessage 拒绝响应的提示文案
	ExceededMessage string `json:"exceeded_message,omitempty" yaml:"exceeded_message,omitempty" koanf:"exceeded_message"`
}

// Validate 校验策略
func (p Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPolicy)
	}
	if p.Capacity <= 0 {
		return fmt.Errorf("%w: policy %q: capacity must be positive, got %d", ErrInvalidPolicy, p.Name, p.Capacity)
	}
	if p.RefillAmount <= 0 {
		return fmt.Errorf("%w: policy %q: refill_amount must be positive, got %d", ErrInvalidPolicy, p.Name, p.RefillAmount)
	}
	if p.RefillPeriod <= 0 {
		return fmt.Errorf("%w: policy %q: refill_period must be positive, got %v", ErrInvalidPolicy, p.Name, p.RefillPeriod)
	}
	if p.RefillPeriod < time.Millisecond {
		return fmt.Errorf("%w: policy %q: refill_period must be at least 1ms, got %v", ErrInvalidPolicy, p.Name, p.RefillPeriod)
	}
	if p.KeyStrategy != "" && !p.KeyStrategy.IsValid() {
		return fmt.Errorf("%w: policy %q: unknown key_strategy %q", ErrInvalidPolicy, p.Name, p.KeyStrategy)
	}
	if p.KeyStrategy == StrategyCustom && p.KeyExpr == "" {
		return fmt.Errorf("%w: policy %q: key_expr is required for custom strategy", ErrInvalidPolicy, p.Name)
	}
	if p.KeyStrategy != StrategyCustom && p.KeyExpr != "" {
		return fmt.Errorf("%w: policy %q: key_expr is only valid for custom strategy", ErrInvalidPolicy, p.Name)
	}
	if p.ExceededStatus != 0 && (p.ExceededStatus < 400 || p.ExceededStatus > 599) {
		return fmt.Errorf("%w: policy %q: exceeded_status must be a 4xx/5xx code, got %d", ErrInvalidPolicy, p.Name, p.ExceededStatus)
	}
	return nil
}

// withDefaults 返回填充了默认值的策略副本
func (p Policy) withDefaults() Policy {
	if p.KeyStrategy == "" {
		p.KeyStrategy = StrategyIP
	}
	if p.ExceededStatus == 0 {
		p.ExceededStatus = DefaultExceededStatus
	}
	if p.ExceededMessage == "" {
		p.ExceededMessage = DefaultExceededMessage
	}
	return p
}

// =============================================================================
// 内置策略画像
// =============================================================================

// StrictPolicy 严格档: 5 容量 / 每 60s 补 5，按 IP 限流。
// 适合开销大或敏感的操作，如上传与导出。
func StrictPolicy() Policy {
	return Policy{Name: "strict", Capacity: 5, RefillAmount: 5, RefillPeriod: time.Minute}
}

// StandardPolicy 标准档: 100 容量 / 每 60s 补 100，按 IP 限流
func StandardPolicy() Policy {
	return Policy{Name: "standard", Capacity: 100, RefillAmount: 100, RefillPeriod: time.Minute}
}

// RelaxedPolicy 宽松档: 1000 容量 / 每 60s 补 1000，按 IP 限流
func RelaxedPolicy() Policy {
	return Policy{Name: "relaxed", Capacity: 1000, RefillAmount: 1000, RefillPeriod: time.Minute}
}

// PremiumPolicy 高配档: 5000 容量 / 每 60s 补 5000，按用户限流
func PremiumPolicy() Policy {
	return Policy{Name: "premium", Capacity: 5000, RefillAmount: 5000, RefillPeriod: time.Minute, KeyStrategy: StrategyUser}
}

// UnlimitedPolicy 无限档
//
// 设计决策: 不给无限档开"跳过限流"的旁路分支，而是用一个大到
// 永远不会耗尽的桶走统一的扣减路径。所有请求共享同一套代码路径,
// 行为差异只来自策略参数。
func UnlimitedPolicy() Policy {
	return Policy{Name: "unlimited", Capacity: unlimitedCapacity, RefillAmount: unlimitedCapacity, RefillPeriod: time.Second}
}

// BuiltinPolicies 返回全部内置策略画像
func BuiltinPolicies() []Policy {
	return []Policy{StrictPolicy(), StandardPolicy(), RelaxedPolicy(), PremiumPolicy(), UnlimitedPolicy()}
}
