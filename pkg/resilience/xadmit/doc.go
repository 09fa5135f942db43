// Package xadmit 提供基于分布式令牌桶的请求准入控制。
//
// 核心能力:
//   - 策略模型: 容量/补给量/补给周期/键策略的声明式限流策略, 内置五档常用画像
//   - 键派生: 按 IP/用户/凭证/会话/全局/自定义模板为请求派生限流键
//   - 分布式桶存储: Redis Lua 脚本保证 "补给+扣减" 原子执行, 多实例共享同一配额
//   - HTTP 准入中间件: 解析策略 → 派生键 → 扣减令牌 → 写回限流响应头
//   - 路由策略表: 精确绑定 > 前缀分组 > 通配路由表 > 默认策略的多级解析
//
// 令牌桶采用区间补给语义: 只有经过完整的补给周期才会补给令牌,
// 周期内不按比例补给部分令牌。桶状态惰性计算, 无后台补给任务。
//
// 存储故障时 fail-open: 放行请求并记录日志与指标, 限流层的可用性
// 故障不应放大为业务不可用。内置熔断器避免在 Redis 宕机时
// 每个请求都等待超时。
//
// 基础用法:
//
//	store, err := xadmit.NewRedisStore(rdb)
//	if err != nil { ... }
//	adm, err := xadmit.New(store,
//	    xadmit.WithPolicies(xadmit.StandardPolicy(), xadmit.StrictPolicy()),
//	    xadmit.WithRoute("/api/v1/upload/**", "strict"),
//	    xadmit.WithDefaultPolicy("standard"),
//	)
//	if err != nil { ... }
//	http.Handle("/", adm.Middleware()(mux))
//
// 非 HTTP 场景可直接调用 Enforce:
//
//	if err := adm.Enforce(ctx, req, "strict"); err != nil {
//	    var qe *xadmit.QuotaError
//	    if errors.As(err, &qe) { ... }
//	}
package xadmit
