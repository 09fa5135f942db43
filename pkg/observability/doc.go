// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展
//   - xmetrics: 统一可观测性接口（追踪埋点）
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 日志接口以 context 为首参，便于注入追踪信息
//   - 支持动态级别控制
package observability
