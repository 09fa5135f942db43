// Package xlog 提供 context 优先的结构化日志接口。
//
// # 设计理念
//
//   - 强制 context 传递，确保追踪信息传播
//   - 方法签名只接受 slog.Attr，保证类型安全
//   - 基于标准库 log/slog，Handler 可自由替换
//   - 动态级别控制，支持运行时调整
//
// # 快速开始
//
//	logger := xlog.New(xlog.Options{Format: "json", Level: xlog.LevelInfo})
//	logger.Info(ctx, "request admitted",
//	    xlog.Component("xadmit"),
//	    slog.String("key", bucketKey),
//	)
//
// 测试或不需要日志的场景使用 [Nop]。
package xlog
