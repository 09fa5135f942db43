package xlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// 编译时接口检查
var (
	_ Logger  = (*xlogger)(nil)
	_ Leveler = (*xlogger)(nil)
	_ Logger  = nopLogger{}
)

// Options 日志构建选项。
type Options struct {
	// Output 输出目标，默认 os.Stderr。
	Output io.Writer

	// Level 初始日志级别，默认 LevelInfo。
	Level Level

	// Format 输出格式："text"（默认）或 "json"。
	Format string

	// AddSource 是否记录源码位置。
	AddSource bool
}

// New 创建 Logger。
// Format 非法时回退到 text，不作为错误处理——
// 日志子系统遵循"失败不扩散"原则，配置瑕疵不应阻塞业务启动。
func New(opts Options) Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.Level(opts.Level))

	hopts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: opts.AddSource,
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		handler = slog.NewJSONHandler(opts.Output, hopts)
	default:
		handler = slog.NewTextHandler(opts.Output, hopts)
	}

	return &xlogger{
		handler:  handler,
		levelVar: levelVar,
	}
}

// FromHandler 基于已有的 slog.Handler 创建 Logger。
// 适用于宿主应用已经配置好 slog 输出链的场景。
func FromHandler(handler slog.Handler) Logger {
	levelVar := new(slog.LevelVar)
	return &xlogger{
		handler:  handler,
		levelVar: levelVar,
	}
}

// xlogger Logger 接口的实现
type xlogger struct {
	handler  slog.Handler
	levelVar *slog.LevelVar
}

// log 通用日志方法
func (l *xlogger) log(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level) {
		return
	}

	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(attrs...)

	// Handler.Handle 失败无补救手段，日志失败不扩散到业务调用链。
	_ = l.handler.Handle(ctx, r)
}

// Debug 记录 Debug 级别日志
func (l *xlogger) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelDebug, msg, attrs)
}

// Info 记录 Info 级别日志
func (l *xlogger) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelInfo, msg, attrs)
}

// Warn 记录 Warn 级别日志
func (l *xlogger) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelWarn, msg, attrs)
}

// Error 记录 Error 级别日志
func (l *xlogger) Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelError, msg, attrs)
}

// With 返回带额外属性的派生 Logger
func (l *xlogger) With(attrs ...slog.Attr) Logger {
	if len(attrs) == 0 {
		return l
	}
	return &xlogger{
		handler:  l.handler.WithAttrs(attrs),
		levelVar: l.levelVar,
	}
}

// SetLevel 动态设置日志级别
func (l *xlogger) SetLevel(level Level) {
	l.levelVar.Set(slog.Level(level))
}

// GetLevel 获取当前日志级别
func (l *xlogger) GetLevel() Level {
	return Level(l.levelVar.Level())
}

// ParseLevel 解析级别字符串（debug/info/warn/error，大小写不敏感）。
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("xlog: unknown level %q", s)
	}
}

// Nop 返回不输出任何内容的 Logger。
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...slog.Attr) {}
func (nopLogger) Info(context.Context, string, ...slog.Attr)  {}
func (nopLogger) Warn(context.Context, string, ...slog.Attr)  {}
func (nopLogger) Error(context.Context, string, ...slog.Attr) {}
func (nopLogger) With(...slog.Attr) Logger                    { return nopLogger{} }
