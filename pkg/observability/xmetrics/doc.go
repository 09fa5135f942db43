// Package xmetrics 提供统一的观测抽象（Observer/Span）。
//
// 业务包只依赖 Observer 接口，不直接耦合 OpenTelemetry API，
// 测试时可注入 NoopObserver 或自定义实现。
//
// # 快速开始
//
//	observer, _ := xmetrics.NewOTelObserver()
//	ctx, span := xmetrics.Start(ctx, observer, xmetrics.SpanOptions{
//	    Component: "xadmit",
//	    Operation: "try_consume",
//	    Kind:      xmetrics.KindClient,
//	})
//	defer func() { span.End(xmetrics.Result{Err: err}) }()
package xmetrics
