// admitctl 是 gatekit 准入层的运维命令行工具。
//
// 用法:
//
//	admitctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-r, --redis     Redis 地址 (默认: 127.0.0.1:6379)
//	    --password  Redis 密码
//	    --db        Redis 数据库编号
//	    --prefix    桶键命名空间前缀 (默认: ratelimit)
//	-c, --config    策略配置文件 (yaml/json)，缺省使用内置策略画像
//	-t, --timeout   命令超时时间 (默认: 5s)
//
// 命令:
//
//	status <key>   查看桶状态（不扣减令牌）
//	check <key>    探测性扣减一个令牌
//	reset <key>    删除桶，下一次访问按满桶重新初始化
//	policies       列出已加载的策略
//	help           显示帮助信息
//
// key 是策略维度内的派生键，如 "ip:203.0.113.7" 或 "user:alice"。
// 完整的桶键由 <prefix>:<policy>:<key> 拼出，--policy 决定策略段。
//
// 退出码:
//
//	0: 命令执行成功（check 命令: 请求被放行）
//	1: 命令执行失败或存储不可用（check 命令: 请求被拒绝）
//	2: 参数错误（缺少键、未知策略、未知命令等）
//
// 示例:
//
//	admitctl status ip:203.0.113.7 --policy strict
//	admitctl check user:alice --policy premium
//	admitctl reset ip:203.0.113.7 --policy strict
//	admitctl -c admit.yaml policies
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

// defaultTimeout 默认超时时间。
const defaultTimeout = 5 * time.Second

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "admitctl",
		Usage:   "gatekit 准入层运维工具",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "redis",
				Aliases: []string{"r"},
				Usage:   "Redis 地址",
				Value:   "127.0.0.1:6379",
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "Redis 密码",
			},
			&cli.IntFlag{
				Name:  "db",
				Usage: "Redis 数据库编号",
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "桶键命名空间前缀",
				Value: "ratelimit",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "策略配置文件 (yaml/json)",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "命令超时时间",
				Value:   defaultTimeout,
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		Authors: []any{
			"gatekit Team",
		},
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run() int {
	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Run(ctx, os.Args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}

	return 0
}
