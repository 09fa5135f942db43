package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/gatekit/pkg/resilience/xadmit"
)

// exitError 表示需要非零退出码但已完成输出的场景。
// 命令内部已完成所有输出，main 只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "" }

// usageError 表示参数错误，映射到退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// flagSource 命令读取全局 flag 的最小接口，便于测试注入
type flagSource interface {
	String(name string) string
	Int(name string) int
	Duration(name string) time.Duration
}

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createStatusCommand(),
		createCheckCommand(),
		createResetCommand(),
		createPoliciesCommand(),
	}
}

// createStatusCommand 创建 status 子命令。
func createStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Aliases:   []string{"s"},
		Usage:     "查看桶状态（不扣减令牌）",
		ArgsUsage: "<key>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "policy",
				Aliases: []string{"p"},
				Usage:   "策略名称（决定容量与补给参数）",
				Value:   "standard",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			key, policy, err := keyAndPolicy(cmd)
			if err != nil {
				return err
			}
			return cmdStatus(ctx, cmd, key, policy)
		},
	}
}

// createCheckCommand 创建 check 子命令。
func createCheckCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Aliases:   []string{"k"},
		Usage:     "探测性扣减一个令牌",
		ArgsUsage: "<key>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "policy",
				Aliases: []string{"p"},
				Usage:   "策略名称",
				Value:   "standard",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			key, policy, err := keyAndPolicy(cmd)
			if err != nil {
				return err
			}
			return cmdCheck(ctx, cmd, key, policy)
		},
	}
}

// createResetCommand 创建 reset 子命令。
func createResetCommand() *cli.Command {
	return &cli.Command{
		Name:      "reset",
		Usage:     "删除桶，下一次访问按满桶重新初始化",
		ArgsUsage: "<key>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "policy",
				Aliases: []string{"p"},
				Usage:   "策略名称（桶键包含策略段）",
				Value:   "standard",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			key, policy, err := keyAndPolicy(cmd)
			if err != nil {
				return err
			}
			return cmdReset(ctx, cmd, key, policy)
		},
	}
}

// createPoliciesCommand 创建 policies 子命令。
func createPoliciesCommand() *cli.Command {
	return &cli.Command{
		Name:  "policies",
		Usage: "列出已加载的策略",
		Action: func(_ context.Context, cmd *cli.Command) error {
			return cmdPolicies(cmd)
		},
	}
}

// keyAndPolicy 解析 <key> 位置参数和 --policy 引用的策略
func keyAndPolicy(cmd *cli.Command) (string, xadmit.Policy, error) {
	key := cmd.Args().First()
	if key == "" {
		return "", xadmit.Policy{}, &usageError{msg: "missing bucket key"}
	}

	policies, err := loadPolicies(cmd.String("config"))
	if err != nil {
		return "", xadmit.Policy{}, err
	}
	name := cmd.String("policy")
	policy, ok := policies[name]
	if !ok {
		return "", xadmit.Policy{}, &usageError{msg: fmt.Sprintf("unknown policy %q", name)}
	}
	return key, policy, nil
}

// fullKey 拼出完整桶键: <prefix>:<policy>:<key>。
// 桶键包含策略段，与准入层的派生规则保持一致。
func fullKey(cmd flagSource, policy xadmit.Policy, key string) string {
	return cmd.String("prefix") + ":" + policy.Name + ":" + key
}

// cmdStatus 查询并打印桶状态。
func cmdStatus(ctx context.Context, cmd *cli.Command, key string, policy xadmit.Policy) error {
	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	store, closer, err := connectStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer closer()

	st, err := store.Status(ctx, fullKey(cmd, policy, key), policy)
	if err != nil {
		return err
	}

	fmt.Printf("key:        %s\n", fullKey(cmd, policy, key))
	fmt.Printf("policy:     %s\n", policy.Name)
	fmt.Printf("capacity:   %d\n", st.Capacity)
	fmt.Printf("remaining:  %d\n", st.Remaining)
	if st.Exhausted() {
		fmt.Printf("exhausted:  yes (retry after %ds)\n", st.RetryAfterSeconds())
	} else {
		fmt.Printf("exhausted:  no\n")
	}
	return nil
}

// cmdCheck 探测性扣减一个令牌。
// 放行退出码 0，拒绝退出码 1。
func cmdCheck(ctx context.Context, cmd *cli.Command, key string, policy xadmit.Policy) error {
	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	store, closer, err := connectStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer closer()

	res, err := store.TryConsume(ctx, fullKey(cmd, policy, key), policy, 1)
	if err != nil {
		return err
	}

	if res.Allowed {
		fmt.Printf("allowed (remaining %d/%d)\n", res.Remaining, res.Capacity)
		return nil
	}
	fmt.Printf("denied (retry after %ds)\n", res.RetryAfterSeconds())
	return &exitError{code: 1}
}

// cmdReset 删除桶。
func cmdReset(ctx context.Context, cmd *cli.Command, key string, policy xadmit.Policy) error {
	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	store, closer, err := connectStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer closer()

	if err := store.Reset(ctx, fullKey(cmd, policy, key)); err != nil {
		return err
	}
	fmt.Printf("reset %s\n", fullKey(cmd, policy, key))
	return nil
}

// cmdPolicies 列出已加载的策略。
func cmdPolicies(cmd *cli.Command) error {
	policies, err := loadPolicies(cmd.String("config"))
	if err != nil {
		return err
	}

	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCAPACITY\tREFILL\tPERIOD\tSTRATEGY")
	for _, name := range names {
		p := policies[name]
		strategy := p.KeyStrategy
		if strategy == "" {
			strategy = xadmit.StrategyIP
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", p.Name, p.Capacity, p.RefillAmount, p.RefillPeriod, strategy)
	}
	return w.Flush()
}
