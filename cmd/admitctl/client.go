package main

import (
	"context"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/redis/go-redis/v9"

	"github.com/omeyang/gatekit/pkg/resilience/xadmit"
)

// connectAttempts Redis 连接探测次数
const connectAttempts = 3

// connectStore 连接 Redis 并构造桶存储。
// 启动时的瞬时网络抖动通过有限次重试吸收。
func connectStore(ctx context.Context, cmd flagSource) (*xadmit.RedisStore, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cmd.String("redis"),
		Password: cmd.String("password"),
		DB:       cmd.Int("db"),
	})
	closer := func() {
		_ = client.Close()
	}

	// 只对网络类故障重试，认证错误等重试也不会好
	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(xadmit.IsStoreError),
	).Do(func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		closer()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cmd.String("redis"), err)
	}

	store, err := xadmit.NewRedisStore(client)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return store, closer, nil
}

// loadPolicies 返回可用的策略集合。
// 指定了配置文件时加载其中的策略，否则使用内置画像。
func loadPolicies(path string) (map[string]xadmit.Policy, error) {
	var policies []xadmit.Policy
	if path != "" {
		cfg, err := xadmit.LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		policies = cfg.Policies
	} else {
		policies = xadmit.BuiltinPolicies()
	}

	byName := make(map[string]xadmit.Policy, len(policies))
	for _, p := range policies {
		byName[p.Name] = p
	}
	return byName, nil
}
