package xadmit

import (
	_ "embed"
	"sync"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// Lua 脚本
// =============================================================================

// 桶的补给与扣减必须在 Redis 侧原子完成, GET 再 SET 的两段式
// 在并发下会超发。脚本通过 go:embed 打包，EVALSHA 优先执行,
// NOSCRIPT 时由 go-redis 自动回退 EVAL。

//go:embed lua/try_consume.lua
var tryConsumeLua string

//go:embed lua/status.lua
var statusLua string

var (
	scriptOnce         sync.Once
	tryConsumeScript   *redis.Script
	bucketStatusScript *redis.Script
)

// initScripts 惰性初始化脚本单例
func initScripts() {
	scriptOnce.Do(func() {
		tryConsumeScript = redis.NewScript(tryConsumeLua)
		bucketStatusScript = redis.NewScript(statusLua)
	})
}
