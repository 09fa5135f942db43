package xadmit

import (
	"time"

	"github.com/omeyang/gatekit/pkg/util/xlru"
)

// =============================================================================
// 桶参数缓存
// =============================================================================

// ttlPeriods 桶的过期时间为补给周期的倍数。
// 满桶即是不存在桶的等价状态，闲置超过若干周期的桶删掉也无损语义。
const ttlPeriods = 10

// configCacheSize 参数缓存容量。键空间是去重后的 (容量, 补给量, 周期)
// 三元组，实际规模等于策略档位数，远小于此上限。
const configCacheSize = 256

// bucketParams 策略中决定桶行为的参数三元组，作为缓存键
type bucketParams struct {
	capacity int64
	refill   int64
	period   time.Duration
}

// bucketArgs 预换算好的脚本参数
type bucketArgs struct {
	capacity int64
	refill   int64
	periodMS int64
	ttlMS    int64
}

// configCache 缓存策略参数到脚本参数的换算结果。
//
// 同参数的策略共享同一份换算结果，热路径上省去重复的
// 时间单位换算。
type configCache struct {
	cache *xlru.Cache[bucketParams, bucketArgs]
}

func newConfigCache() *configCache {
	c, err := xlru.New[bucketParams, bucketArgs](configCacheSize)
	if err != nil {
		// 容量是包内常量，只有常量被改坏才会出错
		panic(err)
	}
	return &configCache{cache: c}
}

// argsFor 返回策略对应的脚本参数
func (c *configCache) argsFor(p Policy) bucketArgs {
	params := bucketParams{capacity: p.Capacity, refill: p.RefillAmount, period: p.RefillPeriod}
	args, _ := c.cache.GetOrCompute(params, func() (bucketArgs, error) {
		periodMS := p.RefillPeriod.Milliseconds()
		return bucketArgs{
			capacity: p.Capacity,
			refill:   p.RefillAmount,
			periodMS: periodMS,
			ttlMS:    periodMS * ttlPeriods,
		}, nil
	})
	return args
}
