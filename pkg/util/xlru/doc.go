// Package xlru 提供基于 hashicorp/golang-lru 的泛型 LRU 缓存封装。
//
// xlru 是对 github.com/hashicorp/golang-lru/v2 的轻量封装，
// 提供简洁的泛型 API，适合作为进程内只读为主的配置/描述符缓存。
//
// # 核心特性
//
//   - 泛型支持：任意 comparable 键类型和任意值类型
//   - LRU 淘汰：缓存满时自动淘汰最久未访问的条目
//   - 并发安全：所有操作线程安全
//   - GetOrCompute：create-if-absent 语义，适合只增缓存
//
// # 设计决策
//
// 不提供接口抽象层：底层库稳定成熟，替换需求极低，
// 如需替换实现建议在业务层封装。
package xlru
