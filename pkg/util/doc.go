// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xlru: LRU 缓存，泛型支持、单航班计算
//
// 设计原则：
//   - 小而正交，不依赖业务包
//   - 跨平台兼容
package util
