package xadmit

import (
	"fmt"
	"strings"
)

// =============================================================================
// 路由策略表
// =============================================================================

// RouteRule 路由表项: 路径模式到策略名的绑定
type RouteRule struct {
	// Pattern 路径模式，支持 * (段内任意字符) 和 ** (跨段任意层级)
	Pattern string `json:"pattern" yaml:"pattern" koanf:"pattern"`
	// Policy 策略名称
	Policy string `json:"policy" yaml:"policy" koanf:"policy"`
}

// routeTable 有序路由表。
//
// 设计决策: 按注册顺序匹配第一条命中的模式，不做"最长模式优先"
// 之类的隐式排序。注册顺序就是优先级，配置的人把具体模式写在
// 宽泛模式前面即可，规则可预测。
type routeTable struct {
	entries []routeEntry
}

type routeEntry struct {
	pattern string
	// segments 预切分好的模式段
	segments []string
	policy   string
}

func newRouteTable() *routeTable {
	return &routeTable{}
}

// add 追加一条路由绑定
func (t *routeTable) add(pattern, policy string) error {
	if pattern == "" || !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("%w: pattern %q must start with '/'", ErrInvalidRoute, pattern)
	}
	if policy == "" {
		return fmt.Errorf("%w: pattern %q: policy name is required", ErrInvalidRoute, pattern)
	}
	t.entries = append(t.entries, routeEntry{
		pattern:  pattern,
		segments: splitPath(pattern),
		policy:   policy,
	})
	return nil
}

// resolve 返回第一条匹配路径的策略名
func (t *routeTable) resolve(path string) (string, bool) {
	segs := splitPath(path)
	for _, e := range t.entries {
		if matchSegments(e.segments, segs) {
			return e.policy, true
		}
	}
	return "", false
}

// splitPath 按 '/' 切分路径，去掉首段空串
func splitPath(p string) []string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// matchSegments 检查路径段序列是否匹配模式段序列。
// "**" 匹配零个或多个整段，其余模式段逐段用段内通配匹配。
//
// 使用动态规划，O(m*n) 段比较，O(n) 空间
func matchSegments(pattern, path []string) bool {
	pLen, tLen := len(pattern), len(path)

	prev := make([]bool, tLen+1)
	curr := make([]bool, tLen+1)

	prev[0] = true

	for i := 1; i <= pLen; i++ {
		if pattern[i-1] == "**" {
			curr[0] = prev[0]
		} else {
			curr[0] = false
		}

		for j := 1; j <= tLen; j++ {
			if pattern[i-1] == "**" {
				// ** 匹配零段（prev[j]）或再吞一段（curr[j-1]）
				curr[j] = prev[j] || curr[j-1]
			} else if segmentMatch(pattern[i-1], path[j-1]) {
				curr[j] = prev[j-1]
			} else {
				curr[j] = false
			}
		}

		prev, curr = curr, prev
	}

	return prev[tLen]
}

// segmentMatch 单段通配匹配，* 匹配段内任意字符序列
//
// 使用动态规划，O(m*n) 时间复杂度，O(n) 空间复杂度
func segmentMatch(pattern, text string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == text
	}

	pLen, tLen := len(pattern), len(text)

	prev := make([]bool, tLen+1)
	curr := make([]bool, tLen+1)

	prev[0] = true

	for i := 1; i <= pLen; i++ {
		switch pattern[i-1] {
		case '*':
			curr[0] = prev[0]
		default:
			curr[0] = false
		}

		for j := 1; j <= tLen; j++ {
			switch pattern[i-1] {
			case '*':
				curr[j] = prev[j] || curr[j-1]
			case text[j-1]:
				curr[j] = prev[j-1]
			default:
				curr[j] = false
			}
		}

		prev, curr = curr, prev
	}

	return prev[tLen]
}
