package xadmit

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// =============================================================================
// 请求视图
// =============================================================================

// Request 键派生所需的请求属性快照。
//
// 与 *http.Request 解耦，使 Enforce 等非 HTTP 调用方可以直接构造。
type Request struct {
	// Method HTTP 方法
	Method string
	// Path 请求路径
	Path string
	// RemoteAddr 对端地址 (host:port)
	RemoteAddr string
	// Header 请求头
	Header http.Header
	// Query 查询参数
	Query url.Values
	// UserID 已认证的用户标识，空表示匿名
	UserID string
	// APIKey API 凭证，空表示未携带
	APIKey string
	// SessionID 会话标识，空表示无会话
	SessionID string
}

// 身份回退头与 Cookie 名
const (
	headerUserID    = "X-User-Id"
	headerAPIKey    = "X-API-Key"
	headerSessionID = "X-Session-Id"
	cookieSession   = "session_id"
)

// RequestFromHTTP 从 *http.Request 构造键派生视图。
//
// 身份属性优先取认证层写入 context 的值，其次回退到请求头,
// 会话还会回退到 session_id Cookie。
func RequestFromHTTP(r *http.Request) Request {
	req := Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		Header:     r.Header,
		Query:      r.URL.Query(),
	}

	ctx := r.Context()
	if v, ok := UserIDFromContext(ctx); ok {
		req.UserID = v
	} else {
		req.UserID = r.Header.Get(headerUserID)
	}
	if v, ok := APIKeyFromContext(ctx); ok {
		req.APIKey = v
	} else {
		req.APIKey = r.Header.Get(headerAPIKey)
	}
	if v, ok := SessionIDFromContext(ctx); ok {
		req.SessionID = v
	} else if v := r.Header.Get(headerSessionID); v != "" {
		req.SessionID = v
	} else if c, err := r.Cookie(cookieSession); err == nil {
		req.SessionID = c.Value
	}
	return req
}

// =============================================================================
// 客户端 IP 提取
// =============================================================================

// ipHeaders 按优先级排列的代理转发头
var ipHeaders = []string{
	"X-Forwarded-For",
	"Proxy-Client-IP",
	"X-Real-IP",
	"WL-Proxy-Client-IP",
}

// ClientIP 提取请求的客户端 IP。
//
// 按固定顺序检查代理转发头，跳过空值和 "unknown" 占位;
// 多级代理拼接的头只取第一个地址。所有头都缺失时
// 回退到对端地址。同一请求在任何实例上提取结果一致。
func ClientIP(req Request) string {
	for _, h := range ipHeaders {
		v := strings.TrimSpace(req.Header.Get(h))
		if v == "" || strings.EqualFold(v, "unknown") {
			continue
		}
		// X-Forwarded-For 形如 "client, proxy1, proxy2"
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = strings.TrimSpace(v[:i])
		}
		if v != "" && !strings.EqualFold(v, "unknown") {
			return v
		}
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// =============================================================================
// 限流键派生
// =============================================================================

// 无身份时的占位值。占位值本身也会被限流，匿名流量共享一个桶。
const (
	anonymousUser = "anonymous"
	noAPIKey      = "no-api-key"
	noSession     = "no-session"
)

// digestAPIKey 对 API 凭证做摘要。
//
// 凭证是机密，不应以明文出现在存储键里。xxhash 摘要保持
// 确定性映射，同一凭证在所有实例上命中同一个桶。
func digestAPIKey(key string) string {
	return "h" + strconv.FormatUint(xxhash.Sum64String(key), 16)
}

// strategyValue 按策略提取请求属性值
func strategyValue(req Request, p Policy, tmpl *keyTemplate) string {
	switch p.KeyStrategy {
	case StrategyUser:
		if req.UserID == "" {
			return anonymousUser
		}
		return req.UserID
	case StrategyAPIKey:
		if req.APIKey == "" {
			return noAPIKey
		}
		return digestAPIKey(req.APIKey)
	case StrategySession:
		if req.SessionID == "" {
			return noSession
		}
		return req.SessionID
	case StrategyGlobal:
		return "all"
	case StrategyCustom:
		return tmpl.render(req)
	default: // StrategyIP
		return ClientIP(req)
	}
}

// deriveKey 派生不含命名空间前缀的限流键:
// <policy>:<strategy>:<value>[:<route>]
//
// 策略名是键的一部分: 两个策略即使共享同一种键策略（比如都按 IP）,
// 桶也必须相互独立，否则一个策略耗尽配额会波及另一个策略的路由。
func deriveKey(req Request, p Policy, tmpl *keyTemplate) string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteByte(':')
	b.WriteString(string(p.KeyStrategy))
	b.WriteByte(':')
	b.WriteString(strategyValue(req, p, tmpl))
	if p.IncludeRoute {
		b.WriteByte(':')
		b.WriteString(req.Path)
	}
	return b.String()
}

// DeriveKey 按策略为请求派生限流键。
//
// 便捷入口: 自定义表达式即时编译。Admitter 内部会在注册时
// 预编译表达式，热路径不走这里。
func DeriveKey(req Request, p Policy) (string, error) {
	if p.Name == "" {
		return "", fmt.Errorf("%w: missing policy name", ErrInvalidPolicy)
	}
	p = p.withDefaults()
	var tmpl *keyTemplate
	if p.KeyStrategy == StrategyCustom {
		t, err := parseKeyTemplate(p.KeyExpr)
		if err != nil {
			return "", err
		}
		tmpl = t
	}
	return deriveKey(req, p, tmpl), nil
}
