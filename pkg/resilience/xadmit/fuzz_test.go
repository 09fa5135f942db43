package xadmit

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
)

// FuzzMatchSegments 测试路由通配匹配的模糊测试
func FuzzMatchSegments(f *testing.F) {
	// 添加种子数据
	f.Add("/api/v1/queries/**", "/api/v1/queries/123")
	f.Add("/api/*/upload", "/api/v1/upload")
	f.Add("/**", "/anything/at/all")
	f.Add("", "")
	f.Add("/a/**/b", "/a/x/y/b")
	f.Add("/*.json", "/config.json")
	f.Add("//", "///")
	f.Add("/api/v1/部署/**", "/api/v1/部署/实例")

	f.Fuzz(func(t *testing.T, pattern, path string) {
		// 匹配不应该 panic
		got := matchSegments(splitPath(pattern), splitPath(path))

		// 无通配符时只有逐段相等才能匹配
		if !strings.Contains(pattern, "*") && got {
			p, q := splitPath(pattern), splitPath(path)
			if len(p) != len(q) {
				t.Errorf("literal pattern %q matched %q with different segment counts", pattern, path)
			}
		}

		// 字面路径必须匹配自身
		if !strings.Contains(path, "*") {
			if !matchSegments(splitPath(path), splitPath(path)) {
				t.Errorf("path %q does not match itself", path)
			}
		}
	})
}

// FuzzParseKeyTemplate 测试自定义键表达式解析与渲染的模糊测试
func FuzzParseKeyTemplate(f *testing.F) {
	f.Add("${user}:${header.X-Tenant-Id}")
	f.Add("${ip}")
	f.Add("literal-only")
	f.Add("${")
	f.Add("${unknown_var}")
	f.Add("${query.page}:${method}:${path}")
	f.Add("")
	f.Add("${header.}")

	f.Fuzz(func(t *testing.T, expr string) {
		// 解析不应该 panic
		tmpl, err := parseKeyTemplate(expr)
		if err != nil {
			return
		}

		// 解析成功的表达式渲染任意请求都不应该 panic
		req := Request{
			Method:     http.MethodGet,
			Path:       "/api/v1/queries",
			RemoteAddr: "192.0.2.1:1234",
			Header:     http.Header{"X-Tenant-Id": []string{"t-1"}},
			Query:      url.Values{"page": []string{"2"}},
			UserID:     "alice",
		}
		_ = tmpl.render(req)

		// 空请求同样不应该 panic
		_ = tmpl.render(Request{})
	})
}
