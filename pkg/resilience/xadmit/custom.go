package xadmit

import (
	"fmt"
	"strings"
)

// =============================================================================
// 自定义键表达式
// =============================================================================

// 自定义表达式是带 ${var} 占位符的字符串模板，如
// "${user}:${header.X-Tenant-Id}"。注册时编译为 token 序列并校验
// 变量名，非法表达式让启动失败而不是在请求路径上静默产出坏键。

// 模板变量名常量
const (
	varIP      = "ip"
	varUser    = "user"
	varAPIKey  = "api_key"
	varSession = "session"
	varMethod  = "method"
	varPath    = "path"

	varHeaderPrefix = "header."
	varQueryPrefix  = "query."
)

// tokenKind 模板片段类型
type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenVar
	tokenHeader
	tokenQuery
)

// token 编译后的模板片段
type token struct {
	kind tokenKind
	// literal 文本，或变量名 / 头名 / 参数名
	value string
}

// keyTemplate 编译后的键表达式
type keyTemplate struct {
	expr   string
	tokens []token
}

// parseKeyTemplate 编译键表达式。
//
// 校验在此一次完成: 占位符必须闭合，变量名必须已知。
// 渲染阶段不再产生错误。
func parseKeyTemplate(expr string) (*keyTemplate, error) {
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrBadKeyExpr)
	}

	t := &keyTemplate{expr: expr}
	i := 0
	for i < len(expr) {
		start := strings.Index(expr[i:], "${")
		if start == -1 {
			t.tokens = append(t.tokens, token{kind: tokenLiteral, value: expr[i:]})
			break
		}
		start += i

		if start > i {
			t.tokens = append(t.tokens, token{kind: tokenLiteral, value: expr[i:start]})
		}

		end := strings.IndexByte(expr[start:], '}')
		if end == -1 {
			return nil, fmt.Errorf("%w: unclosed placeholder in %q", ErrBadKeyExpr, expr)
		}
		end += start

		name := expr[start+2 : end]
		tok, err := classifyVar(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v in %q", ErrBadKeyExpr, err, expr)
		}
		t.tokens = append(t.tokens, tok)

		i = end + 1
	}
	return t, nil
}

// classifyVar 校验并归类占位符变量
func classifyVar(name string) (token, error) {
	switch name {
	case varIP, varUser, varAPIKey, varSession, varMethod, varPath:
		return token{kind: tokenVar, value: name}, nil
	}
	if rest, ok := strings.CutPrefix(name, varHeaderPrefix); ok {
		if rest == "" {
			return token{}, fmt.Errorf("empty header name")
		}
		return token{kind: tokenHeader, value: rest}, nil
	}
	if rest, ok := strings.CutPrefix(name, varQueryPrefix); ok {
		if rest == "" {
			return token{}, fmt.Errorf("empty query parameter name")
		}
		return token{kind: tokenQuery, value: rest}, nil
	}
	return token{}, fmt.Errorf("unknown variable %q", name)
}

// render 用请求属性渲染模板。缺失的属性渲染为空串。
func (t *keyTemplate) render(req Request) string {
	var b strings.Builder
	b.Grow(len(t.expr) + 32)

	for _, tok := range t.tokens {
		switch tok.kind {
		case tokenLiteral:
			b.WriteString(tok.value)
		case tokenHeader:
			if req.Header != nil {
				b.WriteString(req.Header.Get(tok.value))
			}
		case tokenQuery:
			if req.Query != nil {
				b.WriteString(req.Query.Get(tok.value))
			}
		case tokenVar:
			b.WriteString(t.resolveVar(tok.value, req))
		}
	}
	return b.String()
}

// resolveVar 解析内置变量值
func (t *keyTemplate) resolveVar(name string, req Request) string {
	switch name {
	case varIP:
		return ClientIP(req)
	case varUser:
		if req.UserID == "" {
			return anonymousUser
		}
		return req.UserID
	case varAPIKey:
		if req.APIKey == "" {
			return noAPIKey
		}
		return digestAPIKey(req.APIKey)
	case varSession:
		if req.SessionID == "" {
			return noSession
		}
		return req.SessionID
	case varMethod:
		return req.Method
	case varPath:
		return req.Path
	default:
		return ""
	}
}
