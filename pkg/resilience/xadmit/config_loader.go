package xadmit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// =============================================================================
// 配置加载
// =============================================================================

// 配置文件示例 (YAML):
//
//	key_prefix: ratelimit
//	store_timeout: 500ms
//	default: standard
//	policies:
//	  - name: standard
//	    capacity: 100
//	    refill_amount: 100
//	    refill_period: 60s
//	  - name: strict
//	    capacity: 5
//	    refill_amount: 5
//	    refill_period: 60s
//	routes:
//	  - pattern: /api/v1/upload/**
//	    policy: strict

// LoadConfigFile 从文件加载并校验配置。
// 按扩展名识别格式，支持 .yaml/.yml/.json。
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return Config{}, fmt.Errorf("xadmit: read config: %w", err)
	}

	format := strings.TrimPrefix(filepath.Ext(path), ".")
	return ParseConfig(data, format)
}

// ParseConfig 解析并校验配置内容。
// format 支持 "yaml"、"yml"、"json"。
//
// 设计决策: 配置错误让启动失败，不静默回退默认配置。
// 无策略的默认配置会放行所有请求，比明确的启动失败更危险。
func ParseConfig(data []byte, format string) (Config, error) {
	var parser koanf.Parser
	switch strings.ToLower(format) {
	case "yaml", "yml":
		parser = kyaml.Parser()
	case "json":
		parser = kjson.Parser()
	default:
		return Config{}, fmt.Errorf("xadmit: unsupported config format %q", format)
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return Config{}, fmt.Errorf("xadmit: parse config: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("xadmit: unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
