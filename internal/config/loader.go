package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
// 当前目录存在 .env 时优先加载，便于本地开发注入 GITHUB_TOKEN 等敏感项。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectProxyTableShape(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyGithubDefaults(&cfg.Github)
	applyGenerateDefaults(&cfg.Generate)
	for i := range cfg.Proxies {
		applyProxyDefaults(&cfg.Proxies[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("CacheTTL", "5m")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("Github.PageSize", 100)
	v.SetDefault("Generate.MaxBodyBytes", 64*1024)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.CacheTTL.DurationValue() == 0 {
		g.CacheTTL = Duration(5 * time.Minute)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
}

func applyGithubDefaults(g *GithubConfig) {
	g.User = strings.TrimSpace(g.User)
	if g.Token == "" {
		g.Token = os.Getenv("GITHUB_TOKEN")
	}
	if g.PageSize == 0 {
		g.PageSize = 100
	}
}

func applyGenerateDefaults(g *GenerateConfig) {
	g.Upstream = strings.TrimSpace(g.Upstream)
	if g.MaxBodyBytes == 0 {
		g.MaxBodyBytes = 64 * 1024
	}
}

func applyProxyDefaults(p *ProxyConfig) {
	p.Name = strings.TrimSpace(p.Name)
	p.Mount = normalizeMountPath(p.Mount)
	p.Upstream = strings.TrimSpace(p.Upstream)
}

// normalizeMountPath 去掉末尾斜杠，保证 /apihub 与 /apihub/ 等价。
func normalizeMountPath(raw string) string {
	mount := strings.TrimSpace(raw)
	for len(mount) > 1 && strings.HasSuffix(mount, "/") {
		mount = strings.TrimSuffix(mount, "/")
	}
	return mount
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// rejectProxyTableShape 在反序列化前拦截 [Proxy] 单表写法，
// 该写法应为 [[Proxy]] 数组表，直接让 Unmarshal 失败的报错难以定位。
func rejectProxyTableShape(v *viper.Viper) error {
	raw := v.Get("Proxy")
	if raw == nil {
		return nil
	}
	if _, ok := raw.([]interface{}); ok {
		return nil
	}
	return newFieldError("Proxy", "应使用 [[Proxy]] 数组表写法")
}
