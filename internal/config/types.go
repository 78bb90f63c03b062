package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为：监听端口、日志与共享超时。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	CacheTTL        Duration `mapstructure:"CacheTTL"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// GithubConfig 描述仓库列表的来源：用户名必填，Token 可选（优先读配置，
// 其次读 GITHUB_TOKEN 环境变量），APIBase 仅用于企业实例或测试替身。
type GithubConfig struct {
	User     string `mapstructure:"User"`
	Token    string `mapstructure:"Token"`
	APIBase  string `mapstructure:"APIBase"`
	PageSize int    `mapstructure:"PageSize"`
}

// GenerateConfig 描述文本生成代理的目标端点与请求体限制。
// ResponseTextPath 为可选的 gjson 路径，命中时仅返回该字段的纯文本。
type GenerateConfig struct {
	Upstream         string `mapstructure:"Upstream"`
	MaxBodyBytes     int64  `mapstructure:"MaxBodyBytes"`
	ResponseTextPath string `mapstructure:"ResponseTextPath"`
}

// ProxyConfig 描述一个挂载在固定路径前缀下的透传上游。
type ProxyConfig struct {
	Name     string `mapstructure:"Name"`
	Mount    string `mapstructure:"Mount"`
	Upstream string `mapstructure:"Upstream"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global   GlobalConfig   `mapstructure:",squash"`
	Github   GithubConfig   `mapstructure:"Github"`
	Generate GenerateConfig `mapstructure:"Generate"`
	Proxies  []ProxyConfig  `mapstructure:"Proxy"`
}

// HasToken 表示是否配置了 GitHub 访问令牌。
func (g GithubConfig) HasToken() bool {
	return strings.TrimSpace(g.Token) != ""
}

// AuthMode 输出 `token` 或 `anonymous`，供日志字段使用。
func (g GithubConfig) AuthMode() string {
	if g.HasToken() {
		return "token"
	}
	return "anonymous"
}

// Enabled 表示生成代理是否配置了上游；未配置时对应路由不注册。
func (g GenerateConfig) Enabled() bool {
	return strings.TrimSpace(g.Upstream) != ""
}

// MountSummaries 返回所有代理挂载的摘要，例如 apihub:/apihub，供启动日志输出。
func MountSummaries(proxies []ProxyConfig) []string {
	if len(proxies) == 0 {
		return nil
	}
	result := make([]string, len(proxies))
	for i, p := range proxies {
		result[i] = fmt.Sprintf("%s:%s", p.Name, p.Mount)
	}
	return result
}
