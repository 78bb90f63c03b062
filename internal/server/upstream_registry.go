package server

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/repofolio/repofolio/internal/config"
)

// UpstreamRoute 将 Proxy 配置与派生属性（如规范化挂载路径、解析后的
// Upstream URL）聚合在一起，供路由/代理层直接复用，避免重复解析配置。
type UpstreamRoute struct {
	// Config 是用户在 config.toml 中声明的 Proxy 字段副本，避免外部修改。
	Config config.ProxyConfig
	// ListenPort 记录当前监听端口，方便日志/转发头输出。
	ListenPort int
	// Mount 是规范化后的挂载路径，不带结尾斜杠。
	Mount string
	// UpstreamURL 在构造 Registry 时提前解析完成，便于后续请求快速复用。
	UpstreamURL *url.URL
}

// UpstreamRegistry 提供请求路径到 UpstreamRoute 的前缀匹配查询能力。
type UpstreamRegistry struct {
	byMount map[string]*UpstreamRoute
	ordered []*UpstreamRoute
}

// NewUpstreamRegistry 根据配置构建挂载路径映射。调用方应在启动阶段创建一次并复用。
func NewUpstreamRegistry(cfg *config.Config) (*UpstreamRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	registry := &UpstreamRegistry{
		byMount: make(map[string]*UpstreamRoute, len(cfg.Proxies)),
	}

	for _, proxy := range cfg.Proxies {
		mount := strings.TrimRight(proxy.Mount, "/")
		if mount == "" || !strings.HasPrefix(mount, "/") {
			return nil, fmt.Errorf("invalid mount for proxy %s", proxy.Name)
		}
		if _, exists := registry.byMount[mount]; exists {
			return nil, fmt.Errorf("duplicate mount mapping detected for %s", mount)
		}

		upstreamURL, err := url.Parse(proxy.Upstream)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream for proxy %s: %w", proxy.Name, err)
		}

		route := &UpstreamRoute{
			Config:      proxy,
			ListenPort:  cfg.Global.ListenPort,
			Mount:       mount,
			UpstreamURL: upstreamURL,
		}
		registry.byMount[mount] = route
		registry.ordered = append(registry.ordered, route)
	}

	return registry, nil
}

// Lookup 根据请求路径查找挂载点，多个前缀命中时取最长者。
func (r *UpstreamRegistry) Lookup(path string) (*UpstreamRoute, bool) {
	if r == nil || path == "" {
		return nil, false
	}

	var best *UpstreamRoute
	for _, route := range r.ordered {
		if path != route.Mount && !strings.HasPrefix(path, route.Mount+"/") {
			continue
		}
		if best == nil || len(route.Mount) > len(best.Mount) {
			best = route
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// List 返回当前注册的 UpstreamRoute 列表（按配置定义的顺序），用于调试或 /-/status 输出。
func (r *UpstreamRegistry) List() []UpstreamRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}

	result := make([]UpstreamRoute, len(r.ordered))
	for i, route := range r.ordered {
		result[i] = *route
	}
	return result
}
