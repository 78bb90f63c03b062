package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// reservedMounts 列出内置路由占用的前缀，代理挂载不得与其重叠。
var reservedMounts = []string{"/api", "/-"}

// githubMaxPageSize 是 GitHub 列表接口单页上限。
const githubMaxPageSize = 100

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return newFieldError("Global.CacheTTL", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	if c.Github.User == "" {
		return newFieldError("Github.User", "不能为空")
	}
	if strings.ContainsAny(c.Github.User, " /") {
		return newFieldError("Github.User", "不允许包含空格或路径分隔符")
	}
	if c.Github.PageSize <= 0 || c.Github.PageSize > githubMaxPageSize {
		return newFieldError("Github.PageSize", fmt.Sprintf("必须在 1-%d", githubMaxPageSize))
	}
	if c.Github.APIBase != "" {
		if err := validateUpstream(c.Github.APIBase); err != nil {
			return fmt.Errorf("Github.APIBase: %w", err)
		}
	}

	if c.Generate.Enabled() {
		if err := validateUpstream(c.Generate.Upstream); err != nil {
			return fmt.Errorf("Generate.Upstream: %w", err)
		}
		if c.Generate.MaxBodyBytes <= 0 {
			return newFieldError("Generate.MaxBodyBytes", "必须大于 0")
		}
	}

	seenNames := map[string]struct{}{}
	seenMounts := map[string]struct{}{}
	for i := range c.Proxies {
		p := &c.Proxies[i]
		if p.Name == "" {
			return newFieldError("Proxy[].Name", "不能为空")
		}
		if _, exists := seenNames[p.Name]; exists {
			return newFieldError(proxyField(p.Name, "Name"), "重复")
		}
		seenNames[p.Name] = struct{}{}

		if err := validateMount(p.Mount); err != nil {
			return fmt.Errorf("%s: %w", proxyField(p.Name, "Mount"), err)
		}
		if _, exists := seenMounts[p.Mount]; exists {
			return newFieldError(proxyField(p.Name, "Mount"), "重复")
		}
		seenMounts[p.Mount] = struct{}{}

		if err := validateUpstream(p.Upstream); err != nil {
			return fmt.Errorf("%s: %w", proxyField(p.Name, "Upstream"), err)
		}
	}

	return nil
}

func validateMount(mount string) error {
	if mount == "" {
		return errors.New("不能为空")
	}
	if !strings.HasPrefix(mount, "/") {
		return errors.New("必须以 / 开头")
	}
	if mount == "/" {
		return errors.New("不允许挂载到根路径")
	}
	if strings.ContainsAny(mount, " ?#") {
		return errors.New("不允许包含空格或查询片段")
	}
	for _, reserved := range reservedMounts {
		if mount == reserved || strings.HasPrefix(mount, reserved+"/") {
			return fmt.Errorf("与内置路由 %s 冲突", reserved)
		}
	}
	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
