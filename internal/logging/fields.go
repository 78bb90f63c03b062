package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// ProxyFields 提供代理名称/挂载点/上游字段，供出站请求日志复用。
func ProxyFields(name, mount, upstream string) logrus.Fields {
	return logrus.Fields{
		"proxy":    name,
		"mount":    mount,
		"upstream": upstream,
	}
}
