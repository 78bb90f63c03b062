package repo

import (
	_ "embed"
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// fallback.json 随二进制打包，是上游完全不可用时的最后兜底快照。
//
//go:embed fallback.json
var fallbackJSON []byte

// Fallback 返回打包的仓库快照。数据损坏时输出告警并返回空列表，绝不中断启动。
func Fallback(logger *logrus.Logger) []Repo {
	return decodeFallback(fallbackJSON, logger)
}

func decodeFallback(raw []byte, logger *logrus.Logger) []Repo {
	var repos []Repo
	if err := json.Unmarshal(raw, &repos); err != nil {
		if logger != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"action": "fallback_load",
				"bytes":  len(raw),
			}).Warn("兜底数据集解析失败")
		}
		return []Repo{}
	}
	return repos
}
