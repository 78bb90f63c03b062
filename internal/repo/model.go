// Package repo 定义仓库列表的展示模型与打包的兜底数据集。
package repo

import "time"

// Repo 是单个公开仓库的展示模型，由 GitHub 列表接口映射而来。
// Description/Language/Homepage 上游可能缺省，缺省时为 nil，JSON 输出 null。
type Repo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Language    *string   `json:"language"`
	URL         string    `json:"url"`
	Homepage    *string   `json:"homepage"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasHomepage 表示仓库是否声明了主页链接，供模板跳过空链接。
func (r Repo) HasHomepage() bool {
	return r.Homepage != nil && *r.Homepage != ""
}
