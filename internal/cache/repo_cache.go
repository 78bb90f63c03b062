package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/repofolio/repofolio/internal/repo"
)

// DefaultTTL 是未配置时单个列表结果的最长服务时间。
const DefaultTTL = 5 * time.Minute

// Source 标识缓存条目来自实时抓取还是打包的兜底数据。
type Source string

const (
	// SourceLive 表示条目来自最近一次成功的上游抓取。
	SourceLive Source = "live"
	// SourceFallback 表示条目来自打包的兜底数据集。
	SourceFallback Source = "fallback"
)

// FetchFunc 拉取最新的仓库列表。生产环境由 internal/github 提供实现，
// 测试中可注入脚本化的替身。
type FetchFunc func(ctx context.Context) ([]repo.Repo, error)

// Options 汇总构造 RepoCache 所需的依赖。Fetch 与 Logger 必填，
// TTL/Now 缺省时分别退回 DefaultTTL 与 time.Now。
type Options struct {
	TTL      time.Duration
	Fetch    FetchFunc
	Fallback []repo.Repo
	Logger   *logrus.Logger
	Now      func() time.Time
}

// RepoCache 持有最近一次抓取结果及其时间戳。条目整体替换，从不原地修改；
// 状态只会是 空、实时数据、兜底数据 三者之一。
type RepoCache struct {
	ttl      time.Duration
	fetch    FetchFunc
	fallback []repo.Repo
	logger   *logrus.Logger
	now      func() time.Time

	mu     sync.Mutex
	entry  *entry
	flight singleflight.Group
}

type entry struct {
	items     []repo.Repo
	fetchedAt time.Time
	source    Source
}

// NewRepoCache 创建仓库缓存并校验依赖完整。
func NewRepoCache(opts Options) (*RepoCache, error) {
	if opts.Fetch == nil {
		return nil, errors.New("fetch function is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	fallback := opts.Fallback
	if fallback == nil {
		fallback = []repo.Repo{}
	}

	return &RepoCache{
		ttl:      ttl,
		fetch:    opts.Fetch,
		fallback: fallback,
		logger:   opts.Logger,
		now:      now,
	}, nil
}

// Get 返回当前可用的仓库列表，对调用方永不失败：TTL 窗口内直接命中；
// 窗口外先刷新，刷新失败时退回旧条目，从未填充过时退回兜底数据集。
// 同一过期窗口内的并发调用共享一次上游抓取。
func (c *RepoCache) Get(ctx context.Context) []repo.Repo {
	if items, ok := c.freshItems(); ok {
		return items
	}

	result, _, _ := c.flight.Do("repo-list", func() (interface{}, error) {
		return c.refresh(ctx), nil
	})
	return result.([]repo.Repo)
}

// freshItems 在锁内判断条目是否仍处于 TTL 窗口（严格小于）。
func (c *RepoCache) freshItems() ([]repo.Repo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry != nil && c.now().Sub(c.entry.fetchedAt) < c.ttl {
		return c.entry.items, true
	}
	return nil, false
}

// refresh 在 singleflight 内执行。先复查窗口，排队期间上一轮刷新可能刚完成；
// 失败路径同样盖戳 fetchedAt，上游持续故障时不会每个请求都打一次上游。
func (c *RepoCache) refresh(ctx context.Context) []repo.Repo {
	if items, ok := c.freshItems(); ok {
		return items
	}

	items, err := c.fetch(ctx)
	stamped := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		if items == nil {
			items = []repo.Repo{}
		}
		c.entry = &entry{items: items, fetchedAt: stamped, source: SourceLive}
		return items
	}

	c.logRefreshFailure(err)

	if c.entry != nil {
		c.entry = &entry{items: c.entry.items, fetchedAt: stamped, source: c.entry.source}
		return c.entry.items
	}

	c.entry = &entry{items: c.fallback, fetchedAt: stamped, source: SourceFallback}
	return c.entry.items
}

func (c *RepoCache) logRefreshFailure(err error) {
	c.logger.WithError(err).WithFields(logrus.Fields{
		"action": "repo_refresh",
		"ttl":    c.ttl.String(),
	}).Warn("仓库列表刷新失败，继续使用现有数据")
}

// Snapshot 描述缓存当前状态，供 /-/status 诊断输出。
type Snapshot struct {
	State      string     `json:"state"`
	ItemCount  int        `json:"item_count"`
	FetchedAt  *time.Time `json:"fetched_at,omitempty"`
	TTLSeconds int64      `json:"ttl_seconds"`
}

// Snapshot 返回状态快照；State 为 empty/live/fallback 之一。
func (c *RepoCache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:      "empty",
		TTLSeconds: int64(c.ttl / time.Second),
	}
	if c.entry != nil {
		fetchedAt := c.entry.fetchedAt
		snap.State = string(c.entry.source)
		snap.ItemCount = len(c.entry.items)
		snap.FetchedAt = &fetchedAt
	}
	return snap
}
