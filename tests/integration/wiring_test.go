package integration

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/repofolio/repofolio/internal/cache"
	"github.com/repofolio/repofolio/internal/config"
	"github.com/repofolio/repofolio/internal/github"
	"github.com/repofolio/repofolio/internal/proxy"
	"github.com/repofolio/repofolio/internal/repo"
	"github.com/repofolio/repofolio/internal/server"
	"github.com/repofolio/repofolio/internal/server/routes"
	"github.com/repofolio/repofolio/internal/web"
)

// testClock 提供可手动推进的时钟，避免集成测试依赖真实时间。
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1700000000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// buildApp 按 main.go 的装配顺序组装完整应用：配置 → GitHub 拉取器 →
// 仓库缓存 → 注册表/渲染器/代理 → 路由。
func buildApp(t *testing.T, cfg *config.Config, clock *testClock) *fiber.App {
	t.Helper()

	logger := discardLogger()

	fetcher, err := github.NewFetcher(cfg.Github)
	if err != nil {
		t.Fatalf("fetcher error: %v", err)
	}

	cacheOpts := cache.Options{
		TTL:      cfg.Global.CacheTTL.DurationValue(),
		Fetch:    fetcher.Fetch,
		Fallback: repo.Fallback(logger),
		Logger:   logger,
	}
	if clock != nil {
		cacheOpts.Now = clock.Now
	}
	repoCache, err := cache.NewRepoCache(cacheOpts)
	if err != nil {
		t.Fatalf("cache error: %v", err)
	}

	registry, err := server.NewUpstreamRegistry(cfg)
	if err != nil {
		t.Fatalf("registry error: %v", err)
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("renderer error: %v", err)
	}

	client := server.NewUpstreamClient(cfg)

	var generateHandler fiber.Handler
	if cfg.Generate.Enabled() {
		generateHandler = proxy.NewGenerateHandler(client, logger, cfg.Generate).Handle
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}

	err = routes.Register(app, routes.Dependencies{
		Logger:   logger,
		Config:   cfg,
		Cache:    repoCache,
		Renderer: renderer,
		Registry: registry,
		Proxy:    proxy.NewHandler(client, logger),
		Generate: generateHandler,
	})
	if err != nil {
		t.Fatalf("route registration error: %v", err)
	}

	return app
}
