package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/repofolio/repofolio/internal/cache"
	"github.com/repofolio/repofolio/internal/config"
	"github.com/repofolio/repofolio/internal/github"
	"github.com/repofolio/repofolio/internal/logging"
	"github.com/repofolio/repofolio/internal/proxy"
	"github.com/repofolio/repofolio/internal/repo"
	"github.com/repofolio/repofolio/internal/server"
	"github.com/repofolio/repofolio/internal/server/routes"
	"github.com/repofolio/repofolio/internal/version"
	"github.com/repofolio/repofolio/internal/web"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["github_user"] = cfg.Github.User
		fields["auth_mode"] = cfg.Github.AuthMode()
		fields["proxies"] = config.MountSummaries(cfg.Proxies)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	fetcher, err := github.NewFetcher(cfg.Github)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化 GitHub 客户端失败: %v\n", err)
		return 1
	}

	// 启动遵循“配置 → GitHub 拉取器 → 仓库缓存 → Fiber server”顺序，
	// 保证所有请求共享同一份缓存实例与路由注册表。
	repoCache, err := cache.NewRepoCache(cache.Options{
		TTL:      cfg.Global.CacheTTL.DurationValue(),
		Fetch:    fetcher.Fetch,
		Fallback: repo.Fallback(logger),
		Logger:   logger,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化仓库缓存失败: %v\n", err)
		return 1
	}

	registry, err := server.NewUpstreamRegistry(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "构建代理注册表失败: %v\n", err)
		return 1
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		fmt.Fprintf(stdErr, "解析页面模板失败: %v\n", err)
		return 1
	}

	httpClient := server.NewUpstreamClient(cfg)
	proxyHandler := proxy.NewHandler(httpClient, logger)

	var generateHandler fiber.Handler
	if cfg.Generate.Enabled() {
		generateHandler = proxy.NewGenerateHandler(httpClient, logger, cfg.Generate).Handle
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["github_user"] = cfg.Github.User
	fields["auth_mode"] = cfg.Github.AuthMode()
	fields["proxies"] = config.MountSummaries(cfg.Proxies)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["cache_ttl"] = cfg.Global.CacheTTL.DurationValue().String()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	deps := routes.Dependencies{
		Logger:   logger,
		Config:   cfg,
		Cache:    repoCache,
		Renderer: renderer,
		Registry: registry,
		Proxy:    proxyHandler,
		Generate: generateHandler,
	}
	if err := startHTTPServer(deps); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("repofolio", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 REPOFOLIO_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("REPOFOLIO_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(deps routes.Dependencies) error {
	port := deps.Config.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     deps.Logger,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	if err := routes.Register(app, deps); err != nil {
		return err
	}

	deps.Logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
