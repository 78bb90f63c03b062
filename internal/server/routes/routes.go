// Package routes 注册全部 HTTP 路由：主页、仓库 API、生成接口、
// 代理挂载与 /-/ 诊断端点。注册顺序固定：具体路由在前，代理挂载居中，
// 404 兜底最后。
package routes

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/repofolio/repofolio/internal/cache"
	"github.com/repofolio/repofolio/internal/config"
	"github.com/repofolio/repofolio/internal/server"
	"github.com/repofolio/repofolio/internal/version"
	"github.com/repofolio/repofolio/internal/web"
)

// Dependencies 汇集注册路由所需的全部组件，测试可以只注入关心的部分。
type Dependencies struct {
	Logger   *logrus.Logger
	Config   *config.Config
	Cache    *cache.RepoCache
	Renderer *web.Renderer
	Registry *server.UpstreamRegistry
	Proxy    server.UpstreamHandler
	Generate fiber.Handler
}

// Register wires every route onto the app.
func Register(app *fiber.App, deps Dependencies) error {
	if app == nil {
		return errors.New("app is required")
	}
	if deps.Logger == nil || deps.Config == nil || deps.Cache == nil || deps.Renderer == nil {
		return errors.New("logger, config, cache and renderer are required")
	}

	app.Get("/", indexHandler(deps))
	app.Get("/api/repos", reposHandler(deps))
	if deps.Config.Generate.Enabled() && deps.Generate != nil {
		app.Post("/api/generate", deps.Generate)
	}
	app.Get("/-/status", statusHandler(deps))

	if deps.Registry != nil && deps.Proxy != nil {
		for _, route := range deps.Registry.List() {
			wrap := proxyRouteHandler(deps.Proxy, route)
			app.All(route.Mount, wrap)
			app.All(route.Mount+"/*", wrap)
		}
	}

	app.Use(notFoundHandler(deps.Logger))
	return nil
}

func proxyRouteHandler(handler server.UpstreamHandler, route server.UpstreamRoute) fiber.Handler {
	return func(c fiber.Ctx) error {
		return handler.Handle(c, &route)
	}
}

func indexHandler(deps Dependencies) fiber.Handler {
	return func(c fiber.Ctx) error {
		repos := deps.Cache.Get(requestContext(c))

		// 先渲染到缓冲，模板出错时才能回复干净的 500。
		var buf bytes.Buffer
		err := deps.Renderer.RenderIndex(&buf, web.IndexData{
			User:  deps.Config.Github.User,
			Repos: repos,
			Count: len(repos),
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(buf.Bytes())
	}
}

func reposHandler(deps Dependencies) fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.JSON(deps.Cache.Get(requestContext(c)))
	}
}

func statusHandler(deps Dependencies) fiber.Handler {
	return func(c fiber.Ctx) error {
		payload := fiber.Map{
			"version":     version.Full(),
			"github_user": deps.Config.Github.User,
			"cache":       deps.Cache.Snapshot(),
			"proxies":     encodeMounts(deps.Registry),
		}
		if deps.Config.Generate.Enabled() {
			payload["generate_upstream"] = deps.Config.Generate.Upstream
		}
		return c.JSON(payload)
	}
}

type mountPayload struct {
	Name     string `json:"name"`
	Mount    string `json:"mount"`
	Upstream string `json:"upstream"`
}

func encodeMounts(registry *server.UpstreamRegistry) []mountPayload {
	if registry == nil {
		return nil
	}
	routes := registry.List()
	if len(routes) == 0 {
		return nil
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Config.Name < routes[j].Config.Name
	})
	result := make([]mountPayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, mountPayload{
			Name:     route.Config.Name,
			Mount:    route.Mount,
			Upstream: route.Config.Upstream,
		})
	}
	return result
}

func notFoundHandler(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		logger.WithFields(logrus.Fields{
			"action": "route_lookup",
			"method": c.Method(),
			"path":   string(c.Request().URI().Path()),
		}).Warn("route unmapped")

		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not_found",
		})
	}
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
