package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UpstreamHandler describes the component responsible for proxying requests
// to a mounted upstream API. It allows injecting fake handlers during tests.
type UpstreamHandler interface {
	Handle(fiber.Ctx, *UpstreamRoute) error
}

// UpstreamHandlerFunc adapts a function to the UpstreamHandler interface.
type UpstreamHandlerFunc func(fiber.Ctx, *UpstreamRoute) error

// Handle makes UpstreamHandlerFunc satisfy UpstreamHandler.
func (f UpstreamHandlerFunc) Handle(c fiber.Ctx, route *UpstreamRoute) error {
	return f(c, route)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	ListenPort int
}

const contextKeyRequestID = "_repofolio_request_id"

// NewApp builds a Fiber application with panic recovery, request ID
// middleware and structured error handling. Routes are registered
// separately so tests can wire handlers piecemeal.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  newErrorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	return app, nil
}

// requestIDMiddleware 负责为每个请求生成 ID，并同步写入响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// newErrorHandler 将未处理错误统一渲染为 JSON，并输出结构化日志。
func newErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}

		fields := logrus.Fields{
			"action": "request_error",
			"path":   string(c.Request().URI().Path()),
			"status": status,
		}
		if reqID := RequestID(c); reqID != "" {
			fields["request_id"] = reqID
		}
		logger.WithError(err).WithFields(fields).Error("request failed")

		return c.Status(status).JSON(fiber.Map{
			"error": "request_failed",
		})
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
