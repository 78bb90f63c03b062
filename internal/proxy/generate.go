package proxy

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/repofolio/repofolio/internal/config"
	"github.com/repofolio/repofolio/internal/server"
)

// GenerateHandler 把 /api/generate 的请求体转发到配置的生成上游，
// 成功响应可按 gjson 路径抽取正文，方便前端直接拿纯文本结果。
type GenerateHandler struct {
	client *http.Client
	logger *logrus.Logger
	cfg    config.GenerateConfig
}

// NewGenerateHandler constructs the generate passthrough handler.
func NewGenerateHandler(client *http.Client, logger *logrus.Logger, cfg config.GenerateConfig) *GenerateHandler {
	return &GenerateHandler{
		client: client,
		logger: logger,
		cfg:    cfg,
	}
}

// Handle 校验请求体大小后向上游发起 POST；任何转发失败都回复 502。
func (h *GenerateHandler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)

	body := c.Body()
	if h.cfg.MaxBodyBytes > 0 && int64(len(body)) > h.cfg.MaxBodyBytes {
		h.logRejected(requestID, len(body))
		return writeError(c, fiber.StatusRequestEntityTooLarge, "body_too_large")
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.Upstream, bytesReader(body))
	if err != nil {
		h.logResult(requestID, 0, started, err)
		return writeError(c, fiber.StatusBadGateway, "upstream_failed")
	}
	if contentType := c.Get(fiber.HeaderContentType); contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	} else {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logResult(requestID, 0, started, err)
		return writeError(c, fiber.StatusBadGateway, "upstream_failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		h.logResult(requestID, resp.StatusCode, started, err)
		return writeError(c, fiber.StatusBadGateway, "upstream_failed")
	}

	if isSuccessStatus(resp.StatusCode) && h.cfg.ResponseTextPath != "" {
		if value := gjson.GetBytes(payload, h.cfg.ResponseTextPath); value.Exists() {
			c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
			c.Status(resp.StatusCode)
			h.logResult(requestID, resp.StatusCode, started, nil)
			return c.SendString(value.String())
		}
	}

	copyResponseHeaders(c, resp.Header)
	c.Status(resp.StatusCode)
	h.logResult(requestID, resp.StatusCode, started, nil)
	return c.Send(payload)
}

func isSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}

func (h *GenerateHandler) logRejected(requestID string, bodyBytes int) {
	fields := logrus.Fields{
		"action":     "generate",
		"error":      "body_too_large",
		"body_bytes": bodyBytes,
		"max_bytes":  h.cfg.MaxBodyBytes,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	h.logger.WithFields(fields).Warn("generate_rejected")
}

func (h *GenerateHandler) logResult(requestID string, status int, started time.Time, err error) {
	fields := logrus.Fields{
		"action":          "generate",
		"upstream":        h.cfg.Upstream,
		"upstream_status": status,
		"elapsed_ms":      time.Since(started).Milliseconds(),
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("generate_failed")
		return
	}
	h.logger.WithFields(fields).Info("generate_complete")
}
