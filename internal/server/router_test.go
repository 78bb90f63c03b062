package server

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

func newRouterTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := NewApp(AppOptions{Logger: logger, ListenPort: 5000})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}

func TestNewAppValidatesOptions(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if _, err := NewApp(AppOptions{ListenPort: 5000}); err == nil {
		t.Fatal("expected error when logger is missing")
	}
	if _, err := NewApp(AppOptions{Logger: logger, ListenPort: 0}); err == nil {
		t.Fatal("expected error when listen port is invalid")
	}
}

func TestRequestIDMiddlewareTagsEveryRequest(t *testing.T) {
	app := newRouterTestApp(t)
	app.Get("/ping", func(c fiber.Ctx) error {
		return c.SendString(RequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	header := resp.Header.Get("X-Request-ID")
	if header == "" {
		t.Fatal("expected X-Request-ID header to be set")
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != header {
		t.Fatalf("handler saw request ID %q while header carries %q", string(body), header)
	}
}

func TestErrorHandlerRendersJSON(t *testing.T) {
	app := newRouterTestApp(t)
	app.Get("/boom", func(c fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadGateway, "stream interrupted")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Fatalf("expected 502 status, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"request_failed"`)) {
		t.Fatalf("expected request_failed error, got %s", string(body))
	}
}

func TestUpstreamHandlerFuncAdapts(t *testing.T) {
	var seen string
	handler := UpstreamHandlerFunc(func(c fiber.Ctx, route *UpstreamRoute) error {
		seen = route.Mount
		return c.SendStatus(fiber.StatusNoContent)
	})

	app := newRouterTestApp(t)
	route := &UpstreamRoute{Mount: "/apihub"}
	app.Get("/apihub", func(c fiber.Ctx) error {
		return handler.Handle(c, route)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/apihub", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204 status, got %d", resp.StatusCode)
	}
	if seen != "/apihub" {
		t.Fatalf("expected handler to receive /apihub route, got %q", seen)
	}
}
