package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/saeid-a/ConsultBack/internal/metrics"
	callws "github.com/saeid-a/ConsultBack/internal/websocket"
	"github.com/saeid-a/ConsultBack/pkg/utils"
)

func newSignalingTestApp(t *testing.T) *fiber.App {
	t.Helper()
	relay := callws.NewRelay(2, metrics.Noop{}, zerolog.Nop())
	handler := NewSignalingHandler(relay, nil, "test-secret", 20, 40, zerolog.Nop())

	app := fiber.New()
	app.Use("/ws/call", handler.WebSocketAuth)
	app.Get("/ws/call", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": c.Locals("user_id"), "role": c.Locals("role")})
	})
	return app
}

func upgradeRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	return req
}

func TestWebSocketAuthRequiresUpgrade(t *testing.T) {
	app := newSignalingTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws/call", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
}

func TestWebSocketAuthRejectsMissingToken(t *testing.T) {
	app := newSignalingTestApp(t)

	resp, err := app.Test(upgradeRequest("/ws/call"))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestWebSocketAuthAcceptsQueryToken(t *testing.T) {
	token, err := utils.GenerateToken("42", "patient", "test-secret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	app := newSignalingTestApp(t)

	resp, err := app.Test(upgradeRequest("/ws/call?token=" + token))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWebSocketAuthAcceptsBearerHeader(t *testing.T) {
	token, err := utils.GenerateToken("10", "doctor", "test-secret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	app := newSignalingTestApp(t)

	req := upgradeRequest("/ws/call")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWebSocketAuthRejectsWrongSecret(t *testing.T) {
	token, err := utils.GenerateToken("42", "patient", "other-secret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	app := newSignalingTestApp(t)

	resp, err := app.Test(upgradeRequest("/ws/call?token=" + token))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
