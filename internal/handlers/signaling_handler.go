package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/saeid-a/ConsultBack/internal/middleware"
	callws "github.com/saeid-a/ConsultBack/internal/websocket"
	"github.com/saeid-a/ConsultBack/pkg/utils"
)

type SignalingHandler struct {
	relay      *callws.Relay
	authorizer callws.RoomAuthorizer
	jwtSecret  string
	rateLimit  rate.Limit
	rateBurst  int
	log        zerolog.Logger
}

// NewSignalingHandler wires the relay to the session authorizer. A
// non-positive ratePerSecond disables per-connection rate limiting.
func NewSignalingHandler(
	relay *callws.Relay,
	authorizer callws.RoomAuthorizer,
	jwtSecret string,
	ratePerSecond float64,
	burst int,
	log zerolog.Logger,
) *SignalingHandler {
	return &SignalingHandler{
		relay:      relay,
		authorizer: authorizer,
		jwtSecret:  jwtSecret,
		rateLimit:  rate.Limit(ratePerSecond),
		rateBurst:  burst,
		log:        log.With().Str("component", "signaling").Logger(),
	}
}

// WebSocketAuth validates the token before the upgrade. Browsers cannot set
// headers on websocket requests, so the token may also come as ?token=.
func (h *SignalingHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *SignalingHandler) HandleWebSocket(conn *websocket.Conn) {
	userIDStr, _ := conn.Locals("user_id").(string)
	role, _ := conn.Locals("role").(string)
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID <= 0 {
		_ = conn.Close()
		return
	}

	var limiter *rate.Limiter
	if h.rateLimit > 0 {
		burst := h.rateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(h.rateLimit, burst)
	}

	client := callws.NewClient(h.relay, conn, userID, role, limiter)
	h.relay.Connect(client)
	h.log.Debug().Str("connection_id", client.ID).Int64("user_id", userID).Msg("signaling connected")

	go client.WritePump()
	client.ReadPump(context.Background(), h.authorizer)
}

func (h *SignalingHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		if bearer, ok := middleware.BearerToken(c.Get("Authorization")); ok {
			tokenString = bearer
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}
