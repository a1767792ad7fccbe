package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain/repositories"
	"github.com/satriahrh/mirrorvoice/internal/auth"
	"github.com/satriahrh/mirrorvoice/internal/observability"
	"github.com/satriahrh/mirrorvoice/internal/websocket"
)

const (
	defaultConversationLimit = 20
	maxConversationLimit     = 200
)

// Dependencies groups what the HTTP surface reads from. Archive and Tokens
// may be nil.
type Dependencies struct {
	Hub     *websocket.Hub
	Status  StatusSource
	History HistorySource
	Archive repositories.TurnArchive
	Tokens  *auth.TokenIssuer
	Metrics *observability.Metrics
	Version string
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: "mirrorvoice",
			Version: deps.Version,
		})
	})

	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, deps.Status.Snapshot())
	})

	v1.GET("/history", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HistoryResponse{
			Turns:    deps.History.Turns(),
			Capacity: deps.History.Capacity(),
		})
	})

	v1.GET("/conversations", func(c echo.Context) error {
		return getConversations(c, deps.Archive, logger)
	})

	// WebSocket endpoint, token required only when a secret is configured
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(deps.Hub, deps.Tokens, c, logger)
	})
}

func getConversations(c echo.Context, archive repositories.TurnArchive, logger *zap.Logger) error {
	limit := defaultConversationLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
			})
		}
		limit = n
	}
	if limit > maxConversationLimit {
		limit = maxConversationLimit
	}

	if archive == nil {
		return c.JSON(http.StatusOK, ConversationsResponse{Conversations: []repositories.TurnRecord{}})
	}

	records, err := archive.Recent(c.Request().Context(), limit)
	if err != nil {
		logger.Error("Failed to load archived conversations", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "archive_unavailable",
			Message: "Failed to load conversations",
		})
	}
	if records == nil {
		records = []repositories.TurnRecord{}
	}

	return c.JSON(http.StatusOK, ConversationsResponse{Conversations: records, Archived: true})
}

// websocketWithAuth validates the display token, when required, and hands the
// connection to the hub
func websocketWithAuth(hub *websocket.Hub, tokens *auth.TokenIssuer, c echo.Context, logger *zap.Logger) error {
	if !tokens.Enabled() {
		return websocket.HandleWebSocket(hub, c, "", logger)
	}

	token := c.QueryParam("token")
	if token == "" {
		authHeader := c.Request().Header.Get("Authorization")
		token = strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			token = ""
		}
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in the token query parameter or Authorization header",
		})
	}

	claims, err := tokens.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("client_id", claims.ClientID),
		zap.String("role", claims.Role))

	return websocket.HandleWebSocket(hub, c, claims.ClientID, logger)
}
