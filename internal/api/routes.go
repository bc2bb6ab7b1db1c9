// Package api exposes the read-only diagnostics surface of the speaker.
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
	"github.com/satriahrh/smartspeaker/internal/auth"
	"github.com/satriahrh/smartspeaker/internal/capture"
	"github.com/satriahrh/smartspeaker/internal/conversation"
	"github.com/satriahrh/smartspeaker/internal/websocket"
)

const subjectKey = "subject"

// SessionSource reports the current listening session
type SessionSource interface {
	Current() *entities.Session
}

// Dependencies are the components the diagnostics routes read from
type Dependencies struct {
	Hub          *websocket.Hub
	Driver       repositories.CaptureDriver
	Conversation *conversation.Context
	Sessions     SessionSource
	// Muted reports the capture mute state
	Muted func() bool
	// Tokens enables bearer authentication when set
	Tokens *auth.TokenService
	Logger *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	logger := deps.Logger

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return health(c, deps)
	})

	protected := requireOperator(deps.Tokens, logger)

	e.GET("/devices", func(c echo.Context) error {
		return listDevices(c, deps.Driver, logger)
	}, protected)

	// API v1 routes
	v1 := e.Group("/api/v1", protected)
	v1.GET("/history/:userID", func(c echo.Context) error {
		return getHistory(c, deps.Conversation)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		if !websocket.UpgradeAllowed(c.Request()) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "upgrade_required",
				Message: "WebSocket handshake expected",
			})
		}
		subject, _ := c.Get(subjectKey).(string)
		return websocket.HandleWebSocket(deps.Hub, c, subject, logger)
	}, protected)
}

func health(c echo.Context, deps Dependencies) error {
	resp := HealthResponse{Status: "ok", Service: "smartspeaker"}
	if deps.Muted != nil {
		resp.Muted = deps.Muted()
	}
	if deps.Sessions != nil {
		if s := deps.Sessions.Current(); s != nil {
			info := s.Info()
			resp.Session = &info
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func listDevices(c echo.Context, driver repositories.CaptureDriver, logger *zap.Logger) error {
	devices, err := capture.ListDevices(driver)
	if err != nil {
		logger.Error("Failed to list devices", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "device_listing_failed",
			Message: "Failed to enumerate audio devices",
		})
	}
	return c.JSON(http.StatusOK, DevicesResponse{Devices: devices})
}

func getHistory(c echo.Context, conv *conversation.Context) error {
	userID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_user_id",
			Message: "User ID must be an integer",
		})
	}

	turns := conv.Window(c.Request().Context(), userID)
	return c.JSON(http.StatusOK, HistoryResponse{
		UserID:        userID,
		HistoryLength: conv.HistoryLength(),
		Turns:         turns,
	})
}

// requireOperator checks the bearer token when a token service is configured
func requireOperator(tokens *auth.TokenService, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if tokens == nil {
				c.Set(subjectKey, "anonymous")
				return next(c)
			}

			// Extract JWT token from Authorization header only
			var token string
			authHeader := c.Request().Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}

			if token == "" {
				logger.Warn("Request rejected: missing token", zap.String("path", c.Path()))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "JWT token is required in Authorization header",
				})
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				logger.Warn("Request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired JWT token",
				})
			}

			if claims.Role != auth.RoleOperator {
				logger.Warn("Request rejected: invalid role", zap.String("role", claims.Role))
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "invalid_role",
					Message: "Only operator tokens are accepted",
				})
			}

			c.Set(subjectKey, claims.Subject)
			return next(c)
		}
	}
}
