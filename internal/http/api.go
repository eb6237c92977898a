package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jmehdipour/sms-forwarder/internal/model"
	"github.com/jmehdipour/sms-forwarder/internal/repository"
	"github.com/jmehdipour/sms-forwarder/internal/service/events"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type registerTokenReq struct {
	Token string `json:"token"`
}

func apiError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]any{"success": false, "error": msg})
}

func summaryHandler(msgs repository.MessagesRepository, tokens repository.TokensRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		total, _ := msgs.Counts()
		return c.JSON(http.StatusOK, map[string]any{
			"status": "running",
			"endpoints": map[string]string{
				"sms":        "/sms",
				"voice":      "/voice",
				"callStatus": "/call-status",
				"api":        "/api/messages",
				"pushToken":  "/api/register-push-token",
				"testPush":   "/api/test-push",
			},
			"registeredDevices": tokens.Len(),
			"messageCount":      total,
		})
	}
}

func listMessagesHandler(msgs repository.MessagesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		all := msgs.All()
		return c.JSON(http.StatusOK, map[string]any{
			"success":  true,
			"messages": all,
			"count":    len(all),
		})
	}
}

func countMessagesHandler(msgs repository.MessagesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		total, unread := msgs.Counts()
		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"total":   total,
			"unread":  unread,
		})
	}
}

func markReadHandler(msgs repository.MessagesRepository, logger *zap.Logger) echo.HandlerFunc {
	return markHandler(msgs.MarkRead, "Message marked as read", "Failed to mark message as read", logger)
}

func markRepliedHandler(msgs repository.MessagesRepository, logger *zap.Logger) echo.HandlerFunc {
	return markHandler(msgs.MarkReplied, "Message marked as replied", "Failed to mark message as replied", logger)
}

func markHandler(mark func(id string) (model.Message, error), okMsg, failMsg string, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if _, err := mark(id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apiError(c, http.StatusNotFound, "Message not found")
			}
			logger.Error(failMsg, zap.String("id", id), zap.Error(err))
			return apiError(c, http.StatusInternalServerError, failMsg)
		}

		return c.JSON(http.StatusOK, map[string]any{"success": true, "message": okMsg})
	}
}

func registerTokenHandler(tokens repository.TokensRepository, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registerTokenReq
		if err := c.Bind(&req); err != nil {
			return apiError(c, http.StatusBadRequest, "Push token is required")
		}

		n, err := tokens.Register(req.Token)
		if err != nil {
			if errors.Is(err, repository.ErrInvalidInput) {
				return apiError(c, http.StatusBadRequest, "Push token is required")
			}
			logger.Error("register push token failed", zap.Error(err))
			return apiError(c, http.StatusInternalServerError, "Failed to register push token")
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success":          true,
			"message":          "Push token registered successfully",
			"registeredTokens": n,
		})
	}
}

func testPushHandler(svc *events.Service, tokens repository.TokensRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		svc.SendTestNotification(c.Request().Context())

		// counted after dispatch, so pruned devices are not included
		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"message": fmt.Sprintf("Test notification sent to %d devices", tokens.Len()),
		})
	}
}
