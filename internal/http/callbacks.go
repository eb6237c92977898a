package http

import (
	"fmt"
	"net/http"

	"github.com/jmehdipour/sms-forwarder/internal/model"
	"github.com/jmehdipour/sms-forwarder/internal/service/events"
	"github.com/jmehdipour/sms-forwarder/internal/twiml"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// callback wraps a provider-facing handler: any error or panic becomes a plain-text 500 carrying failMsg.
func callback(failMsg string, logger *zap.Logger, h echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error(failMsg,
				zap.String("path", c.Path()), zap.Error(fmt.Errorf("panic: %v", r)), zap.Stack("stack"))
			if !c.Response().Committed {
				err = c.String(http.StatusInternalServerError, failMsg)
			}
		}()

		if err := h(c); err != nil {
			logger.Error(failMsg, zap.String("path", c.Path()), zap.Error(err))
			return c.String(http.StatusInternalServerError, failMsg)
		}
		return nil
	}
}

func smsHandler(svc *events.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in model.InboundSMS
		if err := c.Bind(&in); err != nil {
			return fmt.Errorf("bind sms: %w", err)
		}

		svc.HandleSMS(c.Request().Context(), in)

		return c.Blob(http.StatusOK, twiml.ContentType, []byte(twiml.Empty))
	}
}

func voiceHandler(svc *events.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in model.InboundCall
		if err := c.Bind(&in); err != nil {
			return fmt.Errorf("bind call: %w", err)
		}

		doc, err := svc.HandleVoice(c.Request().Context(), in)
		if err != nil {
			return fmt.Errorf("render forward: %w", err)
		}

		return c.Blob(http.StatusOK, twiml.ContentType, doc)
	}
}

func callStatusHandler(svc *events.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in model.CallStatusUpdate
		if err := c.Bind(&in); err != nil {
			return fmt.Errorf("bind call status: %w", err)
		}

		svc.HandleCallStatus(c.Request().Context(), in)

		return c.String(http.StatusOK, "OK")
	}
}
