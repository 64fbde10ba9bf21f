package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ebooking/internal/mail"
	"github.com/iliyamo/cinema-ebooking/internal/validation"
)

// dbTimeout bounds the database work of a single request.
const dbTimeout = 5 * time.Second

// respondOK writes {ok:true} merged with payload.
func respondOK(c echo.Context, status int, payload echo.Map) error {
	body := echo.Map{"ok": true}
	for k, v := range payload {
		body[k] = v
	}
	return c.JSON(status, body)
}

// respondError writes the {ok:false, message} envelope.
func respondError(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"ok": false, "message": msg})
}

// serverError logs err with the request id and answers with a generic 500.
func serverError(c echo.Context, log *zap.Logger, op string, err error) error {
	log.Error(op+" failed",
		zap.Error(err),
		zap.String("path", c.Path()),
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
	return respondError(c, http.StatusInternalServerError, "internal server error")
}

// bindValid binds the request body into req and runs the validator.  It
// writes the 400 response itself and reports false when either step fails.
func bindValid(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, respondError(c, http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(req); err != nil {
		return false, respondError(c, http.StatusBadRequest, validation.Message(err))
	}
	return true, nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// queryUserID reads the userId query parameter used by the self-service
// endpoints.
func queryUserID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.QueryParam("userId"), 10, 64)
	return id, err == nil && id > 0
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// clock is swapped in tests.
type clock func() time.Time

func (f clock) now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f()
}

// notify hands a rendered message to the dispatcher.  Delivery problems are
// logged and never change the response.
func notify(ctx context.Context, d mail.Dispatcher, log *zap.Logger, m mail.Message, renderErr error) {
	err := renderErr
	if err == nil {
		err = d.Dispatch(ctx, m)
	}
	if err != nil {
		log.Warn("email dispatch failed", zap.String("kind", m.Kind), zap.String("to", m.To), zap.Error(err))
	}
}
