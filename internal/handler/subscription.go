package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ebooking/internal/mail"
	"github.com/iliyamo/cinema-ebooking/internal/repository"
)

// SubscriptionHandler lists promotion subscribers and fans promotions out to
// them by email.
type SubscriptionHandler struct {
	Subs       *repository.SubscriptionRepo
	Promotions *repository.PromotionRepo
	Mail       mail.Dispatcher
	Log        *zap.Logger
}

func NewSubscriptionHandler(s *repository.SubscriptionRepo, p *repository.PromotionRepo, d mail.Dispatcher, log *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{Subs: s, Promotions: p, Mail: d, Log: log}
}

// SubscribedUsers returns users who opted in to promotions.
func (h *SubscriptionHandler) SubscribedUsers(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := h.Subs.Subscribers(ctx)
	if err != nil {
		return serverError(c, h.Log, "list subscribers", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"users": users})
}

// SendPromotion emails the promotion to every subscriber.  The first
// dispatch error stops the loop; the response then carries the number of
// messages handed off before it.
func (h *SubscriptionHandler) SendPromotion(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	subs, err := h.Subs.Subscribers(ctx)
	if err != nil {
		return serverError(c, h.Log, "list subscribers", err)
	}
	if len(subs) == 0 {
		return respondOK(c, http.StatusOK, echo.Map{
			"status":    "no_subscribers",
			"message":   "No subscribed users found.",
			"sentCount": 0,
		})
	}

	p, err := h.Promotions.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusNotFound, "promotion not found")
	}
	if err != nil {
		return serverError(c, h.Log, "load promotion", err)
	}

	// Dispatch is not bound by the database timeout.
	sendCtx := c.Request().Context()
	sent := 0
	for _, s := range subs {
		msg, err := mail.Promotion(s.Email, s.FirstName, p)
		if err == nil {
			err = h.Mail.Dispatch(sendCtx, msg)
		}
		if err != nil {
			h.Log.Error("promotion fan-out aborted",
				zap.Uint64("promotion_id", id), zap.Int("sent", sent), zap.String("to", s.Email), zap.Error(err))
			return c.JSON(http.StatusBadGateway, echo.Map{
				"ok":        false,
				"status":    "error",
				"message":   "failed to send promotion to " + s.Email,
				"sentCount": sent,
			})
		}
		sent++
	}
	h.Log.Info("promotion sent", zap.Uint64("promotion_id", id), zap.Int("sent", sent))
	return respondOK(c, http.StatusOK, echo.Map{
		"status":    "success",
		"message":   "Promotion emails sent successfully.",
		"sentCount": sent,
	})
}
