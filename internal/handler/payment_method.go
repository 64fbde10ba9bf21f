package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ebooking/internal/model"
	"github.com/iliyamo/cinema-ebooking/internal/repository"
)

// PaymentMethodHandler manages stored card metadata.
type PaymentMethodHandler struct {
	Payments *repository.PaymentMethodRepo
	Log      *zap.Logger
}

func NewPaymentMethodHandler(p *repository.PaymentMethodRepo, log *zap.Logger) *PaymentMethodHandler {
	return &PaymentMethodHandler{Payments: p, Log: log}
}

type createPaymentReq struct {
	UserID         uint64    `json:"user_id"`
	Provider       string    `json:"provider" validate:"omitempty,max=32"`
	ProviderToken  string    `json:"provider_token" validate:"omitempty,max=128"`
	Brand          string    `json:"brand" validate:"omitempty,max=32"`
	Last4          string    `json:"last4" validate:"omitempty,max=4"`
	ExpMonth       *looseInt `json:"exp_month" validate:"omitempty,min=1,max=12"`
	ExpYear        *looseInt `json:"exp_year" validate:"omitempty,gte=0"`
	BillingAddress string    `json:"billing_address"`
}

type updatePaymentReq struct {
	BillingAddress *string `json:"billing_address"`
}

// limitBody is the rejection for a user already holding the maximum number
// of payment methods.
func limitBody(lim *repository.LimitError) echo.Map {
	return echo.Map{
		"ok":      false,
		"message": "limit reached: a user may have up to 3 payment methods",
		"limit":   lim.Limit,
		"current": lim.Current,
	}
}

// List returns the user's payment methods, newest first.
func (h *PaymentMethodHandler) List(c echo.Context) error {
	userID, ok := queryUserID(c)
	if !ok {
		return respondError(c, http.StatusBadRequest, "userId required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	methods, err := h.Payments.ListByUser(ctx, userID)
	if err != nil {
		return serverError(c, h.Log, "list payment methods", err)
	}
	if methods == nil {
		methods = []model.PaymentMethod{}
	}
	return respondOK(c, http.StatusOK, echo.Map{"methods": methods})
}

// Create stores a new method unless the user is at the limit.
func (h *PaymentMethodHandler) Create(c echo.Context) error {
	var req createPaymentReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if req.UserID == 0 || strings.TrimSpace(req.ProviderToken) == "" {
		return respondError(c, http.StatusBadRequest, "user_id and provider_token are required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	id, err := h.Payments.Create(ctx, model.PaymentMethod{
		UserID:         req.UserID,
		Provider:       strings.TrimSpace(req.Provider),
		ProviderToken:  strings.TrimSpace(req.ProviderToken),
		Brand:          req.Brand,
		Last4:          req.Last4,
		ExpMonth:       req.ExpMonth.intPtr(),
		ExpYear:        req.ExpYear.intPtr(),
		BillingAddress: req.BillingAddress,
	})
	var lim *repository.LimitError
	if errors.As(err, &lim) {
		return c.JSON(http.StatusConflict, limitBody(lim))
	}
	if err != nil {
		return serverError(c, h.Log, "create payment method", err)
	}

	method, err := h.Payments.GetByID(ctx, id)
	if err != nil {
		return serverError(c, h.Log, "reload payment method", err)
	}
	return respondOK(c, http.StatusCreated, echo.Map{"message": "saved", "method": method})
}

// Update changes the billing address, the only mutable field.
func (h *PaymentMethodHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}
	var req updatePaymentReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid body")
	}
	if req.BillingAddress == nil {
		return respondError(c, http.StatusBadRequest, "billing_address is required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Payments.UpdateBillingAddress(ctx, id, *req.BillingAddress); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "Payment method not found")
		}
		return serverError(c, h.Log, "update payment method", err)
	}
	method, err := h.Payments.GetByID(ctx, id)
	if err != nil {
		return serverError(c, h.Log, "reload payment method", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"message": "updated", "method": method})
}

// Delete removes a method and reports how many rows went.
func (h *PaymentMethodHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.Payments.Delete(ctx, id)
	if err != nil {
		return serverError(c, h.Log, "delete payment method", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"deleted": n})
}
