package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ebooking/internal/model"
	"github.com/iliyamo/cinema-ebooking/internal/repository"
)

// PromotionHandler manages discount campaigns and their codes.
type PromotionHandler struct {
	Promotions *repository.PromotionRepo
	Log        *zap.Logger
}

func NewPromotionHandler(p *repository.PromotionRepo, log *zap.Logger) *PromotionHandler {
	return &PromotionHandler{Promotions: p, Log: log}
}

type promotionReq struct {
	Name         string    `json:"name" validate:"required,notblank"`
	Description  string    `json:"description"`
	PercentOff   *float64  `json:"percent_off" validate:"omitempty,gt=0,lte=100"`
	FlatOffCents *int      `json:"flat_off_cents" validate:"omitempty,gte=0"`
	StartsAt     time.Time `json:"starts_at" validate:"required"`
	EndsAt       time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Active       *bool     `json:"active"`
}

func (r promotionReq) model(id uint64) model.Promotion {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return model.Promotion{
		ID:           id,
		Name:         strings.TrimSpace(r.Name),
		Description:  r.Description,
		PercentOff:   r.PercentOff,
		FlatOffCents: r.FlatOffCents,
		StartsAt:     r.StartsAt,
		EndsAt:       r.EndsAt,
		Active:       active,
	}
}

// promotionDetail always carries codes, even when there are none.
type promotionDetail struct {
	model.Promotion
	Codes []model.PromotionCode `json:"codes"`
}

type promotionCodeReq struct {
	Code           string `json:"code" validate:"required,notblank,max=64"`
	MaxRedemptions *int   `json:"max_redemptions" validate:"omitempty,gte=0"`
}

// List returns every promotion, newest start first.
func (h *PromotionHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	promotions, err := h.Promotions.List(ctx)
	if err != nil {
		return serverError(c, h.Log, "list promotions", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"promotions": promotions})
}

// Get returns a promotion with its codes.
func (h *PromotionHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Promotions.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusNotFound, "promotion not found")
	}
	if err != nil {
		return serverError(c, h.Log, "load promotion", err)
	}
	detail := promotionDetail{Promotion: p, Codes: p.Codes}
	if detail.Codes == nil {
		detail.Codes = []model.PromotionCode{}
	}
	return respondOK(c, http.StatusOK, echo.Map{"promotion": detail})
}

// Create stores a new promotion.
func (h *PromotionHandler) Create(c echo.Context) error {
	var req promotionReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	p := req.model(0)
	id, err := h.Promotions.Create(ctx, p)
	if err != nil {
		return serverError(c, h.Log, "create promotion", err)
	}
	p.ID = id
	return respondOK(c, http.StatusCreated, echo.Map{"message": "Promotion created successfully", "promotion": p})
}

// Update overwrites a promotion.
func (h *PromotionHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}
	var req promotionReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	p := req.model(id)
	if err := h.Promotions.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "promotion not found")
		}
		return serverError(c, h.Log, "update promotion", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"message": "Promotion updated successfully", "promotion": p})
}

// Delete removes a promotion and its codes.
func (h *PromotionHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Promotions.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "promotion not found")
		}
		return serverError(c, h.Log, "delete promotion", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"message": "Promotion deleted successfully"})
}

// ListCodes returns the redemption codes of a promotion.
func (h *PromotionHandler) ListCodes(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	codes, err := h.Promotions.ListCodes(ctx, id)
	if err != nil {
		return serverError(c, h.Log, "list promotion codes", err)
	}
	if codes == nil {
		codes = []model.PromotionCode{}
	}
	return respondOK(c, http.StatusOK, echo.Map{"codes": codes})
}

// AddCode attaches a redemption code.
func (h *PromotionHandler) AddCode(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}
	var req promotionCodeReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	code := model.PromotionCode{PromotionID: id, Code: strings.TrimSpace(req.Code), MaxRedemptions: req.MaxRedemptions}
	codeID, err := h.Promotions.AddCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusNotFound, "promotion not found")
	}
	if err != nil {
		return serverError(c, h.Log, "add promotion code", err)
	}
	code.ID = codeID
	return respondOK(c, http.StatusCreated, echo.Map{"message": "Code added successfully", "code": code})
}

// DeleteCode removes a redemption code.
func (h *PromotionHandler) DeleteCode(c echo.Context) error {
	id, ok := pathID(c, "codeId")
	if !ok {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Promotions.DeleteCode(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "code not found")
		}
		return serverError(c, h.Log, "delete promotion code", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"message": "Code deleted successfully"})
}
