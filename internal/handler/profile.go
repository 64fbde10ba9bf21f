package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ebooking/internal/middleware"
	"github.com/iliyamo/cinema-ebooking/internal/model"
	"github.com/iliyamo/cinema-ebooking/internal/repository"
	"github.com/iliyamo/cinema-ebooking/internal/utils"
)

// ProfileHandler serves the self-service profile page.
type ProfileHandler struct {
	Users      *repository.UserRepo
	Addresses  *repository.AddressRepo
	Payments   *repository.PaymentMethodRepo
	Subs       *repository.SubscriptionRepo
	BcryptCost int
	Log        *zap.Logger
}

func NewProfileHandler(u *repository.UserRepo, a *repository.AddressRepo, p *repository.PaymentMethodRepo,
	s *repository.SubscriptionRepo, bcryptCost int, log *zap.Logger) *ProfileHandler {
	return &ProfileHandler{Users: u, Addresses: a, Payments: p, Subs: s, BcryptCost: bcryptCost, Log: log}
}

type addressPatchReq struct {
	Street     *string `json:"street"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	PostalCode *string `json:"postalCode"`
}

type cardPatchReq struct {
	Brand          *string   `json:"brand" validate:"omitempty,max=32"`
	Last4          *string   `json:"last4" validate:"omitempty,len=4,numeric"`
	ExpMonth       *looseInt `json:"expMonth" validate:"omitempty,min=1,max=12"`
	ExpYear        *looseInt `json:"expYear" validate:"omitempty,gte=0"`
	ProcessorToken *string   `json:"processorToken" validate:"omitempty,max=128"`
}

type selfProfileReq struct {
	FirstName      *string          `json:"firstName"`
	LastName       *string          `json:"lastName"`
	Phone          *string          `json:"phone"`
	BillingAddress *addressPatchReq `json:"billingAddress"`
	PaymentCard    *cardPatchReq    `json:"paymentCard"`
	Promotions     *bool            `json:"promotions"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,notblank"`
}

// profileUserID prefers the authenticated user and falls back to ?userId=.
func profileUserID(c echo.Context) (uint64, bool) {
	if id, ok := middleware.UserID(c); ok {
		return id, true
	}
	return queryUserID(c)
}

// Get returns names, contact details, the HOME address as billing address,
// the default card and the promotions flag.
func (h *ProfileHandler) Get(c echo.Context) error {
	userID, ok := profileUserID(c)
	if !ok {
		return respondError(c, http.StatusBadRequest, "userId required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusNotFound, "user not found")
	}
	if err != nil {
		return serverError(c, h.Log, "load user", err)
	}
	profile := echo.Map{
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"email":     u.Email,
		"phone":     u.Phone,
	}

	home, err := h.Addresses.GetByType(ctx, userID, model.AddressHome)
	switch {
	case err == nil:
		profile["billingAddress"] = echo.Map{
			"street":     home.Street,
			"city":       home.City,
			"state":      home.State,
			"postalCode": home.PostalCode,
		}
	case !errors.Is(err, repository.ErrNotFound):
		return serverError(c, h.Log, "load address", err)
	}

	card, err := h.Payments.GetDefault(ctx, userID)
	switch {
	case err == nil:
		profile["paymentCard"] = echo.Map{
			"brand":    card.Brand,
			"last4":    card.Last4,
			"expMonth": card.ExpMonth,
			"expYear":  card.ExpYear,
		}
	case !errors.Is(err, repository.ErrNotFound):
		return serverError(c, h.Log, "load default card", err)
	}

	promotions, err := h.Subs.IsSubscribed(ctx, userID)
	if err != nil {
		return serverError(c, h.Log, "load subscription", err)
	}
	profile["promotions"] = promotions
	return respondOK(c, http.StatusOK, profile)
}

// Update applies the self-service edit in one transaction.
func (h *ProfileHandler) Update(c echo.Context) error {
	userID, ok := profileUserID(c)
	if !ok {
		return respondError(c, http.StatusBadRequest, "userId required")
	}
	var req selfProfileReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	up := repository.SelfProfileUpdate{
		Fields:     repository.ProfileFields{FirstName: req.FirstName, LastName: req.LastName, Phone: req.Phone},
		Promotions: req.Promotions,
	}
	if a := req.BillingAddress; a != nil {
		up.Home = &repository.AddressPatch{Street: a.Street, City: a.City, State: a.State, PostalCode: a.PostalCode}
	}
	if p := req.PaymentCard; p != nil {
		up.Card = &repository.CardPatch{
			Brand:         p.Brand,
			Last4:         p.Last4,
			ProviderToken: p.ProcessorToken,
			ExpMonth:      p.ExpMonth.intPtr(),
			ExpYear:       p.ExpYear.intPtr(),
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	err := h.Users.UpdateSelfProfile(ctx, userID, up)
	var lim *repository.LimitError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return respondError(c, http.StatusNotFound, "user not found")
	case errors.As(err, &lim):
		return c.JSON(http.StatusConflict, limitBody(lim))
	case err != nil:
		return serverError(c, h.Log, "update profile", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"message": "Profile updated successfully"})
}

// ChangePassword replaces the password after checking the current one.
func (h *ProfileHandler) ChangePassword(c echo.Context) error {
	userID, ok := profileUserID(c)
	if !ok {
		return respondError(c, http.StatusBadRequest, "userId required")
	}
	var req changePasswordReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusNotFound, "user not found")
	}
	if err != nil {
		return serverError(c, h.Log, "load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return respondError(c, http.StatusUnauthorized, "Current password is incorrect")
	}
	hash, err := utils.HashPassword(req.NewPassword, h.BcryptCost)
	if err != nil {
		return serverError(c, h.Log, "hash password", err)
	}
	if _, err := h.Users.UpdateFields(ctx, userID, "", repository.ProfileFields{PasswordHash: hash}); err != nil {
		return serverError(c, h.Log, "update password", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"message": "Password changed successfully"})
}
