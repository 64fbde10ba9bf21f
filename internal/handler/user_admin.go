package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ebooking/internal/model"
	"github.com/iliyamo/cinema-ebooking/internal/repository"
	"github.com/iliyamo/cinema-ebooking/internal/utils"
)

// UserAdminHandler is the admin user management API.
type UserAdminHandler struct {
	Users      *repository.UserRepo
	BcryptCost int
	Log        *zap.Logger
	Clock      clock
}

func NewUserAdminHandler(u *repository.UserRepo, bcryptCost int, log *zap.Logger) *UserAdminHandler {
	return &UserAdminHandler{Users: u, BcryptCost: bcryptCost, Log: log}
}

type adminUserUpdateReq struct {
	FirstName   *string `json:"first_name" validate:"omitempty,notblank"`
	LastName    *string `json:"last_name"`
	Phone       *string `json:"phone"`
	IsSuspended *bool   `json:"is_suspended"`
	RoleID      *uint8  `json:"role_id" validate:"omitempty,oneof=1 2"`
}

type adminUserCreateReq struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,notblank"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	RoleID    uint8  `json:"role_id" validate:"omitempty,oneof=1 2"`
}

// List returns every user.
func (h *UserAdminHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return serverError(c, h.Log, "list users", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return respondOK(c, http.StatusOK, echo.Map{"users": users})
}

// Get returns one user.
func (h *UserAdminHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusNotFound, "user not found")
	}
	if err != nil {
		return serverError(c, h.Log, "load user", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"user": u})
}

// Create adds a pre-verified account, typically another admin.
func (h *UserAdminHandler) Create(c echo.Context) error {
	var req adminUserCreateReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	role := req.RoleID
	if role == 0 {
		role = model.RoleRegistered
	}
	hash, err := utils.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		return serverError(c, h.Log, "hash password", err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	id, err := h.Users.CreateAdminUser(ctx, req.Email, hash, strings.TrimSpace(req.FirstName),
		strings.TrimSpace(req.LastName), strings.TrimSpace(req.Phone), role, h.Clock.now())
	if errors.Is(err, repository.ErrEmailExists) {
		return respondError(c, http.StatusConflict, "Email already registered")
	}
	if err != nil {
		return serverError(c, h.Log, "create user", err)
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return serverError(c, h.Log, "reload user", err)
	}
	return respondOK(c, http.StatusCreated, echo.Map{"user": u})
}

// Update edits names, phone, suspension and role.
func (h *UserAdminHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}
	var req adminUserUpdateReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	f := repository.ProfileFields{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		IsSuspended: req.IsSuspended,
	}
	if f.Empty() && req.RoleID == nil {
		return respondError(c, http.StatusBadRequest, "nothing to update")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Users.AdminUpdate(ctx, id, f, req.RoleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "user not found")
		}
		return serverError(c, h.Log, "update user", err)
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return serverError(c, h.Log, "reload user", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"user": u})
}

// Delete removes a user with the same cascade as account deletion.
func (h *UserAdminHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Users.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "user not found")
		}
		return serverError(c, h.Log, "delete user", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"message": "User deleted"})
}
