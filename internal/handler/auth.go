package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ebooking/internal/config"
	"github.com/iliyamo/cinema-ebooking/internal/mail"
	"github.com/iliyamo/cinema-ebooking/internal/middleware"
	"github.com/iliyamo/cinema-ebooking/internal/model"
	"github.com/iliyamo/cinema-ebooking/internal/repository"
	"github.com/iliyamo/cinema-ebooking/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Codes  *repository.VerificationRepo
	Tokens *repository.TokenRepo
	Mail   mail.Dispatcher
	Log    *zap.Logger
	Clock  clock
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, codes *repository.VerificationRepo,
	t *repository.TokenRepo, d mail.Dispatcher, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Codes: codes, Tokens: t, Mail: d, Log: log}
}

const (
	msgRegistered     = "Registration successful! Please check your email for verification code."
	msgVerified       = "Email verified successfully! Your account is now active."
	msgResetRequested = "If an account exists for this email, a password reset code has been sent."
	msgTooManyCards   = "Maximum 3 payment cards allowed"
	msgBadCredentials = "Invalid credentials"
)

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required,notblank"`
}
type verifyReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}
type emailReq struct {
	Email string `json:"email" validate:"required,email"`
}
type resetReq struct {
	Code     string `json:"code" validate:"required,notblank"`
	Password string `json:"password" validate:"required,notblank"`
}
type profileReq struct {
	ID        *looseInt `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Phone     *string   `json:"phone"`
	Password  *string   `json:"password"`
}

type userPart struct {
	ID        uint64 `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Phone: u.Phone, Role: u.Role()}
}

// Register creates an unverified account with optional addresses, cards and
// promotion subscription, then emails a verification code.
func (h *AuthHandler) Register(c echo.Context) error {
	req, err := decodeRegistration(c)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid body")
	}
	first, last := req.names()
	email := repository.NormalizeEmail(req.Email)
	if first == "" || email == "" || strings.TrimSpace(req.Password) == "" {
		return respondError(c, http.StatusBadRequest, "first name, email and password are required")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return respondError(c, http.StatusBadRequest, "phone number is required")
	}
	if len(req.PaymentCards) > model.MaxPaymentMethods {
		return respondError(c, http.StatusBadRequest, msgTooManyCards)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	exists, err := h.Users.EmailExists(ctx, email)
	if err != nil {
		return serverError(c, h.Log, "email lookup", err)
	}
	if exists {
		return respondError(c, http.StatusConflict, "Email already registered")
	}

	cards, err := req.cards()
	if errors.Is(err, errCardType) {
		return respondError(c, http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid billing address")
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return serverError(c, h.Log, "hash password", err)
	}
	code, err := utils.NewNumericCode()
	if err != nil {
		return serverError(c, h.Log, "generate code", err)
	}
	now := h.Clock.now()

	_, err = h.Users.Register(ctx, repository.Registration{
		Email:        email,
		PasswordHash: hash,
		FirstName:    first,
		LastName:     last,
		Phone:        strings.TrimSpace(req.Phone),
		Subscribe:    bool(req.Subscribe),
		Addresses:    req.addresses(),
		Cards:        cards,
		Code:         code,
		CodeExpires:  now.Add(model.EmailCodeTTL),
		SentAt:       now,
	})
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return respondError(c, http.StatusConflict, "Email already registered")
	case errors.Is(err, repository.ErrLimitReached):
		return respondError(c, http.StatusBadRequest, msgTooManyCards)
	case err != nil:
		return serverError(c, h.Log, "register", err)
	}

	msg, err := mail.Verification(email, code)
	notify(ctx, h.Mail, h.Log, msg, err)

	return respondOK(c, http.StatusCreated, echo.Map{
		"message":               msgRegistered,
		"verification_required": true,
	})
}

// VerifyEmail consumes a verification code and marks the email verified.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid body")
	}
	req.Code = strings.TrimSpace(req.Code)
	if strings.TrimSpace(req.Email) == "" || req.Code == "" {
		return respondError(c, http.StatusBadRequest, "Email and verification code are required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	vc, err := h.Codes.FindForEmail(ctx, req.Email, req.Code)
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusBadRequest, "Invalid verification code")
	}
	if err != nil {
		return serverError(c, h.Log, "find verification code", err)
	}
	now := h.Clock.now()
	if vc.Used() {
		return respondError(c, http.StatusBadRequest, "Verification code already used")
	}
	if vc.Expired(now) {
		return respondError(c, http.StatusBadRequest, "Verification code expired")
	}
	if err := h.Codes.ConsumeEmailCode(ctx, vc, now); err != nil {
		if errors.Is(err, repository.ErrCodeUsed) {
			return respondError(c, http.StatusBadRequest, "Verification code already used")
		}
		return serverError(c, h.Log, "consume verification code", err)
	}

	if u, err := h.Users.GetByID(ctx, vc.UserID); err == nil {
		msg, err := mail.Welcome(u.Email, u.FirstName)
		notify(ctx, h.Mail, h.Log, msg, err)
	} else {
		h.Log.Warn("welcome email skipped", zap.Uint64("user_id", vc.UserID), zap.Error(err))
	}
	return respondOK(c, http.StatusOK, echo.Map{"message": msgVerified})
}

// ResendVerification issues a fresh 24h code unless one was sent within the
// cooldown.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusNotFound, "No account found for this email")
	}
	if err != nil {
		return serverError(c, h.Log, "load user", err)
	}
	if u.EmailVerifiedAt != nil {
		return respondError(c, http.StatusBadRequest, "Email is already verified")
	}

	now := h.Clock.now()
	last, err := h.Codes.Latest(ctx, u.ID)
	switch {
	case err == nil && now.Sub(last.SentAt) < model.ResendCooldown:
		return respondError(c, http.StatusTooManyRequests, "Please wait before requesting another code")
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return serverError(c, h.Log, "latest code", err)
	}

	code, err := utils.NewNumericCode()
	if err != nil {
		return serverError(c, h.Log, "generate code", err)
	}
	if err := h.Codes.Create(ctx, u.ID, code, now.Add(model.EmailCodeTTL), now); err != nil {
		return serverError(c, h.Log, "store code", err)
	}
	msg, err := mail.Verification(u.Email, code)
	notify(ctx, h.Mail, h.Log, msg, err)

	return respondOK(c, http.StatusOK, echo.Map{"message": "A new verification code has been sent to your email."})
}

// Login checks credentials and returns an access token plus a session
// token for later refreshes.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusUnauthorized, msgBadCredentials)
	}
	if err != nil {
		return serverError(c, h.Log, "load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return respondError(c, http.StatusUnauthorized, msgBadCredentials)
	}
	if u.EmailVerifiedAt == nil {
		return respondError(c, http.StatusForbidden, "Please verify your email before logging in")
	}
	if u.IsSuspended {
		return respondError(c, http.StatusForbidden, "Account suspended")
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role(), h.Cfg.AccessTTLMin)
	if err != nil {
		return serverError(c, h.Log, "issue access token", err)
	}
	session, err := utils.NewSessionToken(h.Cfg.RefreshTTLDays, h.Clock.now())
	if err != nil {
		return serverError(c, h.Log, "issue session token", err)
	}
	if err := h.Tokens.Store(ctx, u.ID, utils.HashSessionToken(session.Raw), session.Exp); err != nil {
		return serverError(c, h.Log, "store session token", err)
	}

	return respondOK(c, http.StatusOK, echo.Map{
		"user":    toUserPart(u),
		"access":  access,
		"refresh": session,
	})
}

// Refresh exchanges a live session token for a new access token.  The
// session token itself is not rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	userID, err := h.Tokens.Validate(ctx, utils.HashSessionToken(strings.TrimSpace(req.RefreshToken)), h.Clock.now())
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return serverError(c, h.Log, "validate session token", err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return serverError(c, h.Log, "load user", err)
	}
	if u.IsSuspended {
		return respondError(c, http.StatusForbidden, "Account suspended")
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role(), h.Cfg.AccessTTLMin)
	if err != nil {
		return serverError(c, h.Log, "issue access token", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"access": access})
}

// Logout revokes a session token.  Unknown tokens are accepted silently.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Tokens.Revoke(ctx, utils.HashSessionToken(strings.TrimSpace(req.RefreshToken)), h.Clock.now()); err != nil {
		return serverError(c, h.Log, "revoke session token", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"message": "Logged out"})
}

// ForgotPassword replaces the user's codes with a 1h reset code.  The
// response is identical whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return respondOK(c, http.StatusOK, echo.Map{"message": msgResetRequested})
	}
	if err != nil {
		return serverError(c, h.Log, "load user", err)
	}

	code, err := utils.NewNumericCode()
	if err != nil {
		return serverError(c, h.Log, "generate code", err)
	}
	now := h.Clock.now()
	if err := h.Codes.ReplaceWithResetCode(ctx, u.ID, code, now.Add(model.ResetCodeTTL), now); err != nil {
		return serverError(c, h.Log, "store reset code", err)
	}
	msg, err := mail.PasswordReset(u.Email, code)
	notify(ctx, h.Mail, h.Log, msg, err)

	return respondOK(c, http.StatusOK, echo.Map{"message": msgResetRequested})
}

// ResetPassword stores a new password for the owner of a live reset code
// and signs the user out everywhere.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	vc, err := h.Codes.FindByCode(ctx, strings.TrimSpace(req.Code))
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusBadRequest, "Invalid reset code")
	}
	if err != nil {
		return serverError(c, h.Log, "find reset code", err)
	}
	now := h.Clock.now()
	if vc.Expired(now) {
		return respondError(c, http.StatusBadRequest, "Reset code expired")
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return serverError(c, h.Log, "hash password", err)
	}
	if err := h.Codes.ResetPassword(ctx, vc, hash); err != nil {
		if errors.Is(err, repository.ErrCodeUsed) {
			return respondError(c, http.StatusBadRequest, "Invalid reset code")
		}
		return serverError(c, h.Log, "reset password", err)
	}
	if err := h.Tokens.RevokeAllForUser(ctx, vc.UserID, now); err != nil {
		h.Log.Warn("revoke sessions after reset failed", zap.Uint64("user_id", vc.UserID), zap.Error(err))
	}
	return respondOK(c, http.StatusOK, echo.Map{"message": "Password has been reset successfully"})
}

// UpdateProfile overwrites the present fields of the user addressed by id
// or email and returns the stored user.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid body")
	}
	var id uint64
	if req.ID != nil && *req.ID > 0 {
		id = uint64(*req.ID)
	}
	if id == 0 && strings.TrimSpace(req.Email) == "" {
		return respondError(c, http.StatusBadRequest, "id or email required")
	}

	f := repository.ProfileFields{FirstName: req.FirstName, LastName: req.LastName, Phone: req.Phone}
	if f.FirstName == nil {
		f.FirstName = req.Name
	}
	if req.Password != nil && strings.TrimSpace(*req.Password) != "" {
		hash, err := utils.HashPassword(*req.Password, h.Cfg.BcryptCost)
		if err != nil {
			return serverError(c, h.Log, "hash password", err)
		}
		f.PasswordHash = hash
	}
	if f.Empty() {
		return respondError(c, http.StatusBadRequest, "nothing to update")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.Users.UpdateFields(ctx, id, req.Email, f)
	if err != nil {
		return serverError(c, h.Log, "update profile", err)
	}
	if n == 0 {
		return respondError(c, http.StatusNotFound, "No user updated (user not found)")
	}

	var u model.User
	if id != 0 {
		u, err = h.Users.GetByID(ctx, id)
	} else {
		u, err = h.Users.GetByEmail(ctx, req.Email)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusNotFound, "Unable to fetch updated user")
	}
	if err != nil {
		return serverError(c, h.Log, "reload user", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"user": toUserPart(u)})
}

// DeleteAccount removes a user and everything attached to it.  Callers may
// delete themselves; admins may delete anyone.
func (h *AuthHandler) DeleteAccount(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}
	caller, _ := middleware.UserID(c)
	if role, _ := c.Get(middleware.CtxRole).(string); caller != id && role != model.RoleName(model.RoleAdmin) {
		return respondError(c, http.StatusForbidden, "forbidden")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Users.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "user not found")
		}
		return serverError(c, h.Log, "delete user", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"message": "Account deleted"})
}
