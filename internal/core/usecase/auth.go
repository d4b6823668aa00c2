package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/ports"
)

var validate = validator.New()

func validateInput(operation string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return domain.WrapError(domain.ErrInvalidInput, operation, err)
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, strings.ToLower(fe.Field())+": "+formatValidationError(fe))
	}
	return domain.WrapError(domain.ErrInvalidInput, operation, errors.New(strings.Join(details, "; ")))
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "nefield":
		return "must differ from " + strings.ToLower(fe.Param())
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "alphanum":
		return "letters and digits only"
	default:
		return "invalid value"
	}
}

type AuthUseCase struct {
	api    ports.AuthAPI
	store  ports.ClientStore
	logger *slog.Logger
}

func NewAuthUseCase(api ports.AuthAPI, store ports.ClientStore, logger *slog.Logger) *AuthUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthUseCase{api: api, store: store, logger: logger}
}

// Login stores the issued token and the caller's profile. When the profile
// cannot be fetched the role is read from the token's claims instead.
func (uc *AuthUseCase) Login(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	if err := validateInput("auth.login", creds); err != nil {
		return nil, err
	}

	token, err := uc.api.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	uc.store.SetToken(token)

	profile, err := uc.api.CurrentUser(ctx)
	if err == nil {
		uc.store.SetUser(profile.Value)
		uc.logger.Info("login_succeeded", "username", profile.Value.Username, "role", profile.Value.Role)
		return &profile.Value, nil
	}
	if domain.IsKind(err, domain.ErrUnauthorized) {
		uc.store.ClearAuth()
		return nil, err
	}

	user := domain.User{Username: creds.Username, Role: roleFromToken(token)}
	uc.logger.Warn("login_profile_unavailable", "username", creds.Username, "role", user.Role, "error", err)
	uc.store.SetUser(user)
	return &user, nil
}

func (uc *AuthUseCase) Logout() {
	uc.store.ClearAuth()
}

// WhoAmI refreshes the cached profile. A rejected token clears the session.
func (uc *AuthUseCase) WhoAmI(ctx context.Context) (domain.Fetched[domain.User], error) {
	if uc.store.Token() == "" {
		return domain.Fetched[domain.User]{}, domain.WrapError(domain.ErrUnauthorized, "auth.whoami", fmt.Errorf("not logged in"))
	}
	profile, err := uc.api.CurrentUser(ctx)
	if err != nil {
		return profile, uc.HandleError(err)
	}
	if !profile.Degraded() {
		uc.store.SetUser(profile.Value)
	}
	return profile, nil
}

// Authorize checks action against the persisted role. Without a known role
// the backend stays the only judge and nothing is rejected locally.
func (uc *AuthUseCase) Authorize(action domain.Action) error {
	role := uc.store.Role()
	if uc.store.Token() == "" || role == "" {
		return nil
	}
	if !domain.HasPermission(role, action) {
		return domain.WrapError(domain.ErrForbidden, string(action), fmt.Errorf("role %q may not %s", role, action))
	}
	return nil
}

// HandleError clears the cached session when the backend rejected the
// token and returns err unchanged.
func (uc *AuthUseCase) HandleError(err error) error {
	if domain.IsKind(err, domain.ErrUnauthorized) {
		uc.logger.Warn("session_rejected", "error", err)
		uc.store.ClearAuth()
	}
	return err
}

func roleFromToken(token string) domain.Role {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	if role, ok := claims["role"].(string); ok {
		return domain.Role(strings.ToLower(role))
	}
	return ""
}
