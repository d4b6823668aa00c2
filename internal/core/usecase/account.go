package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/ports"
)

const MaxAvatarBytes = 5 << 20

type msvRequest struct {
	MSV string `validate:"required,alphanum,max=20"`
}

// AccountUseCase edits the signed-in user's profile.
type AccountUseCase struct {
	api    ports.AccountAPI
	store  ports.ClientStore
	auth   *AuthUseCase
	logger *slog.Logger
}

func NewAccountUseCase(api ports.AccountAPI, store ports.ClientStore, auth *AuthUseCase, logger *slog.Logger) *AccountUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountUseCase{api: api, store: store, auth: auth, logger: logger}
}

func (uc *AccountUseCase) ChangePassword(ctx context.Context, change domain.PasswordChange) (string, error) {
	if err := uc.requireSession("account.password"); err != nil {
		return "", err
	}
	if err := validateInput("account.password", change); err != nil {
		return "", err
	}
	msg, err := uc.api.ChangePassword(ctx, change)
	if err != nil {
		return "", uc.auth.HandleError(err)
	}
	uc.logger.Info("password_changed")
	return msg, nil
}

// UpdateMSV saves the student code and mirrors it into the cached profile.
func (uc *AccountUseCase) UpdateMSV(ctx context.Context, msv string) error {
	req := msvRequest{MSV: strings.ToUpper(strings.TrimSpace(msv))}
	if err := uc.requireSession("account.msv"); err != nil {
		return err
	}
	if err := validateInput("account.msv", req); err != nil {
		return err
	}
	if err := uc.api.UpdateMSV(ctx, req.MSV); err != nil {
		return uc.auth.HandleError(err)
	}
	if user := uc.store.User(); user != nil {
		user.MSV = req.MSV
		uc.store.SetUser(*user)
	}
	return nil
}

// UploadAvatar sends a local image file as the profile picture.
func (uc *AccountUseCase) UploadAvatar(ctx context.Context, path string) error {
	const op = "account.avatar"
	if err := uc.requireSession(op); err != nil {
		return err
	}
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("%s does not exist", path))
	case err != nil:
		return domain.WrapError(domain.ErrInvalidInput, op, err)
	case !info.Mode().IsRegular():
		return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("%s is not a regular file", path))
	case info.Size() == 0:
		return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("%s is empty", path))
	case info.Size() > MaxAvatarBytes:
		return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("%s exceeds %d MB", path, MaxAvatarBytes>>20))
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("%s is %s, not an image", path, mtype.String()))
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := uc.api.UploadAvatar(ctx, filepath.Base(path), f); err != nil {
		return uc.auth.HandleError(err)
	}
	uc.logger.Info("avatar_uploaded", "filename", filepath.Base(path), "type", mtype.String(), "bytes", info.Size())
	return nil
}

func (uc *AccountUseCase) requireSession(op string) error {
	if uc.store.Token() == "" {
		return domain.WrapError(domain.ErrUnauthorized, op, fmt.Errorf("not signed in"))
	}
	return nil
}
