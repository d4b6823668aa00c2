package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/ports"
)

type CompareUseCase struct {
	api  ports.DetectionAPI
	auth *AuthUseCase
}

func NewCompareUseCase(api ports.DetectionAPI, auth *AuthUseCase) *CompareUseCase {
	return &CompareUseCase{api: api, auth: auth}
}

type compareRequest struct {
	File1 string `validate:"required"`
	File2 string `validate:"required,nefield=File1"`
}

func (uc *CompareUseCase) Compare(ctx context.Context, file1, file2 string) (*domain.PairComparison, error) {
	req := compareRequest{File1: strings.TrimSpace(file1), File2: strings.TrimSpace(file2)}
	if err := validateInput("compare.pair", req); err != nil {
		return nil, err
	}
	if err := uc.auth.Authorize(domain.ActionCompare); err != nil {
		return nil, err
	}
	result, err := uc.api.ComparePair(ctx, req.File1, req.File2)
	if err != nil {
		return nil, uc.auth.HandleError(fmt.Errorf("compare %s with %s: %w", req.File1, req.File2, err))
	}
	return result, nil
}
