package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

type accountResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ChangePassword returns the backend's confirmation message.
func (c *Client) ChangePassword(ctx context.Context, change domain.PasswordChange) (string, error) {
	resp, _, err := call(ctx, c, Request{
		Operation: OpAccountPassword,
		Method:    http.MethodPut,
		Path:      "/change-password",
		JSON:      change,
	}, noFallback[accountResponse]())
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// UpdateMSV stores the student code on the signed-in account.
func (c *Client) UpdateMSV(ctx context.Context, msv string) error {
	_, _, err := call(ctx, c, Request{
		Operation: OpAccountMSV,
		Method:    http.MethodPost,
		Path:      "/add-msv",
		JSON:      map[string]string{"msv": msv},
	}, noFallback[accountResponse]())
	return err
}

func (c *Client) UploadAvatar(ctx context.Context, filename string, body io.Reader) error {
	content, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read avatar %s: %w", filename, err)
	}
	_, _, err = call(ctx, c, Request{
		Operation: OpAccountAvatar,
		Method:    http.MethodPost,
		Path:      "/upload-avatar",
		File:      &FilePart{Field: "avatar", Filename: filename, Content: content},
	}, noFallback[accountResponse]())
	return err
}
