package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

func (c *Client) ListNotifications(ctx context.Context) (domain.Fetched[[]domain.Notification], error) {
	items, source, err := call(ctx, c, Request{
		Operation: OpNotificationsList,
		Method:    http.MethodGet,
		Path:      "/notifications",
	}, mockFallback(func() []domain.Notification { return MockNotifications(time.Now()) }))
	if err != nil {
		return domain.Fetched[[]domain.Notification]{}, err
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return domain.Fetched[[]domain.Notification]{Value: items, Source: source}, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int64) (domain.DataSource, error) {
	return c.notificationCommand(ctx, OpNotificationRead, http.MethodPut, "/notifications/"+strconv.FormatInt(id, 10)+"/read")
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) (domain.DataSource, error) {
	return c.notificationCommand(ctx, OpNotificationReadAll, http.MethodPut, "/notifications/read-all")
}

func (c *Client) DeleteNotification(ctx context.Context, id int64) (domain.DataSource, error) {
	return c.notificationCommand(ctx, OpNotificationDelete, http.MethodDelete, "/notifications/"+strconv.FormatInt(id, 10))
}

// UpdateNotificationSettings saves delivery preferences. While the backend
// is unreachable the requested settings are echoed back as a mock.
func (c *Client) UpdateNotificationSettings(ctx context.Context, settings domain.NotificationSettings) (domain.Fetched[domain.NotificationSettings], error) {
	resp, source, err := call(ctx, c, Request{
		Operation: OpNotificationSetting,
		Method:    http.MethodPut,
		Path:      "/user/notification-settings",
		JSON:      settings,
	}, mockFallback(func() settingsResponse {
		return settingsResponse{Success: true, Settings: &settings}
	}))
	if err != nil {
		return domain.Fetched[domain.NotificationSettings]{}, err
	}
	saved := settings
	if resp.Settings != nil {
		saved = *resp.Settings
	}
	return domain.Fetched[domain.NotificationSettings]{Value: saved, Source: source}, nil
}

type settingsResponse struct {
	Success  bool                         `json:"success"`
	Settings *domain.NotificationSettings `json:"settings"`
}

func (c *Client) notificationCommand(ctx context.Context, operation, method, path string) (domain.DataSource, error) {
	req := Request{Operation: operation, Method: method, Path: path}
	if method == http.MethodPut {
		req.JSON = map[string]any{}
	}
	_, source, err := call(ctx, c, req, mockFallback(func() json.RawMessage {
		return json.RawMessage(`{"success":true}`)
	}))
	return source, err
}

// MockNotifications is the fixed sample list served while the backend is
// unreachable.
func MockNotifications(now time.Time) []domain.Notification {
	return []domain.Notification{
		{
			ID:        1,
			Type:      domain.NotificationDocumentUpload,
			Message:   `Người dùng "{username}" đã tải lên tài liệu "{filename}"`,
			Timestamp: now.Add(-30 * time.Minute),
		},
		{
			ID:        2,
			Type:      domain.NotificationQueueAdd,
			Message:   `Tài liệu "{tên tài liệu.pdf}" đã được thêm vào hàng đợi kiểm tra`,
			Timestamp: now.Add(-2 * time.Hour),
			Read:      true,
		},
		{
			ID:        3,
			Type:      domain.NotificationCheckStart,
			Message:   `Bắt đầu kiểm tra đạo văn cho tài liệu "{tên tài liệu.pdf}"`,
			Timestamp: now.Add(-5 * time.Hour),
		},
		{
			ID:        4,
			Type:      domain.NotificationCheckComplete,
			Message:   `Kiểm tra đạo văn cho tài liệu "{tên tài liệu.pdf}" đã hoàn thành`,
			Timestamp: now.Add(-24 * time.Hour),
		},
	}
}
