package usecase

import (
	"context"
	"sort"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/ports"
)

type NotificationsUseCase struct {
	api  ports.NotificationAPI
	auth *AuthUseCase
}

func NewNotificationsUseCase(api ports.NotificationAPI, auth *AuthUseCase) *NotificationsUseCase {
	return &NotificationsUseCase{api: api, auth: auth}
}

// List returns notifications newest first.
func (uc *NotificationsUseCase) List(ctx context.Context) (domain.Fetched[[]domain.Notification], error) {
	items, err := uc.api.ListNotifications(ctx)
	if err != nil {
		return items, uc.auth.HandleError(err)
	}
	sort.SliceStable(items.Value, func(i, j int) bool {
		return items.Value[i].Timestamp.After(items.Value[j].Timestamp)
	})
	return items, nil
}

func (uc *NotificationsUseCase) MarkRead(ctx context.Context, id int64) (domain.DataSource, error) {
	source, err := uc.api.MarkNotificationRead(ctx, id)
	return source, uc.auth.HandleError(err)
}

func (uc *NotificationsUseCase) MarkAllRead(ctx context.Context) (domain.DataSource, error) {
	source, err := uc.api.MarkAllNotificationsRead(ctx)
	return source, uc.auth.HandleError(err)
}

func (uc *NotificationsUseCase) Delete(ctx context.Context, id int64) (domain.DataSource, error) {
	source, err := uc.api.DeleteNotification(ctx, id)
	return source, uc.auth.HandleError(err)
}

func (uc *NotificationsUseCase) UpdateSettings(ctx context.Context, settings domain.NotificationSettings) (domain.Fetched[domain.NotificationSettings], error) {
	saved, err := uc.api.UpdateNotificationSettings(ctx, settings)
	return saved, uc.auth.HandleError(err)
}
