package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/snapedits/api/internal/domain"
	"github.com/snapedits/api/internal/repositories"
)

var (
	// ErrNotificationInvalidInput indicates the caller supplied invalid notification input.
	ErrNotificationInvalidInput = errors.New("notification service: invalid input")
	// ErrNotificationNotFound indicates the notification does not exist or belongs to another admin.
	ErrNotificationNotFound = errors.New("notification service: not found")
	// ErrNotificationUnavailable indicates the notification backend cannot fulfil the request.
	ErrNotificationUnavailable = errors.New("notification service: unavailable")
)

// NotificationServiceDeps wires the notification and admin repositories.
type NotificationServiceDeps struct {
	Notifications repositories.NotificationRepository
	Admins        repositories.AdminRepository
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(context.Context, string, map[string]any)
}

type notificationService struct {
	notifications repositories.NotificationRepository
	admins        repositories.AdminRepository
	now           func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

// NewNotificationService constructs a NotificationService enforcing dependency validation.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Notifications == nil {
		return nil, errors.New("notification service: notification repository is required")
	}
	if deps.Admins == nil {
		return nil, errors.New("notification service: admin repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &notificationService{
		notifications: deps.Notifications,
		admins:        deps.Admins,
		now:           func() time.Time { return clock().UTC() },
		newID:         idGen,
		logger:        logger,
	}, nil
}

// NotifyAdmins writes one inbox entry per admin subscribed to the event type.
// A failed insert for one admin does not stop delivery to the rest.
func (s *notificationService) NotifyAdmins(ctx context.Context, cmd NotifyAdminsCommand) error {
	if cmd.Type == "" {
		return fmt.Errorf("%w: notification type is required", ErrNotificationInvalidInput)
	}
	if strings.TrimSpace(cmd.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrNotificationInvalidInput)
	}

	admins, err := s.admins.ListSubscribed(ctx, cmd.Type)
	if err != nil {
		return ErrNotificationUnavailable
	}
	if len(admins) == 0 {
		return nil
	}

	now := s.now()
	var firstErr error
	delivered := 0
	for _, admin := range admins {
		notification := domain.Notification{
			ID:        s.newID(),
			AdminID:   admin.ID,
			Type:      cmd.Type,
			Message:   strings.TrimSpace(cmd.Message),
			Ref:       cmd.Ref,
			CreatedAt: now,
		}
		if err := s.notifications.Insert(ctx, notification); err != nil {
			s.logger(ctx, "notification.delivery_failed", map[string]any{
				"adminID": admin.ID,
				"type":    string(cmd.Type),
				"error":   err.Error(),
			})
			if firstErr == nil {
				firstErr = ErrNotificationUnavailable
			}
			continue
		}
		delivered++
	}

	s.logger(ctx, "notification.fanout", map[string]any{
		"type":       string(cmd.Type),
		"subscribed": len(admins),
		"delivered":  delivered,
	})
	return firstErr
}

// List returns the admin's inbox, newest first.
func (s *notificationService) List(ctx context.Context, filter NotificationListFilter) (domain.CursorPage[Notification], error) {
	if strings.TrimSpace(filter.AdminID) == "" {
		return domain.CursorPage[Notification]{}, fmt.Errorf("%w: admin id is required", ErrNotificationInvalidInput)
	}
	page, err := s.notifications.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Notification]{}, ErrNotificationUnavailable
	}
	return page, nil
}

// MarkRead flags a notification as read. Only the owning admin may do so;
// marking an already-read notification is a no-op.
func (s *notificationService) MarkRead(ctx context.Context, cmd MarkNotificationReadCommand) error {
	adminID := strings.TrimSpace(cmd.AdminID)
	notificationID := strings.TrimSpace(cmd.NotificationID)
	if adminID == "" || notificationID == "" {
		return fmt.Errorf("%w: admin id and notification id are required", ErrNotificationInvalidInput)
	}

	notification, err := s.notifications.FindByID(ctx, notificationID)
	if err != nil {
		if isRepoNotFound(err) {
			return ErrNotificationNotFound
		}
		return ErrNotificationUnavailable
	}
	if notification.AdminID != adminID {
		return ErrNotificationNotFound
	}
	if notification.Read {
		return nil
	}

	if err := s.notifications.MarkRead(ctx, notificationID, s.now()); err != nil {
		if isRepoNotFound(err) {
			return ErrNotificationNotFound
		}
		return ErrNotificationUnavailable
	}
	return nil
}
