package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/snapedits/api/internal/domain"
	pfirestore "github.com/snapedits/api/internal/platform/firestore"
	"github.com/snapedits/api/internal/platform/pagination"
	"github.com/snapedits/api/internal/repositories"
)

const notificationsCollection = "notifications"

type notificationDocument struct {
	AdminID   string     `firestore:"adminId"`
	Type      string     `firestore:"type"`
	Message   string     `firestore:"message"`
	RefKind   string     `firestore:"refKind,omitempty"`
	RefID     string     `firestore:"refId,omitempty"`
	Read      bool       `firestore:"read"`
	ReadAt    *time.Time `firestore:"readAt,omitempty"`
	CreatedAt time.Time  `firestore:"createdAt"`
}

// NotificationRepository stores per-admin inbox entries in Firestore.
type NotificationRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[notificationDocument]
}

// NewNotificationRepository constructs a Firestore-backed notification repository.
func NewNotificationRepository(provider *pfirestore.Provider) (*NotificationRepository, error) {
	if provider == nil {
		return nil, errors.New("notification repository requires firestore provider")
	}
	return &NotificationRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[notificationDocument](provider, notificationsCollection, nil, nil),
	}, nil
}

// Insert writes one inbox entry. The caller assigns the ID.
func (r *NotificationRepository) Insert(ctx context.Context, notification domain.Notification) error {
	if r == nil || r.base == nil {
		return errors.New("notification repository not initialised")
	}
	id := strings.TrimSpace(notification.ID)
	if id == "" {
		return errors.New("notification repository: notification id is required")
	}
	if strings.TrimSpace(notification.AdminID) == "" {
		return errors.New("notification repository: admin id is required")
	}

	createdAt := notification.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	doc := notificationDocument{
		AdminID:   notification.AdminID,
		Type:      string(notification.Type),
		Message:   notification.Message,
		RefKind:   string(notification.Ref.Kind),
		RefID:     notification.Ref.ID,
		Read:      notification.Read,
		CreatedAt: createdAt,
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("notifications.insert", err)
	}
	return nil
}

// MarkRead flips the read flag once. Marking an already-read entry is a no-op.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID string, readAt time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("notification repository not initialised")
	}
	id := strings.TrimSpace(notificationID)
	if id == "" {
		return errors.New("notification repository: notification id is required")
	}
	if readAt.IsZero() {
		readAt = time.Now()
	}
	readAt = readAt.UTC()

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc notificationDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return err
		}
		if doc.Read {
			return nil
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "read", Value: true},
			{Path: "readAt", Value: readAt},
		})
	})
	if err != nil {
		return pfirestore.WrapError("notifications.markRead", err)
	}
	return nil
}

// FindByID loads a single notification entry.
func (r *NotificationRepository) FindByID(ctx context.Context, notificationID string) (domain.Notification, error) {
	if r == nil || r.base == nil {
		return domain.Notification{}, errors.New("notification repository not initialised")
	}
	id := strings.TrimSpace(notificationID)
	if id == "" {
		return domain.Notification{}, errors.New("notification repository: notification id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Notification{}, err
	}
	return decodeNotification(doc.ID, doc.Data), nil
}

// List returns an admin's inbox entries, newest first, with cursor pagination.
func (r *NotificationRepository) List(ctx context.Context, filter repositories.NotificationListFilter) (domain.CursorPage[domain.Notification], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Notification]{}, errors.New("notification repository not initialised")
	}
	adminID := strings.TrimSpace(filter.AdminID)
	if adminID == "" {
		return domain.CursorPage[domain.Notification]{}, errors.New("notification repository: admin id is required")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	if pageSize > pagination.DefaultMaxPageSize {
		pageSize = pagination.DefaultMaxPageSize
	}

	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Notification]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("adminId", "==", adminID)
		if filter.UnreadOnly {
			q = q.Where("read", "==", false)
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Notification]{}, err
	}

	page := domain.CursorPage[domain.Notification]{}
	hasMore := len(docs) > pageSize
	if hasMore {
		docs = docs[:pageSize]
	}
	for _, doc := range docs {
		page.Items = append(page.Items, decodeNotification(doc.ID, doc.Data))
	}
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.Data.CreatedAt},
		})
		if err != nil {
			return domain.CursorPage[domain.Notification]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func decodeNotification(id string, doc notificationDocument) domain.Notification {
	return domain.Notification{
		ID:      id,
		AdminID: doc.AdminID,
		Type:    domain.NotificationType(doc.Type),
		Message: doc.Message,
		Ref: domain.NotificationRef{
			Kind: domain.ReferenceKind(doc.RefKind),
			ID:   doc.RefID,
		},
		Read:      doc.Read,
		CreatedAt: doc.CreatedAt,
	}
}

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)
