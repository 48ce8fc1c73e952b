package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/snapedits/api/internal/domain"
	pfirestore "github.com/snapedits/api/internal/platform/firestore"
	"github.com/snapedits/api/internal/repositories"
)

const adminsCollection = "admins"

type adminDocument struct {
	Email             string          `firestore:"email"`
	DisplayName       string          `firestore:"displayName,omitempty"`
	Roles             []string        `firestore:"roles,omitempty"`
	NotificationPrefs map[string]bool `firestore:"notificationPrefs,omitempty"`
	CreatedAt         time.Time       `firestore:"createdAt"`
	UpdatedAt         time.Time       `firestore:"updatedAt"`
}

// AdminRepository reads the staff directory used for notification fan-out.
type AdminRepository struct {
	base *pfirestore.BaseRepository[adminDocument]
}

// NewAdminRepository constructs a Firestore-backed admin directory repository.
func NewAdminRepository(provider *pfirestore.Provider) (*AdminRepository, error) {
	if provider == nil {
		return nil, errors.New("admin repository requires firestore provider")
	}
	return &AdminRepository{
		base: pfirestore.NewBaseRepository[adminDocument](provider, adminsCollection, nil, nil),
	}, nil
}

// FindByID loads a single staff profile.
func (r *AdminRepository) FindByID(ctx context.Context, adminID string) (domain.AdminProfile, error) {
	if r == nil || r.base == nil {
		return domain.AdminProfile{}, errors.New("admin repository not initialised")
	}
	id := strings.TrimSpace(adminID)
	if id == "" {
		return domain.AdminProfile{}, errors.New("admin repository: admin id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.AdminProfile{}, err
	}
	return decodeAdmin(doc.ID, doc.Data), nil
}

// ListSubscribed returns admins whose preference map opts in to the event type.
// A missing preference key counts as opted out.
func (r *AdminRepository) ListSubscribed(ctx context.Context, eventType domain.NotificationType) ([]domain.AdminProfile, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("admin repository not initialised")
	}
	event := strings.TrimSpace(string(eventType))
	if event == "" {
		return nil, errors.New("admin repository: event type is required")
	}

	field := fmt.Sprintf("notificationPrefs.%s", event)
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where(field, "==", true)
	})
	if err != nil {
		return nil, err
	}

	admins := make([]domain.AdminProfile, 0, len(docs))
	for _, doc := range docs {
		admins = append(admins, decodeAdmin(doc.ID, doc.Data))
	}
	return admins, nil
}

func decodeAdmin(id string, doc adminDocument) domain.AdminProfile {
	return domain.AdminProfile{
		ID:                id,
		Email:             doc.Email,
		DisplayName:       doc.DisplayName,
		Roles:             doc.Roles,
		NotificationPrefs: doc.NotificationPrefs,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
}

var _ repositories.AdminRepository = (*AdminRepository)(nil)
