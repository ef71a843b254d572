package db

import (
	"context"
	"errors"

	"github.com/fawzii0x3/breath-school-api/internal/models"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrDuplicate is returned when a write would violate a uniqueness constraint
// (user email, Firebase UID, theme name).
var ErrDuplicate = errors.New("document already exists")

// UserRepository defines the interface for user data storage operations.
// Emails are normalized by the repository; lookups are exact on the normalized value.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByFirebaseUID(ctx context.Context, uid string) (*models.User, error)
	// Create stores a new user and sets user.ID. It fails with ErrDuplicate when the
	// email or Firebase UID is already taken.
	Create(ctx context.Context, user *models.User) error
	// Update writes the mutable profile and subscription fields. Email and Firebase UID are not changed.
	Update(ctx context.Context, user *models.User) error
	// SetFirebaseUID replaces the user's Firebase UID, keeping the UID index consistent.
	SetFirebaseUID(ctx context.Context, userID, uid string) error
	Delete(ctx context.Context, userID string) error
}

// CourseRepository defines the interface for course storage operations.
type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, courseID string) (*models.Course, error)
	List(ctx context.Context) ([]*models.Course, error)
	ListByLevel(ctx context.Context, level models.CourseLevel) ([]*models.Course, error)
}

// SessionRepository defines the interface for breathing session storage operations.
type SessionRepository interface {
	Create(ctx context.Context, session *models.BreathingSession) error
	GetByID(ctx context.Context, sessionID string) (*models.BreathingSession, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.BreathingSession, error)
	Update(ctx context.Context, session *models.BreathingSession) error
}

// ThemeRepository defines the interface for theme storage operations.
type ThemeRepository interface {
	Create(ctx context.Context, theme *models.Theme) error
	GetByID(ctx context.Context, themeID string) (*models.Theme, error)
	GetByName(ctx context.Context, name string) (*models.Theme, error)
	List(ctx context.Context) ([]*models.Theme, error)
	Update(ctx context.Context, theme *models.Theme) error
	Delete(ctx context.Context, themeID string) error
}

// FavoriteRepository records which users favorited which media items.
// The favorites live on the item document as a list of user IDs.
type FavoriteRepository interface {
	// ToggleFavorite adds userID to the item's favorites, or removes it when already present,
	// and reports whether the item is a favorite afterwards. A missing item yields ErrNotFound.
	ToggleFavorite(ctx context.Context, kind models.FavoriteKind, itemID, userID string) (bool, error)
	// RemoveUserFavorites drops userID from the favorites of every item.
	RemoveUserFavorites(ctx context.Context, userID string) error
}
