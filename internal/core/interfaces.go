package core

import (
	"context"

	"github.com/fawzii0x3/breath-school-api/internal/models"
)

// Tag names mirrored into the CRM.
const (
	TagPremium    = "premium"
	TagMusicLover = "music_lover"
	TagVideoLover = "video_lover"
)

// Routing keys of the domain events.
const (
	EventUserCreated             = "user.created"
	EventUserSubscriptionChanged = "user.subscription_changed"
	EventUserDeleted             = "user.deleted"
)

// ResolveResult is the outcome of ResolveOrCreateUser.
type ResolveResult struct {
	User    *models.User
	Created bool
}

// TagFailure records one tag operation that did not go through.
type TagFailure struct {
	Tag string `json:"tag"`
	Op  string `json:"op"` // "add" or "remove"
	Err error  `json:"-"`
}

// SyncReport lists what a tag synchronization actually changed.
type SyncReport struct {
	Added   []string     `json:"added"`
	Removed []string     `json:"removed"`
	Failed  []TagFailure `json:"failed,omitempty"`
}

// ReconciliationService resolves a single identity across the local directory and the CRM.
type ReconciliationService interface {
	// ResolveOrCreateUser returns the local user for email, creating it (and mirroring it
	// into the CRM) when absent. The local directory always wins over the CRM.
	ResolveOrCreateUser(ctx context.Context, email string) (*ResolveResult, error)
	// EnsureCRMContact creates the CRM contact for user unless one already exists.
	EnsureCRMContact(ctx context.Context, user *models.User) error
}

// TagSynchronizer keeps the CRM tags of a contact in line with local state.
// Every operation is best-effort per tag.
type TagSynchronizer interface {
	SyncTags(ctx context.Context, email string, desired []string) (SyncReport, error)
	AddTag(ctx context.Context, email, name string) error
	RemoveTag(ctx context.Context, email, name string) error
	RemoveAllTags(ctx context.Context, email string) (SyncReport, error)
}

// UserService defines the interface for user-related operations.
type UserService interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByFirebaseUID(ctx context.Context, uid string) (*models.User, error)
	// CreateUser stores a new user. It returns db.ErrDuplicate (wrapped) when the email or UID is taken.
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	// LinkFirebaseUID replaces the user's Firebase UID.
	LinkFirebaseUID(ctx context.Context, user *models.User, uid string) error
	UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error)
	UpdateSubscriptionStatus(ctx context.Context, userID string, req models.UpdateSubscriptionRequest) (*models.User, error)
	// AddFavoriteMusic toggles the music item in the user's favorites. Adding tags the CRM contact.
	AddFavoriteMusic(ctx context.Context, userID, musicID string) (*models.FavoriteResult, error)
	// AddFavoriteVideo toggles the video item in the user's favorites. Adding tags the CRM contact.
	AddFavoriteVideo(ctx context.Context, userID, videoID string) (*models.FavoriteResult, error)
	DeleteUser(ctx context.Context, userID string) error
}

// CourseService defines the interface for course catalog operations.
// A nil viewer is an anonymous caller.
type CourseService interface {
	ListCourses(ctx context.Context, viewer *models.User) ([]*models.Course, error)
	ListCoursesByLevel(ctx context.Context, level models.CourseLevel) ([]*models.Course, error)
	GetCourse(ctx context.Context, courseID string, viewer *models.User) (*models.Course, error)
	CreateCourse(ctx context.Context, actor *models.User, req models.CreateCourseRequest) (*models.Course, error)
}

// SessionService defines the interface for breathing session operations.
type SessionService interface {
	CreateSession(ctx context.Context, user *models.User, req models.CreateSessionRequest) (*models.BreathingSession, error)
	ListSessions(ctx context.Context, user *models.User) ([]*models.BreathingSession, error)
	CompleteSession(ctx context.Context, user *models.User, sessionID string) (*models.BreathingSession, error)
}

// ThemeService defines the interface for theme operations.
type ThemeService interface {
	ListThemes(ctx context.Context) ([]*models.Theme, error)
	GetTheme(ctx context.Context, themeID string) (*models.Theme, error)
	CreateTheme(ctx context.Context, actor *models.User, req models.CreateThemeRequest) (*models.Theme, error)
	UpdateTheme(ctx context.Context, actor *models.User, themeID string, req models.UpdateThemeRequest) (*models.Theme, error)
	DeleteTheme(ctx context.Context, actor *models.User, themeID string) error
}
