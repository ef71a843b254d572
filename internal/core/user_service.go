package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fawzii0x3/breath-school-api/internal/crm"
	"github.com/fawzii0x3/breath-school-api/internal/db"
	"github.com/fawzii0x3/breath-school-api/internal/identity"
	"github.com/fawzii0x3/breath-school-api/internal/models"
	"github.com/fawzii0x3/breath-school-api/pkg/messagequeue"
)

// UserServiceOptions tunes account lifecycle behavior.
type UserServiceOptions struct {
	// DeleteCRMContact deletes the CRM contact on account deletion instead of only unlinking its tags.
	DeleteCRMContact bool
}

// userService implements the UserService interface.
// Local writes are authoritative; CRM tags and contacts, identity deletion and events are best-effort.
type userService struct {
	userRepo     db.UserRepository
	favoriteRepo db.FavoriteRepository
	tags         TagSynchronizer
	contacts     crm.ContactStore
	identities   identity.UserDeleter
	publisher    messagequeue.Publisher
	opts         UserServiceOptions
	logger       *zap.Logger
	now          func() time.Time
}

// NewUserService creates a new UserService instance.
func NewUserService(
	ur db.UserRepository,
	fr db.FavoriteRepository,
	tags TagSynchronizer,
	cs crm.ContactStore,
	identities identity.UserDeleter,
	p messagequeue.Publisher,
	opts UserServiceOptions,
	logger *zap.Logger,
) UserService {
	return &userService{
		userRepo:     ur,
		favoriteRepo: fr,
		tags:         tags,
		contacts:     cs,
		identities:   identities,
		publisher:    p,
		opts:         opts,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *userService) found(user *models.User, err error, what string) (*models.User, error) {
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, what)
		}
		return nil, fmt.Errorf("failed to get user (%s): %w", what, err)
	}
	user.FillPromotionDays(s.now())
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	return s.found(user, err, "id "+userID)
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	return s.found(user, err, "email "+email)
}

func (s *userService) GetByFirebaseUID(ctx context.Context, uid string) (*models.User, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: empty uid", ErrUserNotFound)
	}
	user, err := s.userRepo.GetByFirebaseUID(ctx, uid)
	return s.found(user, err, "uid "+uid)
}

func (s *userService) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.Email = models.NormalizeEmail(user.Email)
	if user.Email == "" {
		return nil, ErrInvalidEmail
	}
	if !user.Role.Valid() {
		user.Role = models.RoleUser
	}
	user.FullName = strings.TrimSpace(user.FullName)
	if user.FullName == "" {
		user.FullName = models.EmailLocalPart(user.Email)
	}
	if user.FullName == "" {
		user.FullName = models.DefaultFullName
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user '%s': %w", user.Email, err)
	}
	s.logger.Info("User created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	publishUserEvent(ctx, s.publisher, s.logger, EventUserCreated, user, "signin")
	user.FillPromotionDays(s.now())
	return user, nil
}

func (s *userService) LinkFirebaseUID(ctx context.Context, user *models.User, uid string) error {
	if err := s.userRepo.SetFirebaseUID(ctx, user.ID, uid); err != nil {
		return fmt.Errorf("failed to link firebase uid for user '%s': %w", user.ID, err)
	}
	user.FirebaseUID = uid
	return nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	renamed := false
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, fmt.Errorf("%w: fullName cannot be empty", ErrInvalidInput)
		}
		renamed = name != user.FullName
		user.FullName = name
	}
	if req.Picture != nil {
		user.Picture = strings.TrimSpace(*req.Picture)
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile of user '%s': %w", userID, err)
	}
	if renamed {
		s.renameContact(ctx, user)
	}
	return user, nil
}

// renameContact mirrors the new full name into the CRM contact, if there is one.
func (s *userService) renameContact(ctx context.Context, user *models.User) {
	contact, err := s.contacts.FindContactByEmail(ctx, user.Email)
	if err != nil {
		if !errors.Is(err, crm.ErrNotFound) {
			s.logger.Warn("Failed to look up CRM contact for rename", zap.String("user_id", user.ID), zap.Error(err))
		}
		return
	}
	first, last := models.SplitFullName(user.FullName)
	if _, err := s.contacts.UpdateContact(ctx, contact.ID, crm.UpdateContactRequest{FirstName: &first, LastName: &last}); err != nil {
		s.logger.Warn("Failed to update CRM contact name", zap.String("user_id", user.ID), zap.String("contact_id", string(contact.ID)), zap.Error(err))
	}
}

// UpdateSubscriptionStatus stores the new flags and then mirrors suscription as the premium tag.
func (s *userService) UpdateSubscriptionStatus(ctx context.Context, userID string, req models.UpdateSubscriptionRequest) (*models.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Suscription != nil {
		user.Suscription = *req.Suscription
	}
	if req.IsStartSubscription != nil {
		user.IsStartSubscription = *req.IsStartSubscription
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update subscription of user '%s': %w", userID, err)
	}

	if req.Suscription != nil {
		var tagErr error
		if *req.Suscription {
			tagErr = s.tags.AddTag(ctx, user.Email, TagPremium)
		} else {
			tagErr = s.tags.RemoveTag(ctx, user.Email, TagPremium)
		}
		if tagErr != nil {
			s.logger.Warn("Failed to sync premium tag", zap.String("user_id", user.ID), zap.Bool("suscription", *req.Suscription), zap.Error(tagErr))
		}
	}

	publishUserEvent(ctx, s.publisher, s.logger, EventUserSubscriptionChanged, user, "")
	return user, nil
}

func (s *userService) AddFavoriteMusic(ctx context.Context, userID, musicID string) (*models.FavoriteResult, error) {
	return s.toggleFavorite(ctx, userID, models.FavoriteMusic, musicID, TagMusicLover)
}

func (s *userService) AddFavoriteVideo(ctx context.Context, userID, videoID string) (*models.FavoriteResult, error) {
	return s.toggleFavorite(ctx, userID, models.FavoriteVideo, videoID, TagVideoLover)
}

// toggleFavorite stores the favorite first; the CRM tag is only added once that write
// succeeded and the item became a favorite. Unfavoriting leaves tags alone.
func (s *userService) toggleFavorite(ctx context.Context, userID string, kind models.FavoriteKind, itemID, tag string) (*models.FavoriteResult, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, fmt.Errorf("%w: favorite id is required", ErrInvalidInput)
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	favorited, err := s.favoriteRepo.ToggleFavorite(ctx, kind, itemID, user.ID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s '%s'", ErrMediaNotFound, kind, itemID)
		}
		return nil, fmt.Errorf("failed to toggle %s favorite for user '%s': %w", kind, userID, err)
	}

	if favorited {
		if err := s.tags.AddTag(ctx, user.Email, tag); err != nil {
			s.logger.Warn("Failed to add favorite tag", zap.String("user_id", user.ID), zap.String("tag", tag), zap.String("item_id", itemID), zap.Error(err))
		}
	}
	return &models.FavoriteResult{ItemID: itemID, Kind: kind, Favorited: favorited}, nil
}

// DeleteUser removes the local record, then the Firebase identity, the user's favorites and
// the CRM tags (or the whole CRM contact when configured to).
func (s *userService) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: id %s", ErrUserNotFound, userID)
		}
		return fmt.Errorf("failed to delete user '%s': %w", userID, err)
	}

	if s.identities != nil && user.FirebaseUID != "" && !user.HasSyntheticUID() {
		if err := s.identities.DeleteUser(ctx, user.FirebaseUID); err != nil {
			s.logger.Warn("Failed to delete Firebase user", zap.String("user_id", userID), zap.String("uid", user.FirebaseUID), zap.Error(err))
		}
	}
	if err := s.favoriteRepo.RemoveUserFavorites(ctx, userID); err != nil {
		s.logger.Warn("Failed to remove favorites of deleted user", zap.String("user_id", userID), zap.Error(err))
	}
	if s.opts.DeleteCRMContact {
		s.deleteContact(ctx, user)
	} else if report, err := s.tags.RemoveAllTags(ctx, user.Email); err != nil {
		s.logger.Warn("Failed to remove CRM tags of deleted user", zap.String("user_id", userID), zap.Error(err))
	} else if len(report.Failed) > 0 {
		s.logger.Warn("Some CRM tags of deleted user could not be removed", zap.String("user_id", userID), zap.Int("failed", len(report.Failed)))
	}

	publishUserEvent(ctx, s.publisher, s.logger, EventUserDeleted, user, "")
	s.logger.Info("User deleted", zap.String("user_id", userID))
	return nil
}

func (s *userService) deleteContact(ctx context.Context, user *models.User) {
	contact, err := s.contacts.FindContactByEmail(ctx, user.Email)
	if err != nil {
		if !errors.Is(err, crm.ErrNotFound) {
			s.logger.Warn("Failed to look up CRM contact of deleted user", zap.String("user_id", user.ID), zap.Error(err))
		}
		return
	}
	if err := s.contacts.DeleteContact(ctx, contact.ID); err != nil && !errors.Is(err, crm.ErrNotFound) {
		s.logger.Warn("Failed to delete CRM contact of deleted user", zap.String("user_id", user.ID), zap.String("contact_id", string(contact.ID)), zap.Error(err))
	}
}
