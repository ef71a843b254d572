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
	"github.com/fawzii0x3/breath-school-api/internal/models"
	"github.com/fawzii0x3/breath-school-api/pkg/messagequeue"
)

// reconciliationService implements the ReconciliationService interface.
type reconciliationService struct {
	userRepo  db.UserRepository
	contacts  crm.ContactStore
	publisher messagequeue.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewReconciliationService creates a new ReconciliationService instance.
func NewReconciliationService(ur db.UserRepository, cs crm.ContactStore, p messagequeue.Publisher, logger *zap.Logger) ReconciliationService {
	return &reconciliationService{
		userRepo:  ur,
		contacts:  cs,
		publisher: p,
		logger:    logger,
		now:       time.Now,
	}
}

// SyntheticFirebaseUID mints the placeholder UID given to accounts imported from the CRM.
func SyntheticFirebaseUID(now time.Time) string {
	return fmt.Sprintf("%s%d", models.SyntheticUIDPrefix, now.UnixMilli())
}

func (s *reconciliationService) ResolveOrCreateUser(ctx context.Context, email string) (*ResolveResult, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return &ResolveResult{User: user, Created: false}, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: lookup of '%s': %v", ErrReconciliationFailed, email, err)
	}

	contact, err := s.contacts.FindContactByEmail(ctx, email)
	switch {
	case err == nil:
		return s.importContact(ctx, email, contact)
	case errors.Is(err, crm.ErrNotFound):
		// fall through to a fresh local account
	default:
		s.logger.Warn("CRM lookup failed during reconciliation, continuing locally",
			zap.String("email", email), zap.Error(err))
	}
	return s.createLocalFirst(ctx, email)
}

// importContact creates the local record for a person the CRM already knows.
func (s *reconciliationService) importContact(ctx context.Context, email string, contact *crm.Contact) (*ResolveResult, error) {
	first, last := contact.Names()
	fullName := strings.TrimSpace(first + " " + last)
	if fullName == "" {
		fullName = models.EmailLocalPart(email)
	}
	user := &models.User{
		Email:       email,
		FullName:    fullName,
		Role:        models.RoleUser,
		FirebaseUID: SyntheticFirebaseUID(s.now()),
	}
	created, res, err := s.create(ctx, user)
	if err != nil || !created {
		return res, err
	}
	s.logger.Info("Imported user from CRM contact", zap.String("user_id", user.ID), zap.String("contact_id", string(contact.ID)))
	publishUserEvent(ctx, s.publisher, s.logger, EventUserCreated, user, "crm")
	return res, nil
}

// createLocalFirst creates the local record and then mirrors it into the CRM.
func (s *reconciliationService) createLocalFirst(ctx context.Context, email string) (*ResolveResult, error) {
	user := &models.User{
		Email:    email,
		FullName: models.EmailLocalPart(email),
		Role:     models.RoleUser,
	}
	if user.FullName == "" {
		user.FullName = models.DefaultFullName
	}
	created, res, err := s.create(ctx, user)
	if err != nil || !created {
		return res, err
	}
	s.createContact(ctx, user)
	publishUserEvent(ctx, s.publisher, s.logger, EventUserCreated, user, "reconciliation")
	return res, nil
}

// create stores user. A duplicate means a concurrent caller won; its record is returned with created=false.
func (s *reconciliationService) create(ctx context.Context, user *models.User) (bool, *ResolveResult, error) {
	err := s.userRepo.Create(ctx, user)
	if err == nil {
		return true, &ResolveResult{User: user, Created: true}, nil
	}
	if errors.Is(err, db.ErrDuplicate) {
		existing, getErr := s.userRepo.GetByEmail(ctx, user.Email)
		if getErr == nil {
			return false, &ResolveResult{User: existing, Created: false}, nil
		}
		return false, nil, fmt.Errorf("%w: re-read after duplicate for '%s': %v", ErrReconciliationFailed, user.Email, getErr)
	}
	return false, nil, fmt.Errorf("%w: %v", ErrReconciliationFailed, err)
}

func (s *reconciliationService) createContact(ctx context.Context, user *models.User) {
	first, last := models.SplitFullName(user.FullName)
	_, err := s.contacts.CreateContact(ctx, crm.CreateContactRequest{
		Email:     user.Email,
		FirstName: first,
		LastName:  last,
	})
	if err != nil {
		s.logger.Warn("Failed to create CRM contact", zap.String("email", user.Email), zap.Error(err))
	}
}

func (s *reconciliationService) EnsureCRMContact(ctx context.Context, user *models.User) error {
	if user == nil || user.Email == "" {
		return ErrInvalidEmail
	}
	_, err := s.contacts.FindContactByEmail(ctx, user.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, crm.ErrNotFound) {
		return fmt.Errorf("crm lookup for '%s': %w", user.Email, err)
	}
	first, last := models.SplitFullName(user.FullName)
	if _, err := s.contacts.CreateContact(ctx, crm.CreateContactRequest{Email: user.Email, FirstName: first, LastName: last}); err != nil {
		return fmt.Errorf("crm create for '%s': %w", user.Email, err)
	}
	return nil
}
