package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fawzii0x3/breath-school-api/internal/db"
	"github.com/fawzii0x3/breath-school-api/internal/models"
)

// sessionService implements the SessionService interface.
type sessionService struct {
	sessionRepo db.SessionRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewSessionService creates a new SessionService instance.
func NewSessionService(sr db.SessionRepository, logger *zap.Logger) SessionService {
	return &sessionService{sessionRepo: sr, logger: logger, now: time.Now}
}

func (s *sessionService) CreateSession(ctx context.Context, user *models.User, req models.CreateSessionRequest) (*models.BreathingSession, error) {
	session := &models.BreathingSession{
		UserID:      user.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Duration:    req.Duration,
		Technique:   req.Technique,
	}
	switch {
	case session.Title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	case session.Duration <= 0:
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	case !session.Technique.Valid():
		return nil, fmt.Errorf("%w: unknown technique '%s'", ErrInvalidInput, session.Technique)
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ListSessions returns the user's sessions, newest first.
func (s *sessionService) ListSessions(ctx context.Context, user *models.User) ([]*models.BreathingSession, error) {
	sessions, err := s.sessionRepo.ListByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions of user '%s': %w", user.ID, err)
	}
	return sessions, nil
}

// CompleteSession marks one of the user's sessions as completed. Sessions owned by
// someone else are reported as not found.
func (s *sessionService) CompleteSession(ctx context.Context, user *models.User, sessionID string) (*models.BreathingSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get session '%s': %w", sessionID, err)
	}
	if session.UserID != user.ID {
		s.logger.Warn("Attempt to complete a session owned by another user",
			zap.String("session_id", sessionID), zap.String("user_id", user.ID))
		return nil, fmt.Errorf("%w: id %s", ErrSessionNotFound, sessionID)
	}
	if session.Completed {
		return session, nil
	}

	completedAt := s.now().UTC()
	session.Completed = true
	session.CompletedAt = &completedAt
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to complete session '%s': %w", sessionID, err)
	}
	return session, nil
}
