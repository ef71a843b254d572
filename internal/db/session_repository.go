package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fawzii0x3/breath-school-api/internal/models"
)

const sessionsCollection = "breathing_sessions"

// firestoreSessionRepository implements the SessionRepository interface using Firestore.
type firestoreSessionRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreSessionRepository creates a new instance of firestoreSessionRepository.
func NewFirestoreSessionRepository(client *firestore.Client, logger *zap.Logger) SessionRepository {
	return &firestoreSessionRepository{client: client, logger: logger}
}

// Create adds a new session document and sets session.ID.
func (r *firestoreSessionRepository) Create(ctx context.Context, session *models.BreathingSession) error {
	if session.UserID == "" {
		return errors.New("session userID cannot be empty for Create operation")
	}
	ref := r.client.Collection(sessionsCollection).NewDoc()
	if _, err := ref.Create(ctx, session); err != nil {
		return fmt.Errorf("failed to create session for user '%s': %w", session.UserID, err)
	}
	session.ID = ref.ID
	return nil
}

// GetByID retrieves a session by its document ID.
func (r *firestoreSessionRepository) GetByID(ctx context.Context, sessionID string) (*models.BreathingSession, error) {
	if sessionID == "" {
		return nil, errors.New("sessionID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(sessionsCollection).Doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("session with ID '%s' not found: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session with ID '%s': %w", sessionID, err)
	}
	var session models.BreathingSession
	if err := docSnap.DataTo(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session data for ID '%s': %w", sessionID, err)
	}
	session.ID = docSnap.Ref.ID
	return &session, nil
}

// ListByUserID returns the sessions owned by a user, newest first.
func (r *firestoreSessionRepository) ListByUserID(ctx context.Context, userID string) ([]*models.BreathingSession, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for ListByUserID operation")
	}
	iter := r.client.Collection(sessionsCollection).
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	sessions := []*models.BreathingSession{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate sessions for user '%s': %w", userID, err)
		}

		var session models.BreathingSession
		if err := doc.DataTo(&session); err != nil {
			r.logger.Warn("Skipping undecodable session document", zap.String("sessionID", doc.Ref.ID), zap.Error(err))
			continue
		}
		session.ID = doc.Ref.ID
		sessions = append(sessions, &session)
	}
	return sessions, nil
}

// Update writes the completion state of an existing session.
func (r *firestoreSessionRepository) Update(ctx context.Context, session *models.BreathingSession) error {
	if session.ID == "" {
		return errors.New("session ID cannot be empty for Update operation")
	}
	updates := []firestore.Update{
		{Path: "completed", Value: session.Completed},
		{Path: "completedAt", Value: session.CompletedAt},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if _, err := r.client.Collection(sessionsCollection).Doc(session.ID).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("session with ID '%s' not found: %w", session.ID, ErrNotFound)
		}
		return fmt.Errorf("failed to update session with ID '%s': %w", session.ID, err)
	}
	return nil
}
