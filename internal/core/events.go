package core

import (
	"context"

	"go.uber.org/zap"

	"github.com/fawzii0x3/breath-school-api/internal/models"
	"github.com/fawzii0x3/breath-school-api/pkg/messagequeue"
)

// userEvent is the payload of every user.* event.
type userEvent struct {
	UserID              string `json:"userId"`
	Email               string `json:"email"`
	Suscription         bool   `json:"suscription"`
	IsStartSubscription bool   `json:"isStartSubscription"`
	Source              string `json:"source,omitempty"`
}

// publishUserEvent never fails the caller; a broker outage only costs the event.
func publishUserEvent(ctx context.Context, p messagequeue.Publisher, logger *zap.Logger, key string, user *models.User, source string) {
	if p == nil || user == nil {
		return
	}
	evt := userEvent{
		UserID:              user.ID,
		Email:               user.Email,
		Suscription:         user.Suscription,
		IsStartSubscription: user.IsStartSubscription,
		Source:              source,
	}
	if err := p.Publish(ctx, key, evt); err != nil {
		logger.Warn("Failed to publish user event", zap.String("event", key), zap.String("user_id", user.ID), zap.Error(err))
	}
}
