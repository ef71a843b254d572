package db

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fawzii0x3/breath-school-api/internal/models"
)

var favoriteCollections = map[models.FavoriteKind]string{
	models.FavoriteMusic: "music",
	models.FavoriteVideo: "videos",
}

// favoritesField is the part of a media document this repository touches.
type favoritesField struct {
	Favorites []string `firestore:"favorites"`
}

// firestoreFavoriteRepository implements the FavoriteRepository interface using Firestore.
type firestoreFavoriteRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreFavoriteRepository creates a new instance of firestoreFavoriteRepository.
func NewFirestoreFavoriteRepository(client *firestore.Client, logger *zap.Logger) FavoriteRepository {
	return &firestoreFavoriteRepository{client: client, logger: logger}
}

// ToggleFavorite flips the user's membership in the item's favorites inside a transaction.
func (r *firestoreFavoriteRepository) ToggleFavorite(ctx context.Context, kind models.FavoriteKind, itemID, userID string) (bool, error) {
	collection, ok := favoriteCollections[kind]
	if !ok {
		return false, fmt.Errorf("unknown favorite kind '%s'", kind)
	}
	if itemID == "" || userID == "" {
		return false, errors.New("itemID and userID cannot be empty for ToggleFavorite operation")
	}

	ref := r.client.Collection(collection).Doc(itemID)
	var favorited bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var item favoritesField
		if err := snap.DataTo(&item); err != nil {
			return err
		}
		favorited = !slices.Contains(item.Favorites, userID)
		var change interface{} = firestore.ArrayUnion(userID)
		if !favorited {
			change = firestore.ArrayRemove(userID)
		}
		return tx.Update(ref, []firestore.Update{{Path: "favorites", Value: change}})
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, fmt.Errorf("%s item '%s' not found: %w", kind, itemID, ErrNotFound)
		}
		return false, fmt.Errorf("failed to toggle %s favorite '%s' for user '%s': %w", kind, itemID, userID, err)
	}
	return favorited, nil
}

// RemoveUserFavorites removes userID from every music and video item that lists it.
// It keeps going after a failed item and returns the first error.
func (r *firestoreFavoriteRepository) RemoveUserFavorites(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("userID cannot be empty for RemoveUserFavorites operation")
	}
	var firstErr error
	for kind, collection := range favoriteCollections {
		iter := r.client.Collection(collection).Where("favorites", "array-contains", userID).Documents(ctx)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to query %s favorites of user '%s': %w", kind, userID, err)
				}
				break
			}
			if _, err := doc.Ref.Update(ctx, []firestore.Update{{Path: "favorites", Value: firestore.ArrayRemove(userID)}}); err != nil {
				r.logger.Warn("Failed to remove favorite", zap.String("kind", string(kind)), zap.String("item_id", doc.Ref.ID), zap.Error(err))
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to remove %s favorite '%s': %w", kind, doc.Ref.ID, err)
				}
			}
		}
		iter.Stop()
	}
	return firstErr
}
