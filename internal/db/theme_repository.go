package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fawzii0x3/breath-school-api/internal/models"
)

const themesCollection = "themes"

type firestoreThemeRepository struct {
	client *firestore.Client
}

// NewFirestoreThemeRepository creates a new instance of firestoreThemeRepository.
func NewFirestoreThemeRepository(client *firestore.Client) ThemeRepository {
	return &firestoreThemeRepository{client: client}
}

func (r *firestoreThemeRepository) Create(ctx context.Context, theme *models.Theme) error {
	ref := r.client.Collection(themesCollection).NewDoc()
	if _, err := ref.Create(ctx, theme); err != nil {
		return fmt.Errorf("failed to create theme '%s': %w", theme.Name, err)
	}
	theme.ID = ref.ID
	return nil
}

func (r *firestoreThemeRepository) GetByID(ctx context.Context, themeID string) (*models.Theme, error) {
	if themeID == "" {
		return nil, errors.New("themeID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(themesCollection).Doc(themeID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("theme with ID '%s' not found: %w", themeID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get theme with ID '%s': %w", themeID, err)
	}
	return decodeTheme(docSnap)
}

func (r *firestoreThemeRepository) GetByName(ctx context.Context, name string) (*models.Theme, error) {
	iter := r.client.Collection(themesCollection).Where("name", "==", name).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("theme with name '%s' not found: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query theme by name '%s': %w", name, err)
	}
	return decodeTheme(doc)
}

func (r *firestoreThemeRepository) List(ctx context.Context) ([]*models.Theme, error) {
	iter := r.client.Collection(themesCollection).OrderBy("name", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	themes := []*models.Theme{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate themes: %w", err)
		}
		theme, err := decodeTheme(doc)
		if err != nil {
			return nil, err
		}
		themes = append(themes, theme)
	}
	return themes, nil
}

func (r *firestoreThemeRepository) Update(ctx context.Context, theme *models.Theme) error {
	if theme.ID == "" {
		return errors.New("theme ID cannot be empty for Update operation")
	}
	updates := []firestore.Update{
		{Path: "name", Value: theme.Name},
		{Path: "colors", Value: theme.Colors},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if _, err := r.client.Collection(themesCollection).Doc(theme.ID).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("theme with ID '%s' not found: %w", theme.ID, ErrNotFound)
		}
		return fmt.Errorf("failed to update theme with ID '%s': %w", theme.ID, err)
	}
	return nil
}

func (r *firestoreThemeRepository) Delete(ctx context.Context, themeID string) error {
	if themeID == "" {
		return errors.New("themeID cannot be empty for Delete operation")
	}
	// Exists precondition turns a missing document into NotFound instead of a silent no-op.
	_, err := r.client.Collection(themesCollection).Doc(themeID).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("theme with ID '%s' not found: %w", themeID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete theme with ID '%s': %w", themeID, err)
	}
	return nil
}

func decodeTheme(doc *firestore.DocumentSnapshot) (*models.Theme, error) {
	var theme models.Theme
	if err := doc.DataTo(&theme); err != nil {
		return nil, fmt.Errorf("failed to decode theme data for ID '%s': %w", doc.Ref.ID, err)
	}
	theme.ID = doc.Ref.ID
	return &theme, nil
}
