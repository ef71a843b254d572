package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fawzii0x3/breath-school-api/internal/db"
	"github.com/fawzii0x3/breath-school-api/internal/models"
)

// themeService implements the ThemeService interface.
type themeService struct {
	themeRepo db.ThemeRepository
}

// NewThemeService creates a new ThemeService instance.
func NewThemeService(tr db.ThemeRepository) ThemeService {
	return &themeService{themeRepo: tr}
}

func (s *themeService) ListThemes(ctx context.Context) ([]*models.Theme, error) {
	themes, err := s.themeRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}
	return themes, nil
}

func (s *themeService) GetTheme(ctx context.Context, themeID string) (*models.Theme, error) {
	theme, err := s.themeRepo.GetByID(ctx, themeID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %s", ErrThemeNotFound, themeID)
		}
		return nil, fmt.Errorf("failed to get theme '%s': %w", themeID, err)
	}
	return theme, nil
}

// nameTaken reports whether another theme (not exceptID) already uses name.
func (s *themeService) nameTaken(ctx context.Context, name, exceptID string) (bool, error) {
	existing, err := s.themeRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check theme name '%s': %w", name, err)
	}
	return existing.ID != exceptID, nil
}

func (s *themeService) CreateTheme(ctx context.Context, actor *models.User, req models.CreateThemeRequest) (*models.Theme, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	taken, err := s.nameTaken(ctx, name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: '%s'", ErrThemeNameTaken, name)
	}

	theme := &models.Theme{Name: name, Colors: req.Colors}
	if theme.Colors == nil {
		theme.Colors = map[string]string{}
	}
	if err := s.themeRepo.Create(ctx, theme); err != nil {
		return nil, fmt.Errorf("failed to create theme: %w", err)
	}
	return theme, nil
}

func (s *themeService) UpdateTheme(ctx context.Context, actor *models.User, themeID string, req models.UpdateThemeRequest) (*models.Theme, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	theme, err := s.GetTheme(ctx, themeID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		if name != theme.Name {
			taken, err := s.nameTaken(ctx, name, theme.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, fmt.Errorf("%w: '%s'", ErrThemeNameTaken, name)
			}
		}
		theme.Name = name
	}
	if req.Colors != nil {
		theme.Colors = *req.Colors
	}
	if err := s.themeRepo.Update(ctx, theme); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %s", ErrThemeNotFound, themeID)
		}
		return nil, fmt.Errorf("failed to update theme '%s': %w", themeID, err)
	}
	return theme, nil
}

func (s *themeService) DeleteTheme(ctx context.Context, actor *models.User, themeID string) error {
	if actor == nil || !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := s.themeRepo.Delete(ctx, themeID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: id %s", ErrThemeNotFound, themeID)
		}
		return fmt.Errorf("failed to delete theme '%s': %w", themeID, err)
	}
	return nil
}
