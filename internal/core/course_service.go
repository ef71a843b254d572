package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fawzii0x3/breath-school-api/internal/db"
	"github.com/fawzii0x3/breath-school-api/internal/models"
)

// courseService implements the CourseService interface.
type courseService struct {
	courseRepo db.CourseRepository
	logger     *zap.Logger
}

// NewCourseService creates a new CourseService instance.
func NewCourseService(cr db.CourseRepository, logger *zap.Logger) CourseService {
	return &courseService{courseRepo: cr, logger: logger}
}

func canSeePremium(viewer *models.User) bool {
	return viewer != nil && (viewer.Suscription || viewer.IsAdmin())
}

// ListCourses returns the catalog. Premium courses are left out unless the viewer is subscribed.
func (s *courseService) ListCourses(ctx context.Context, viewer *models.User) ([]*models.Course, error) {
	courses, err := s.courseRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	if canSeePremium(viewer) {
		return courses, nil
	}
	visible := make([]*models.Course, 0, len(courses))
	for _, c := range courses {
		if !c.IsPremium {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

func (s *courseService) ListCoursesByLevel(ctx context.Context, level models.CourseLevel) ([]*models.Course, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: unknown level '%s'", ErrInvalidInput, level)
	}
	courses, err := s.courseRepo.ListByLevel(ctx, level)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses of level '%s': %w", level, err)
	}
	return courses, nil
}

func (s *courseService) GetCourse(ctx context.Context, courseID string, viewer *models.User) (*models.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %s", ErrCourseNotFound, courseID)
		}
		return nil, fmt.Errorf("failed to get course '%s': %w", courseID, err)
	}
	if course.IsPremium {
		if viewer == nil {
			return nil, ErrAuthRequired
		}
		if !canSeePremium(viewer) {
			return nil, ErrPremiumRequired
		}
	}
	return course, nil
}

func (s *courseService) CreateCourse(ctx context.Context, actor *models.User, req models.CreateCourseRequest) (*models.Course, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	course := &models.Course{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Instructor:  strings.TrimSpace(req.Instructor),
		Duration:    req.Duration,
		Level:       req.Level,
		Techniques:  req.Techniques,
		Price:       req.Price,
		IsPremium:   req.IsPremium,
		ImageURL:    req.ImageURL,
		VideoURL:    req.VideoURL,
	}
	switch {
	case course.Title == "", course.Description == "", course.Instructor == "":
		return nil, fmt.Errorf("%w: title, description and instructor are required", ErrInvalidInput)
	case course.Duration <= 0:
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	case !course.Level.Valid():
		return nil, fmt.Errorf("%w: unknown level '%s'", ErrInvalidInput, course.Level)
	case course.Price != nil && *course.Price < 0:
		return nil, fmt.Errorf("%w: price cannot be negative", ErrInvalidInput)
	}
	if course.Techniques == nil {
		course.Techniques = []string{}
	}

	if err := s.courseRepo.Create(ctx, course); err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}
	s.logger.Info("Course created", zap.String("course_id", course.ID), zap.String("created_by", actor.ID))
	return course, nil
}
