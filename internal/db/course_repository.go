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

const coursesCollection = "courses"

// firestoreCourseRepository implements the CourseRepository interface using Firestore.
type firestoreCourseRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreCourseRepository creates a new instance of firestoreCourseRepository.
func NewFirestoreCourseRepository(client *firestore.Client, logger *zap.Logger) CourseRepository {
	return &firestoreCourseRepository{client: client, logger: logger}
}

// Create adds a new course document and sets course.ID.
func (r *firestoreCourseRepository) Create(ctx context.Context, course *models.Course) error {
	ref := r.client.Collection(coursesCollection).NewDoc()
	if _, err := ref.Create(ctx, course); err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}
	course.ID = ref.ID
	return nil
}

// GetByID retrieves a course by its document ID.
func (r *firestoreCourseRepository) GetByID(ctx context.Context, courseID string) (*models.Course, error) {
	if courseID == "" {
		return nil, errors.New("courseID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(coursesCollection).Doc(courseID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("course with ID '%s' not found: %w", courseID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get course with ID '%s': %w", courseID, err)
	}
	var course models.Course
	if err := docSnap.DataTo(&course); err != nil {
		return nil, fmt.Errorf("failed to decode course data for ID '%s': %w", courseID, err)
	}
	course.ID = docSnap.Ref.ID
	return &course, nil
}

// List returns every course, newest first.
func (r *firestoreCourseRepository) List(ctx context.Context) ([]*models.Course, error) {
	return r.collect(ctx, r.client.Collection(coursesCollection).OrderBy("createdAt", firestore.Desc))
}

// ListByLevel returns the courses of one level, newest first.
func (r *firestoreCourseRepository) ListByLevel(ctx context.Context, level models.CourseLevel) ([]*models.Course, error) {
	query := r.client.Collection(coursesCollection).Where("level", "==", string(level)).OrderBy("createdAt", firestore.Desc)
	return r.collect(ctx, query)
}

func (r *firestoreCourseRepository) collect(ctx context.Context, query firestore.Query) ([]*models.Course, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	courses := []*models.Course{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate courses: %w", err)
		}

		var course models.Course
		if err := doc.DataTo(&course); err != nil {
			r.logger.Warn("Skipping undecodable course document", zap.String("courseID", doc.Ref.ID), zap.Error(err))
			continue
		}
		course.ID = doc.Ref.ID
		courses = append(courses, &course)
	}
	return courses, nil
}
