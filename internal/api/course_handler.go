package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fawzii0x3/breath-school-api/internal/core"
	"github.com/fawzii0x3/breath-school-api/internal/middleware"
	"github.com/fawzii0x3/breath-school-api/internal/models"
)

// CourseHandler handles API endpoints related to courses.
type CourseHandler struct {
	courseService core.CourseService
	logger        *zap.Logger
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(cs core.CourseService, logger *zap.Logger) *CourseHandler {
	return &CourseHandler{courseService: cs, logger: logger}
}

// mapContentErrorToStatus maps errors from the content services to HTTP status codes and ErrorResponse.
func mapContentErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrCourseNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrCourseNotFound.Error()}
	case errors.Is(err, core.ErrSessionNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrSessionNotFound.Error()}
	case errors.Is(err, core.ErrThemeNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrThemeNotFound.Error()}
	case errors.Is(err, core.ErrAuthRequired):
		statusCode = http.StatusUnauthorized
		errResponse = ErrorResponse{Error: core.ErrAuthRequired.Error()}
	case errors.Is(err, core.ErrPremiumRequired):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: core.ErrPremiumRequired.Error()}
	case errors.Is(err, core.ErrForbidden):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: core.ErrForbidden.Error()}
	case errors.Is(err, core.ErrThemeNameTaken):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: core.ErrThemeNameTaken.Error(), Details: err.Error()}
	case errors.Is(err, core.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Invalid input", Details: err.Error()}
	default:
		logger.Error("Internal Server Error", zap.String("path", c.FullPath()), zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

func requireUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
	}
	return user, ok
}

// ListCourses handles GET /courses. Anonymous callers only see free courses.
func (h *CourseHandler) ListCourses(c *gin.Context) {
	viewer, _ := middleware.CurrentUser(c)
	courses, err := h.courseService.ListCourses(c.Request.Context(), viewer)
	if err != nil {
		mapContentErrorToStatus(c, h.logger, err)
		return
	}
	if courses == nil {
		courses = []*models.Course{}
	}
	c.JSON(http.StatusOK, courses)
}

// ListCoursesByLevel handles GET /courses/level/:level.
func (h *CourseHandler) ListCoursesByLevel(c *gin.Context) {
	courses, err := h.courseService.ListCoursesByLevel(c.Request.Context(), models.CourseLevel(c.Param("level")))
	if err != nil {
		mapContentErrorToStatus(c, h.logger, err)
		return
	}
	if courses == nil {
		courses = []*models.Course{}
	}
	c.JSON(http.StatusOK, courses)
}

// GetCourse handles GET /courses/:courseId.
func (h *CourseHandler) GetCourse(c *gin.Context) {
	viewer, _ := middleware.CurrentUser(c)
	course, err := h.courseService.GetCourse(c.Request.Context(), c.Param("courseId"), viewer)
	if err != nil {
		mapContentErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

// CreateCourse handles POST /courses.
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	course, err := h.courseService.CreateCourse(c.Request.Context(), actor, req)
	if err != nil {
		mapContentErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, course)
}
