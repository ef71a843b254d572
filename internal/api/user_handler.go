package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fawzii0x3/breath-school-api/internal/core"
	"github.com/fawzii0x3/breath-school-api/internal/middleware"
	"github.com/fawzii0x3/breath-school-api/internal/models"
)

// UserHandler handles the user account endpoints.
type UserHandler struct {
	userService    core.UserService
	reconciliation core.ReconciliationService
	logger         *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(us core.UserService, rs core.ReconciliationService, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: us, reconciliation: rs, logger: logger}
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope[any]{Success: false, Message: message})
}

// mapUserErrorToStatus maps errors from the user and reconciliation services to an envelope.
func (h *UserHandler) mapUserErrorToStatus(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, core.ErrMediaNotFound):
		respondError(c, http.StatusNotFound, "Item not found")
	case errors.Is(err, core.ErrInvalidEmail):
		respondError(c, http.StatusBadRequest, core.ErrInvalidEmail.Error())
	case errors.Is(err, core.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("User endpoint failed", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "An unexpected internal server error occurred.")
	}
}

func currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Authentication required")
	}
	return user, ok
}

// AuthenticateFirebase handles POST /auth/firebase. The gate has already resolved the user.
func (h *UserHandler) AuthenticateFirebase(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	claims, _ := middleware.CurrentClaims(c)
	user.FillPromotionDays(time.Now())
	c.JSON(http.StatusOK, success(AuthResponse{User: user, Claims: claims}))
}

// GetMe handles GET /me.
func (h *UserHandler) GetMe(c *gin.Context) {
	current, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := h.userService.GetByID(c.Request.Context(), current.ID)
	if err != nil {
		h.mapUserErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, success(user))
}

// UpdateMe handles PUT /me.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	current, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), current.ID, req)
	if err != nil {
		h.mapUserErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, success(user))
}

// DeleteAccount handles DELETE /delete.
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	current, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.userService.DeleteUser(c.Request.Context(), current.ID); err != nil {
		h.mapUserErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, Envelope[any]{Success: true, Message: "User deleted successfully"})
}

// UpdateSubscriptionStatus handles PUT /updateSubscriptionStatus.
func (h *UserHandler) UpdateSubscriptionStatus(c *gin.Context) {
	current, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if req.Suscription == nil && req.IsStartSubscription == nil {
		respondError(c, http.StatusBadRequest, "suscription or isStartSubscription is required")
		return
	}
	user, err := h.userService.UpdateSubscriptionStatus(c.Request.Context(), current.ID, req)
	if err != nil {
		h.mapUserErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, success(user))
}

// AddFavoriteMusic handles PUT /add-favorite/music/:music.
func (h *UserHandler) AddFavoriteMusic(c *gin.Context) {
	current, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := h.userService.AddFavoriteMusic(c.Request.Context(), current.ID, c.Param("music"))
	if err != nil {
		h.mapUserErrorToStatus(c, err)
		return
	}
	respondFavorite(c, res)
}

// AddFavoriteVideo handles PUT /add-favorite/video/:video.
func (h *UserHandler) AddFavoriteVideo(c *gin.Context) {
	current, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := h.userService.AddFavoriteVideo(c.Request.Context(), current.ID, c.Param("video"))
	if err != nil {
		h.mapUserErrorToStatus(c, err)
		return
	}
	respondFavorite(c, res)
}

func respondFavorite(c *gin.Context, res *models.FavoriteResult) {
	message := "Removed from favorites"
	if res.Favorited {
		message = "Added to favorites"
	}
	c.JSON(http.StatusOK, Envelope[*models.FavoriteResult]{Success: true, Data: res, Message: message})
}

// CheckAndCreate handles GET /users/:email and GET /check-and-create/:email.
func (h *UserHandler) CheckAndCreate(c *gin.Context) {
	res, err := h.reconciliation.ResolveOrCreateUser(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.mapUserErrorToStatus(c, err)
		return
	}
	res.User.FillPromotionDays(time.Now())
	created := res.Created
	message := "User found"
	if created {
		message = "User created"
	}
	c.JSON(http.StatusOK, Envelope[*models.User]{Success: true, Data: res.User, Created: &created, Message: message})
}
