package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fawzii0x3/breath-school-api/internal/core"
	"github.com/fawzii0x3/breath-school-api/internal/models"
)

// ThemeHandler handles API endpoints related to themes.
type ThemeHandler struct {
	themeService core.ThemeService
	logger       *zap.Logger
}

// NewThemeHandler creates a new ThemeHandler.
func NewThemeHandler(ts core.ThemeService, logger *zap.Logger) *ThemeHandler {
	return &ThemeHandler{themeService: ts, logger: logger}
}

func (h *ThemeHandler) ListThemes(c *gin.Context) {
	themes, err := h.themeService.ListThemes(c.Request.Context())
	if err != nil {
		mapContentErrorToStatus(c, h.logger, err)
		return
	}
	if themes == nil {
		themes = []*models.Theme{}
	}
	c.JSON(http.StatusOK, themes)
}

func (h *ThemeHandler) GetTheme(c *gin.Context) {
	theme, err := h.themeService.GetTheme(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapContentErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, theme)
}

func (h *ThemeHandler) CreateTheme(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.CreateThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	theme, err := h.themeService.CreateTheme(c.Request.Context(), actor, req)
	if err != nil {
		mapContentErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, theme)
}

func (h *ThemeHandler) UpdateTheme(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.UpdateThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	theme, err := h.themeService.UpdateTheme(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		mapContentErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, theme)
}

func (h *ThemeHandler) DeleteTheme(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.themeService.DeleteTheme(c.Request.Context(), actor, c.Param("id")); err != nil {
		mapContentErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
