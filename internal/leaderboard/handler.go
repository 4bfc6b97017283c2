package leaderboard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"soul-carbon/carbon-tracker-backend/pkg/apperrors"
)

// Handler handles HTTP requests for leaderboards
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new leaderboard handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers leaderboard routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/global", h.getGlobal)
	router.GET("/:board", h.getBoard)
}

func (h *Handler) getBoard(c *gin.Context) {
	board := c.Param("board")
	limit := 10
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.service.Board(c.Request.Context(), board, limit)
	if err != nil {
		if !apperrors.IsCode(err, apperrors.CodeValidation) {
			h.logger.Error("failed to build leaderboard", zap.Error(err), zap.String("board", board))
		}
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"board":   board,
			"entries": entries,
		},
	})
}

func (h *Handler) getGlobal(c *gin.Context) {
	stats, err := h.service.Global(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to aggregate global stats", zap.Error(err))
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}
