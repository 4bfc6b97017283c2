package transactions

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"soul-carbon/carbon-tracker-backend/internal/auth"
	"soul-carbon/carbon-tracker-backend/pkg/apperrors"
)

// Handler handles HTTP requests for the unified transaction log
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new transactions handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers transaction routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/stats/dashboard", h.dashboard)
	router.GET("/:transactionId", h.lookup)
}

func (h *Handler) list(c *gin.Context) {
	user := auth.CurrentUser(c)
	filters := &Filters{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", 20),
	}
	if v := c.Query("kind"); v != "" {
		filters.Kind = &v
	}

	items, total, err := h.service.List(c.Request.Context(), user.ID, filters)
	if err != nil {
		h.logger.Error("failed to list transactions", zap.Error(err))
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"transactions": items,
			"pagination": gin.H{
				"page":  filters.Page,
				"limit": filters.PageSize,
				"total": total,
				"pages": int(math.Ceil(float64(total) / float64(filters.PageSize))),
			},
		},
	})
}

func (h *Handler) lookup(c *gin.Context) {
	user := auth.CurrentUser(c)
	ref := c.Param("transactionId")

	detail, err := h.service.Lookup(c.Request.Context(), user.ID, ref)
	if err != nil {
		if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			h.logger.Error("transaction lookup failed", zap.Error(err), zap.String("ref", ref))
		}
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": detail})
}

func (h *Handler) dashboard(c *gin.Context) {
	user := auth.CurrentUser(c)
	stats, err := h.service.Dashboard(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to aggregate dashboard", zap.Error(err))
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
