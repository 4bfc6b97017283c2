package emissions

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"soul-carbon/carbon-tracker-backend/internal/auth"
	"soul-carbon/carbon-tracker-backend/pkg/apperrors"
)

// Handler handles HTTP requests for emission logging
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new emissions handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers emission routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("", h.logEmission)
	router.GET("", h.getHistory)
	router.POST("/calculate", h.calculate)
	router.GET("/categories", h.getCategories)
	router.GET("/stats", h.getStats)
}

func (h *Handler) logEmission(c *gin.Context) {
	user := auth.CurrentUser(c)
	var req LogEmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	emission, err := h.service.LogEmission(c.Request.Context(), user, &req)
	if err != nil {
		h.logger.Error("failed to log emission", zap.Error(err), zap.String("user_id", user.ID.String()))
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"emission": emission,
			"blockchain": gin.H{
				"transaction_id":      emission.HederaTransactionID,
				"consensus_timestamp": emission.ConsensusTimestamp,
				"topic_id":            emission.TopicID,
			},
		},
	})
}

func (h *Handler) getHistory(c *gin.Context) {
	user := auth.CurrentUser(c)
	filters := &HistoryFilters{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", 20),
	}
	if v := c.Query("start_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.StartDate = &t
		}
	}
	if v := c.Query("end_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.EndDate = &t
		}
	}
	if v := c.Query("emission_type"); v != "" {
		filters.EmissionType = &v
	}

	items, total, sum, err := h.service.History(c.Request.Context(), user.ID, filters)
	if err != nil {
		h.logger.Error("failed to list emissions", zap.Error(err))
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"emissions": items,
			"pagination": gin.H{
				"page":  filters.Page,
				"limit": filters.PageSize,
				"total": total,
				"pages": int(math.Ceil(float64(total) / float64(filters.PageSize))),
			},
			"summary": gin.H{
				"total_emissions": sum,
				"count":           total,
			},
		},
	})
}

func (h *Handler) calculate(c *gin.Context) {
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := Calculate(req.EmissionType, req.Category, req.Amount)
	if err != nil {
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"emission_type": req.EmissionType,
			"category":      req.Category,
			"amount":        req.Amount,
			"unit":          req.Unit,
			"co2e_kg":       result.Co2eKg,
			"factor_used":   result.FactorUsed,
		},
	})
}

func (h *Handler) getCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": SupportedCategories()})
}

func (h *Handler) getStats(c *gin.Context) {
	user := auth.CurrentUser(c)
	byType, monthly, err := h.service.Stats(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to aggregate emission stats", zap.Error(err))
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"by_type": byType,
			"monthly": monthly,
		},
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
