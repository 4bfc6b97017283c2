package offsets

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"soul-carbon/carbon-tracker-backend/internal/auth"
	"soul-carbon/carbon-tracker-backend/internal/projects"
	"soul-carbon/carbon-tracker-backend/pkg/apperrors"
)

// Handler handles HTTP requests for offset settlement
type Handler struct {
	service  *Service
	projects *projects.Service
	logger   *zap.Logger
}

// NewHandler creates a new offsets handler
func NewHandler(service *Service, projectsSvc *projects.Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, projects: projectsSvc, logger: logger}
}

// RegisterRoutes registers offset routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/marketplace", h.getMarketplace)
	router.POST("/purchase", h.purchase)
	router.POST("/redeem", h.redeem)
	router.GET("/balance", h.getBalance)
	router.GET("/history", h.getHistory)
}

func (h *Handler) getMarketplace(c *gin.Context) {
	filters := &projects.MarketplaceFilters{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", 20),
	}
	if v := c.Query("project_type"); v != "" {
		filters.ProjectType = &v
	}
	if v := c.Query("min_price"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filters.MinPrice = &f
		}
	}
	if v := c.Query("max_price"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filters.MaxPrice = &f
		}
	}

	items, total, err := h.projects.Marketplace(c.Request.Context(), filters)
	if err != nil {
		h.logger.Error("failed to list marketplace", zap.Error(err))
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"projects": items,
			"pagination": gin.H{
				"page":  filters.Page,
				"limit": filters.PageSize,
				"total": total,
				"pages": int(math.Ceil(float64(total) / float64(filters.PageSize))),
			},
		},
	})
}

func (h *Handler) purchase(c *gin.Context) {
	user := auth.CurrentUser(c)
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	offset, err := h.service.PurchaseOffset(c.Request.Context(), user, &req)
	if err != nil {
		h.logger.Error("offset purchase failed",
			zap.Error(err),
			zap.String("user_id", user.ID.String()),
			zap.String("project_id", req.ProjectID))
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"offset": offset,
			"blockchain": gin.H{
				"hbar_transaction_id":       offset.HbarTransactionID,
				"token_mint_transaction_id": offset.TokenMintTransactionID,
				"token_id":                  offset.TokenID,
			},
		},
	})
}

func (h *Handler) redeem(c *gin.Context) {
	user := auth.CurrentUser(c)
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.RedeemOffsets(c.Request.Context(), user, &req)
	if err != nil {
		h.logger.Error("offset redemption failed",
			zap.Error(err),
			zap.String("user_id", user.ID.String()),
			zap.Int64("token_amount", req.TokenAmount))
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

func (h *Handler) getBalance(c *gin.Context) {
	user := auth.CurrentUser(c)
	balance, err := h.service.GetBalance(c.Request.Context(), user)
	if err != nil {
		h.logger.Error("failed to query balance", zap.Error(err), zap.String("user_id", user.ID.String()))
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": balance})
}

func (h *Handler) getHistory(c *gin.Context) {
	user := auth.CurrentUser(c)
	filters := &HistoryFilters{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", 20),
	}

	items, total, sum, err := h.service.History(c.Request.Context(), user.ID, filters)
	if err != nil {
		h.logger.Error("failed to list offsets", zap.Error(err))
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"offsets": items,
			"pagination": gin.H{
				"page":  filters.Page,
				"limit": filters.PageSize,
				"total": total,
				"pages": int(math.Ceil(float64(total) / float64(filters.PageSize))),
			},
			"summary": gin.H{
				"total_offset_kg": sum,
				"count":           total,
			},
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
