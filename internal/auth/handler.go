package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"soul-carbon/carbon-tracker-backend/pkg/apperrors"
)

// ContextUserKey is the gin context key under which the authenticated user is stored.
const ContextUserKey = "user"

// Handler handles HTTP requests for authentication
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new auth handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers auth routes. The profile routes require the
// supplied auth middleware.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authRequired gin.HandlerFunc) {
	router.POST("/register", h.register)
	router.POST("/login", h.login)
	router.GET("/profile", authRequired, h.getProfile)
	router.PUT("/profile", authRequired, h.updateProfile)
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("failed to register user", zap.Error(err))
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "token": resp.Token, "user": resp.User})
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "token": resp.Token, "user": resp.User})
}

func (h *Handler) getProfile(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *Handler) updateProfile(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.service.UpdateProfile(c.Request.Context(), user.ID, &req)
	if err != nil {
		h.logger.Error("failed to update profile", zap.Error(err), zap.String("user_id", user.ID.String()))
		c.JSON(apperrors.HTTPResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": updated})
}

// CurrentUser returns the authenticated user set by the auth middleware.
func CurrentUser(c *gin.Context) *User {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*User)
	if !ok {
		return nil
	}
	return user
}

// CurrentUserID returns the authenticated user's id, or uuid.Nil.
func CurrentUserID(c *gin.Context) uuid.UUID {
	if user := CurrentUser(c); user != nil {
		return user.ID
	}
	return uuid.Nil
}
