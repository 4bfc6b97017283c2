package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"soul-carbon/carbon-tracker-backend/internal/database"
	"soul-carbon/carbon-tracker-backend/pkg/apperrors"
)

const bcryptCost = 12

// Service provides registration, login and profile management.
type Service struct {
	repo      Repository
	jwtSecret []byte
	jwtExpiry time.Duration
	logger    *zap.Logger
}

// NewService creates a new auth service
func NewService(repo Repository, jwtSecret string, jwtExpiry time.Duration, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		jwtExpiry: jwtExpiry,
		logger:    logger,
	}
}

// Register creates a new user and returns a signed token.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:              uuid.New(),
		Email:           req.Email,
		PasswordHash:    string(hash),
		HederaAccountID: req.HederaAccountID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		IsActive:        true,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("user already exists with this email")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("new user registered", zap.String("email", user.Email))
	return &AuthResponse{Token: token, User: user}, nil
}

// Login verifies credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.String("email", user.Email))
	return &AuthResponse{Token: token, User: user}, nil
}

// GetProfile returns the user for an id.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user not found")
	}
	return user, nil
}

// UpdateProfile applies partial profile changes.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.HederaAccountID != nil {
		user.HederaAccountID = req.HederaAccountID
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// VerifyToken parses a bearer token and returns the user id claim.
func (s *Service) VerifyToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, apperrors.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, apperrors.Unauthorized("invalid token claims")
	}
	sub, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, apperrors.Unauthorized("invalid token claims")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, apperrors.Unauthorized("invalid token claims")
	}
	return userID, nil
}

func (s *Service) generateToken(userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(s.jwtExpiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
