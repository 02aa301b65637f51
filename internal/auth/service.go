// Package auth handles registration, login and token verification.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/stockfolio/portfolio-tracker/internal/config"
	"github.com/stockfolio/portfolio-tracker/internal/database"
	"github.com/stockfolio/portfolio-tracker/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// TokenPair is returned on successful login
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service issues and verifies credentials and tokens
type Service struct {
	db  *database.DB
	rdb *redis.Client
	cfg config.AuthConfig
	log zerolog.Logger
}

// NewService creates an auth service
func NewService(db *database.DB, rdb *redis.Client, cfg config.AuthConfig, log zerolog.Logger) *Service {
	return &Service{
		db:  db,
		rdb: rdb,
		cfg: cfg,
		log: log.With().Str("component", "auth").Logger(),
	}
}

// Register creates a new user with a bcrypt-hashed password. The first
// registered user becomes an admin.
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if _, err := s.db.GetUserByUsername(username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	if _, err := s.db.GetUserByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	count, err := s.db.CountUsers()
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      count == 0,
	}
	if err := s.db.CreateUser(user); err != nil {
		return nil, err
	}

	s.log.Info().Str("username", username).Bool("admin", user.IsAdmin).Msg("Registered user")
	return user, nil
}

// Login verifies credentials and issues an access/refresh token pair. The
// refresh token is stored in Redis with its TTL.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.db.GetUserByUsername(username)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.signToken(user.ID, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.signToken(user.ID, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	if err := s.rdb.Set(ctx, refreshKey(refreshToken), user.ID, s.cfg.RefreshTokenTTL).Err(); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh exchanges a stored refresh token for a new access token
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.rdb.Get(ctx, refreshKey(refreshToken)).Int()
	if err == redis.Nil {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	accessToken, err := s.signToken(userID, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// VerifyAccessToken parses and validates an access token, returning the user id
func (s *Service) VerifyAccessToken(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, ErrInvalidToken
	}
	return int(userID), nil
}

func (s *Service) signToken(userID int, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func refreshKey(token string) string {
	return "refresh:" + token
}
