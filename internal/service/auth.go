package service

import (
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend/internal/models"
	"backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type AuthService interface {
	Register(username, password string) (*models.User, error)
	Login(username, password string) (string, time.Time, error) // Returns JWT token, expiration time, and error
	Logout(username string) error
}

type authService struct {
	repo      repository.AuthRepository
	logger    *zap.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(repo repository.AuthRepository, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) AuthService {
	return &authService{
		repo:      repo,
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

func (s *authService) Register(username, password string) (*models.User, error) {
	exists, err := s.repo.UsernameExists(username)
	if err != nil {
		s.logger.Error("Failed to check existing username", zap.Error(err))
		return nil, fmt.Errorf("failed to check existing users: %w", err)
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	passwordHash, err := s.hashPassword(password)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: passwordHash,
	}

	if err := s.repo.CreateUser(user); err != nil {
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("New user registered", zap.String("username", user.Username))
	return user, nil
}

func (s *authService) Login(username, password string) (string, time.Time, error) {
	user, err := s.repo.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, ErrUserNotFound
		}
		s.logger.Error("Failed to get user by username", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !s.verifyPassword(user.PasswordHash, password) {
		return "", time.Time{}, ErrInvalidCredentials
	}

	expirationTime := time.Now().Add(s.tokenTTL)
	claims := &models.Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		s.logger.Error("Failed to generate JWT token", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("User logged in successfully.", zap.String("username", user.Username))
	return tokenString, expirationTime, nil
}

func (s *authService) Logout(username string) error {
	// Tokens are stateless; logout is advisory until a denylist exists.
	s.logger.Info("User logged out successfully.", zap.String("username", username))
	return nil
}

// hashPassword uses Argon2id to hash the password.
func (s *authService) hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s", argon2.Version, 64*1024, 1, 4, encodedSalt, encodedHash), nil
}

// verifyPassword compares a plaintext password with an encoded Argon2 hash.
func (s *authService) verifyPassword(hashedPassword, password string) bool {
	// Format: $argon2id$v=19$m=65536,t=1,p=4$salt$hash
	sections := strings.Split(strings.TrimPrefix(hashedPassword, "$"), "$")
	if len(sections) != 5 {
		s.logger.Error("Invalid hash format", zap.Int("sections", len(sections)))
		return false
	}

	var version int
	fmt.Sscanf(sections[1], "v=%d", &version)

	var m, t, p uint32
	fmt.Sscanf(sections[2], "m=%d,t=%d,p=%d", &m, &t, &p)

	decodedSalt, err := base64.RawStdEncoding.DecodeString(sections[3])
	if err != nil {
		s.logger.Error("Failed to decode salt", zap.Error(err))
		return false
	}
	decodedHash, err := base64.RawStdEncoding.DecodeString(sections[4])
	if err != nil {
		s.logger.Error("Failed to decode hash", zap.Error(err))
		return false
	}

	comparisonHash := argon2.IDKey([]byte(password), decodedSalt, t, m, uint8(p), uint32(len(decodedHash)))

	return subtle.ConstantTimeCompare(comparisonHash, decodedHash) == 1
}
