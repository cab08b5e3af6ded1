package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ryom080502-dev/audioGIJI6/internal/config"
	"github.com/ryom080502-dev/audioGIJI6/internal/domain"
	"github.com/ryom080502-dev/audioGIJI6/internal/logger"
)

// ErrInvalidCredentials is returned for any authentication failure. The
// HTTP layer maps it to 401 without revealing which part was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// UserStore is the credential persistence boundary the auth service needs.
type UserStore interface {
	GetUser(username string) (domain.User, error)
	UpsertUser(user domain.User) error
}

// AuthService verifies credentials against the user store and mints HS256
// bearer tokens for the API.
type AuthService struct {
	secret []byte
	ttl    time.Duration
	store  UserStore
	log    *logger.Logger
}

func NewAuthService(cfg config.Config, store UserStore, log *logger.Logger) *AuthService {
	return &AuthService{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		store:  store,
		log:    log.WithComponent("auth"),
	}
}

// EnsureDemoUsers seeds the built-in demo accounts when they are missing,
// so a fresh deployment is usable without manual user management.
func (s *AuthService) EnsureDemoUsers() error {
	for _, cred := range []struct{ username, password string }{
		{username: "demo", password: "demo123"},
		{username: "admin", password: "demo123"},
	} {
		if _, err := s.store.GetUser(cred.username); err == nil {
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(cred.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash demo password: %w", err)
		}

		now := time.Now().Unix()
		user := domain.User{
			Username:     cred.username,
			PasswordHash: string(hash),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.UpsertUser(user); err != nil {
			return fmt.Errorf("seed user %s: %w", cred.username, err)
		}
		s.log.WithField("username", cred.username).Info("seeded demo user")
	}
	return nil
}

// Authenticate checks a username/password pair against the store.
func (s *AuthService) Authenticate(username, password string) (domain.User, error) {
	user, err := s.store.GetUser(username)
	if err != nil {
		return domain.User{}, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// CreateToken mints a bearer token for the user, returning the token and
// its expiry.
func (s *AuthService) CreateToken(username string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := jwt.MapClaims{
		"sub": username,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyToken validates a bearer token and returns its subject.
func (s *AuthService) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *AuthService) ChangePassword(username, currentPassword, newPassword string) error {
	user, err := s.Authenticate(username, currentPassword)
	if err != nil {
		return err
	}

	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: new password must not be empty", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = string(hash)
	user.UpdatedAt = time.Now().Unix()
	return s.store.UpsertUser(user)
}
