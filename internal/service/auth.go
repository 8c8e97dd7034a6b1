package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService authenticates the operator account that owns the management
// surface. There is a single admin identity, configured at startup.
type AuthService struct {
	email        string
	passwordHash string
	jwtSecret    []byte
	jwtExpiry    time.Duration
}

func NewAuthService(email, passwordHash, secret string, expiryHours int) *AuthService {
	return &AuthService{
		email:        email,
		passwordHash: passwordHash,
		jwtSecret:    []byte(secret),
		jwtExpiry:    time.Duration(expiryHours) * time.Hour,
	}
}

// Enabled reports whether admin auth is configured; when it is not, the
// management surface is open (single-operator deployments behind a firewall).
func (s *AuthService) Enabled() bool {
	return s.email != "" && s.passwordHash != ""
}

// Login verifies the admin password and returns a signed JWT.
func (s *AuthService) Login(email, password string) (string, error) {
	if !s.Enabled() || email != s.email {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  email,
		"role": "admin",
		"exp":  now.Add(s.jwtExpiry).Unix(),
		"iat":  now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken checks signature and expiry and returns the claims.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
