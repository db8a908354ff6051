package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Token is a signed bearer token and its expiry
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenService issues and validates the bearer tokens guarding block writes
type TokenService interface {
	IssueToken(subject string) (*Token, error)
	ValidateToken(tokenString string) (string, error)
}

type tokenService struct {
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewTokenService creates a new TokenService signing with HS256
func NewTokenService(jwtSecret string, ttl time.Duration) TokenService {
	return &tokenService{
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
		now:       time.Now,
	}
}

// IssueToken signs an access token for subject
func (s *tokenService) IssueToken(subject string) (*Token, error) {
	if subject == "" {
		return nil, errors.New("token subject is required")
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"exp":  expiresAt.Unix(),
		"iat":  now.Unix(),
		"type": "access",
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &Token{
		AccessToken: signed,
		ExpiresAt:   expiresAt,
	}, nil
}

// ValidateToken verifies an access token and returns its subject
func (s *tokenService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	if tokenType, ok := claims["type"].(string); !ok || tokenType != "access" {
		return "", ErrInvalidToken
	}

	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}
