// Package auth issues and verifies the HS256 access/refresh token pairs the
// API hands out at login.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
)

// Kind separates access tokens from refresh tokens so neither can stand in
// for the other.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

const clockSkew = 10 * time.Second

var (
	ErrTokenExpired      = errors.New("token has expired")
	ErrTokenInvalid      = errors.New("token is invalid")
	ErrTokenTypeMismatch = errors.New("wrong token type")
)

type tokenClaims struct {
	jwt.RegisteredClaims
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	PatientID *uuid.UUID  `json:"patient_id,omitempty"`
	Kind      Kind        `json:"token_type"`
}

type JWTManager struct {
	secret []byte
	issuer string
	ttl    map[Kind]time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

func NewJWTManager(cfg config.JWTConfig) *JWTManager {
	m := &JWTManager{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl: map[Kind]time.Duration{
			KindAccess:  cfg.AccessTokenTTL,
			KindRefresh: cfg.RefreshTokenTTL,
		},
		now: time.Now,
	}
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	return m
}

// GenerateTokenPair signs a fresh access and refresh token for the principal.
// ExpiresAt on the pair refers to the access token.
func (m *JWTManager) GenerateTokenPair(claims *domain.Claims) (*domain.TokenPair, error) {
	now := m.now()

	access, accessExp, err := m.sign(claims, KindAccess, now)
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}
	refresh, _, err := m.sign(claims, KindRefresh, now)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExp,
		TokenType:    "Bearer",
	}, nil
}

func (m *JWTManager) ValidateAccessToken(token string) (*domain.Claims, error) {
	return m.verify(token, KindAccess)
}

func (m *JWTManager) ValidateRefreshToken(token string) (*domain.Claims, error) {
	return m.verify(token, KindRefresh)
}

func (m *JWTManager) sign(claims *domain.Claims, kind Kind, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.ttl[kind])
	tc := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   claims.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:     claims.Email,
		Role:      claims.Role,
		PatientID: claims.PatientID,
		Kind:      kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *JWTManager) verify(raw string, want Kind) (*domain.Claims, error) {
	var tc tokenClaims
	_, err := m.parser.ParseWithClaims(raw, &tc, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, ErrTokenInvalid
	}

	if tc.Kind != want {
		return nil, ErrTokenTypeMismatch
	}

	userID, err := uuid.Parse(tc.Subject)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	out := &domain.Claims{
		UserID:    userID,
		Email:     tc.Email,
		Role:      tc.Role,
		PatientID: tc.PatientID,
	}
	if tc.IssuedAt != nil {
		out.IssuedAt = tc.IssuedAt.Time
	}
	return out, nil
}
