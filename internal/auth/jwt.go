// Package auth issues and validates API access tokens.
//
// Tokens are HS256 JWTs signed with a server-side secret. Each token names
// the API client in its subject and carries the scopes it may use. There
// are no refresh tokens: clients mint a new token when the old one expires.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTokenExpiry is the lifetime of tokens minted without an explicit TTL.
const DefaultAccessTokenExpiry = 24 * time.Hour

// MaxAccessTokenExpiry bounds the lifetime of any minted token.
const MaxAccessTokenExpiry = 90 * 24 * time.Hour

// ScopePredict allows requesting predictions.
const ScopePredict = "predict"

// Predefined JWT errors.
var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
	ErrMissingSubject     = errors.New("token subject is required")
	ErrInsufficientScope  = errors.New("token lacks required scope")
)

// JWTClaims represents the claims in API access tokens.
type JWTClaims struct {
	jwt.RegisteredClaims

	// Scopes lists the operations the client may perform.
	Scopes []string `json:"scp,omitempty"`
}

// HasScope reports whether the claims grant scope.
func (c *JWTClaims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

// JWTConfig holds configuration for the JWT service.
type JWTConfig struct {
	// SigningKey is the secret key used to sign JWTs.
	SigningKey string

	// Issuer is the issuer claim for tokens (e.g., "histocast").
	Issuer string

	// Audience is the audience claim for tokens (e.g., "histocast-api").
	Audience string

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewJWTService creates a new JWT service.
func NewJWTService(cfg JWTConfig) *JWTService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		now:        now,
	}
}

// GenerateAccessToken mints a token for subject. A zero ttl uses
// DefaultAccessTokenExpiry; longer TTLs are capped at MaxAccessTokenExpiry.
// With no scopes the token gets ScopePredict.
func (s *JWTService) GenerateAccessToken(subject string, ttl time.Duration, scopes ...string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, ErrMissingSubject
	}
	if ttl <= 0 {
		ttl = DefaultAccessTokenExpiry
	}
	ttl = min(ttl, MaxAccessTokenExpiry)
	if len(scopes) == 0 {
		scopes = []string{ScopePredict}
	}

	now := s.now()
	expiresAt := now.Add(ttl)

	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Scopes: scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateAccessToken validates an access token and returns the claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidAccessToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, ErrMissingSubject)
	}

	return claims, nil
}
