package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"
)

// Common errors
var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrTokenRevoked = errors.New("session token revoked")
	ErrCannotIssue  = errors.New("session tokens can only be issued with HS256")
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const claimsKey contextKey = "sessionClaims"

// keySetTTL is how long a fetched JWKS is trusted
const keySetTTL = time.Hour

// Config holds session token configuration
type Config struct {
	PublicKeyURL string
	Secret       string
	Algorithm    string
	TTL          time.Duration
}

// Claims are the claims carried by a session token
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Sessions issues, verifies and revokes session tokens
type Sessions struct {
	config Config
	secret []byte
	logger *zap.SugaredLogger

	keyLock      sync.RWMutex
	keySet       jwk.Set
	keyFetchedAt time.Time

	revokedLock sync.Mutex
	revoked     map[string]time.Time
}

// NewSessions creates a session manager. With HS256 and no secret a random
// secret is generated, so tokens do not survive a restart.
func NewSessions(cfg Config, logger *zap.SugaredLogger) (*Sessions, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "HS256"
	}
	cfg.Algorithm = strings.ToUpper(cfg.Algorithm)
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}

	s := &Sessions{
		config:  cfg,
		logger:  logger,
		revoked: make(map[string]time.Time),
	}

	switch cfg.Algorithm {
	case "HS256":
		if cfg.Secret == "" {
			secret := make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				return nil, fmt.Errorf("failed to generate session secret: %w", err)
			}
			logger.Warn("JWT_SECRET not set, using a random session secret")
			s.secret = secret
		} else {
			s.secret = []byte(cfg.Secret)
		}
	case "RS256":
		if cfg.PublicKeyURL == "" {
			return nil, errors.New("JWT public key URL not configured")
		}
	default:
		return nil, fmt.Errorf("unsupported JWT algorithm: %s", cfg.Algorithm)
	}

	return s, nil
}

// Issue signs a session token for the user
func (s *Sessions) Issue(userID, username string) (string, time.Time, error) {
	if s.secret == nil {
		return "", time.Time{}, ErrCannotIssue
	}

	now := time.Now()
	expiresAt := now.Add(s.config.TTL)
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify validates tokenString and returns its claims
func (s *Sessions) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.verificationKey(ctx, token)
	}, jwt.WithValidMethods([]string{s.config.Algorithm}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token missing 'sub' claim", ErrInvalidToken)
	}

	if s.isRevoked(claims.ID) {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// Revoke denies tokenString until it expires
func (s *Sessions) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.Verify(ctx, tokenString)
	if err != nil {
		return err
	}

	s.revokedLock.Lock()
	defer s.revokedLock.Unlock()

	now := time.Now()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}

	expiresAt := now.Add(s.config.TTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	s.revoked[claims.ID] = expiresAt

	s.logger.Debugw("Session revoked", "userID", claims.Subject, "tokenID", claims.ID)
	return nil
}

func (s *Sessions) isRevoked(id string) bool {
	if id == "" {
		return false
	}
	s.revokedLock.Lock()
	defer s.revokedLock.Unlock()

	_, ok := s.revoked[id]
	return ok
}

func (s *Sessions) verificationKey(ctx context.Context, token *jwt.Token) (interface{}, error) {
	if s.secret != nil {
		return s.secret, nil
	}

	set, err := s.getKeySet(ctx)
	if err != nil {
		return nil, err
	}

	var key jwk.Key
	if kid, ok := token.Header["kid"].(string); ok && kid != "" {
		found, ok := set.LookupKeyID(kid)
		if !ok {
			return nil, fmt.Errorf("no key with kid %q in JWKS", kid)
		}
		key = found
	} else {
		found, ok := set.Key(0)
		if !ok {
			return nil, errors.New("JWKS contains no keys")
		}
		key = found
	}

	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS key: %w", err)
	}
	return raw, nil
}

// getKeySet fetches and caches the JWKS
func (s *Sessions) getKeySet(ctx context.Context) (jwk.Set, error) {
	s.keyLock.RLock()
	if s.keySet != nil && time.Since(s.keyFetchedAt) < keySetTTL {
		defer s.keyLock.RUnlock()
		return s.keySet, nil
	}
	s.keyLock.RUnlock()

	s.keyLock.Lock()
	defer s.keyLock.Unlock()

	// Double-check after acquiring the write lock
	if s.keySet != nil && time.Since(s.keyFetchedAt) < keySetTTL {
		return s.keySet, nil
	}

	set, err := jwk.Fetch(ctx, s.config.PublicKeyURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	s.keySet = set
	s.keyFetchedAt = time.Now()
	return set, nil
}

// WithClaims stores claims in ctx
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFrom returns the session claims stored in ctx
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
