package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"mentora/internal/redis"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	redisRevokedPrefix = "auth:revoked:"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrRevokedToken = errors.New("token revoked")
)

// TokenPair is returned by the token, refresh and register endpoints.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Principal identifies the caller of an authenticated request.
type Principal struct {
	UserID    int64
	CompanyID int64
}

// Claims carried by both token types.
type Claims struct {
	UserID    int64  `json:"user_id"`
	CompanyID int64  `json:"company_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Service issues, validates, rotates and revokes JWTs. Refresh tokens are tracked in the
// refresh_tokens table; revoked access tokens are remembered in redis when a cache is configured.
type Service struct {
	db         *sqlx.DB
	cache      *redis.Client
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewService constructs an auth service. cache may be nil.
func NewService(db *sqlx.DB, cache *redis.Client, secret string, accessTTL, refreshTTL time.Duration) *Service {
	if accessTTL <= 0 {
		accessTTL = 5 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 24 * time.Hour
	}
	return &Service{
		db:         db,
		cache:      cache,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// IssuePair mints an access/refresh pair and records the refresh token.
func (s *Service) IssuePair(ctx context.Context, userID, companyID int64) (*TokenPair, error) {
	if userID <= 0 || companyID <= 0 {
		return nil, errors.New("invalid principal")
	}
	now := s.now()
	access, _, err := s.sign(userID, companyID, tokenTypeAccess, now, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, claims, err := s.sign(userID, companyID, tokenTypeRefresh, now, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (jti, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		claims.ID, userID, now, claims.ExpiresAt.Time,
	); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// ValidateAccess checks signature, expiry, type and revocation of an access token.
func (s *Service) ValidateAccess(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.parse(token, tokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if s.cache.Enabled() {
		revoked, err := s.cache.Exists(ctx, redisRevokedPrefix+claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrRevokedToken
		}
	}
	return claims, nil
}

// Refresh consumes a refresh token and returns a new pair. The old refresh token stops working.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE jti = ? AND user_id = ? AND expires_at > ?`,
		claims.ID, claims.UserID, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrRevokedToken
	}
	return s.IssuePair(ctx, claims.UserID, claims.CompanyID)
}

// RevokeRefresh deletes a refresh token owned by userID. Unknown tokens are ignored.
func (s *Service) RevokeRefresh(ctx context.Context, userID int64, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil
		}
		return err
	}
	if claims.UserID != userID {
		return ErrInvalidToken
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE jti = ?`, claims.ID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAccess remembers an access token as revoked until it would have expired anyway.
// Without a cache this is a no-op and the token lives out its short TTL.
func (s *Service) RevokeAccess(ctx context.Context, claims *Claims) error {
	if claims == nil || !s.cache.Enabled() || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, redisRevokedPrefix+claims.ID, strconv.FormatInt(claims.UserID, 10), ttl); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

// RevokeUserTokens removes all refresh tokens belonging to the user, ending every session.
func (s *Service) RevokeUserTokens(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

func (s *Service) sign(userID, companyID int64, tokenType string, now time.Time, ttl time.Duration) (string, *Claims, error) {
	claims := &Claims{
		UserID:    userID,
		CompanyID: companyID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, claims, nil
}

func (s *Service) parse(token, tokenType string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType || claims.UserID <= 0 || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
