package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"mentora/internal/config"
	"mentora/internal/redis"
	"mentora/internal/storage"
)

func TestAuthIssueValidateRefresh(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertOwner(t, db, 1, 7)

	svc := NewService(db, nil, "test-secret", time.Minute, time.Hour)
	ctx := context.Background()
	pair, err := svc.IssuePair(ctx, 1, 7)
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		t.Fatalf("expected both tokens")
	}
	claims, err := svc.ValidateAccess(ctx, pair.Access)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.UserID != 1 || claims.CompanyID != 7 {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := svc.ValidateAccess(ctx, pair.Refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token must not be accepted as access token, got %v", err)
	}

	rotated, err := svc.Refresh(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.Refresh == pair.Refresh {
		t.Fatalf("expected a new refresh token")
	}
	if _, err := svc.Refresh(ctx, pair.Refresh); !errors.Is(err, ErrRevokedToken) {
		t.Fatalf("expected reused refresh token to be rejected, got %v", err)
	}
	if _, err := svc.Refresh(ctx, rotated.Refresh); err != nil {
		t.Fatalf("rotated refresh token should work: %v", err)
	}
}

func TestAuthRejectsExpiredAndForeignTokens(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertOwner(t, db, 2, 3)

	svc := NewService(db, nil, "test-secret", time.Minute, time.Hour)
	ctx := context.Background()
	pair, err := svc.IssuePair(ctx, 2, 3)
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}

	other := NewService(db, nil, "another-secret", time.Minute, time.Hour)
	if _, err := other.ValidateAccess(ctx, pair.Access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature mismatch to be invalid, got %v", err)
	}

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }
	if _, err := svc.ValidateAccess(ctx, pair.Access); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expiration error, got %v", err)
	}
	if _, err := svc.ValidateAccess(ctx, "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestAuthRevokeUserTokens(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertOwner(t, db, 4, 4)

	svc := NewService(db, nil, "test-secret", time.Minute, time.Hour)
	ctx := context.Background()
	first, err := svc.IssuePair(ctx, 4, 4)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	second, err := svc.IssuePair(ctx, 4, 4)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if err := svc.RevokeRefresh(ctx, 4, first.Refresh); err != nil {
		t.Fatalf("RevokeRefresh: %v", err)
	}
	if _, err := svc.Refresh(ctx, first.Refresh); err == nil {
		t.Fatalf("expected revoked refresh token to fail")
	}
	if err := svc.RevokeRefresh(ctx, 99, second.Refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign revoke to fail, got %v", err)
	}
	if err := svc.RevokeUserTokens(ctx, 4); err != nil {
		t.Fatalf("RevokeUserTokens: %v", err)
	}
	if _, err := svc.Refresh(ctx, second.Refresh); err == nil {
		t.Fatalf("expected error after revoke all")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret" {
		t.Fatalf("password stored in clear")
	}
	if !CheckPassword(hash, "s3cret") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected mismatch")
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	defer db.Close()
	insertOwner(t, db, 5, 9)
	svc := NewService(db, nil, "test-secret", time.Minute, time.Hour)

	router := gin.New()
	router.GET("/me", svc.Middleware(), func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": p.UserID, "company": p.CompanyID})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	pair, err := svc.IssuePair(context.Background(), 5, 9)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Access)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"company":9,"user":5}` {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestAuthRevokeAccessUsesRedis(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertOwner(t, db, 10, 10)

	cacheClient, direct, cleanup := newRedisCacheClient(t)
	defer cleanup()

	svc := NewService(db, cacheClient, "test-secret", time.Minute, time.Hour)
	ctx := context.Background()
	pair, err := svc.IssuePair(ctx, 10, 10)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	claims, err := svc.ValidateAccess(ctx, pair.Access)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if err := svc.RevokeAccess(ctx, claims); err != nil {
		t.Fatalf("RevokeAccess: %v", err)
	}
	key := redisRevokedPrefix + claims.ID
	ttl, err := direct.TTL(ctx, key).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected revocation ttl %s", ttl)
	}
	if _, err := svc.ValidateAccess(ctx, pair.Access); !errors.Is(err, ErrRevokedToken) {
		t.Fatalf("expected revoked access token, got %v", err)
	}
}

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := storage.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func insertOwner(t *testing.T, db *sqlx.DB, userID, companyID int64) {
	t.Helper()
	now := time.Now().UTC()
	if _, err := db.Exec(`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, '', ?)`,
		userID, "user_"+strconv.FormatInt(userID, 10), now); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO companies (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		companyID, "company_"+strconv.FormatInt(companyID, 10), userID, now); err != nil {
		t.Fatalf("insert company: %v", err)
	}
}

func newRedisCacheClient(t *testing.T) (*redis.Client, *goredis.Client, func()) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed auth tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Host: host,
			Port: port,
			DB:   db,
		},
	}
	client, err := redis.NewRedisClient(cfg)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	direct := goredis.NewClient(&goredis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := direct.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush db: %v", err)
	}
	cleanup := func() {
		client.Close()
		direct.Close()
	}
	return client, direct, cleanup
}
