package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const tokenCachePrefix = "sales:auth:"

// IdentityUser é o usuário retornado pelo serviço de identidade
type IdentityUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// TokenVerifier valida um bearer token e identifica o usuário
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*IdentityUser, error)
}

// IdentityClient consulta o serviço de identidade externo.
// Tokens válidos ficam em cache no Redis por até ttl, quando disponível.
type IdentityClient struct {
	http    *resty.Client
	baseURL string
	cache   *redis.Client
	ttl     time.Duration
}

// NewIdentityClient cria uma nova instância de IdentityClient; cache pode ser nil
func NewIdentityClient(baseURL, apiKey string, cache *redis.Client, ttl time.Duration) *IdentityClient {
	client := resty.New().
		SetTimeout(5*time.Second).
		SetHeader("apikey", apiKey).
		SetHeader("Accept", "application/json")

	return &IdentityClient{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   cache,
		ttl:     ttl,
	}
}

// Verify valida o token no serviço de identidade
func (c *IdentityClient) Verify(ctx context.Context, token string) (*IdentityUser, error) {
	key := tokenCachePrefix + hashToken(token)

	if user, ok := c.cached(ctx, key); ok {
		return user, nil
	}

	var user IdentityUser
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&user).
		Get(c.baseURL + "/auth/v1/user")
	if err != nil {
		zap.S().Warnf("❌ [AUTH] identity service unreachable: %v", err)
		return nil, NewUnauthorizedError("Authentication failed")
	}
	if resp.IsError() || user.ID == "" {
		return nil, NewUnauthorizedError("Invalid or expired token. Access denied.")
	}

	c.store(ctx, key, &user)
	return &user, nil
}

func (c *IdentityClient) cached(ctx context.Context, key string) (*IdentityUser, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, err := c.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.S().Warnf("⚠️ [AUTH] token cache read failed: %v", err)
		}
		return nil, false
	}
	var user IdentityUser
	if err := json.Unmarshal(data, &user); err != nil || user.ID == "" {
		return nil, false
	}
	return &user, true
}

func (c *IdentityClient) store(ctx context.Context, key string, user *IdentityUser) {
	if c.cache == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl).Err(); err != nil {
		zap.S().Warnf("⚠️ [AUTH] token cache write failed: %v", err)
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// initRedis conecta ao Redis do cache de tokens; sem Redis o cache fica desligado
func initRedis(ctx context.Context, redisURL string) *redis.Client {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		zap.S().Warnf("⚠️ Invalid REDIS_URL, token cache disabled: %v", err)
		return nil
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		zap.S().Warnf("⚠️ Failed to connect to Redis: %v. Token cache disabled.", err)
		_ = client.Close()
		return nil
	}
	zap.S().Info("✅ Connected to Redis token cache")
	return client
}

// bearerToken extrai o token do header Authorization
func bearerToken(header string) (string, *AppError) {
	if header == "" {
		return "", NewUnauthorizedError("Authentication required. Missing Authorization header.")
	}
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", NewUnauthorizedError("Invalid Authorization header format. Expected Bearer token.")
	}
	return token, nil
}

// unauthorizedStatus garante 401 mesmo se o verificador devolver outro erro
func unauthorizedStatus(err error) *AppError {
	if appErr, ok := AsAppError(err); ok && appErr.Status == http.StatusUnauthorized {
		return appErr
	}
	return NewUnauthorizedError("Authentication failed")
}
