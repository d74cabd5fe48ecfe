package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"rfqgateway/internal/model"
	"rfqgateway/internal/supabase"
	"rfqgateway/pkg/logger"
	"rfqgateway/pkg/metrics"
	"rfqgateway/pkg/util"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

const defaultCacheTTL = 60 * time.Second

// bounds a shared lookup once it no longer follows any single caller
const resolveTimeout = 10 * time.Second

// UserLookup resolves a token through Supabase Auth when no JWT secret is configured.
type UserLookup interface {
	GetUser(ctx context.Context, bearer string) (*supabase.Response, error)
}

type Service struct {
	users     UserLookup
	jwtSecret string
	cache     SessionCache
	cacheTTL  time.Duration
	group     singleflight.Group
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(users UserLookup, jwtSecret string, cache SessionCache, cacheTTL time.Duration, logger *zap.Logger) *Service {
	if cache == nil {
		cache = NewMemorySessionCache()
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:     users,
		jwtSecret: jwtSecret,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// Authenticate resolves the user behind an access token. Concurrent lookups of the same
// token share one upstream call.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.AuthUser, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	key := sessionKey(token)

	if user, ok := s.cache.Get(ctx, key); ok {
		if user.ExpiresAt.IsZero() || s.now().Before(user.ExpiresAt) {
			metrics.IncrementAuthSessionCache("hit")
			return user, nil
		}
		s.cache.Invalidate(ctx, key)
	}
	metrics.IncrementAuthSessionCache("miss")

	// 共享的查询不随首个调用方取消
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()

		user, err := s.resolve(fctx, token)
		if err != nil {
			return nil, err
		}
		ttl := s.cacheTTL
		if !user.ExpiresAt.IsZero() {
			if remaining := user.ExpiresAt.Sub(s.now()); remaining < ttl {
				ttl = remaining
			}
		}
		s.cache.Set(fctx, key, user, ttl)
		return user, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	v, err := res.Val, res.Err
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			logger.WithTrace(ctx, s.logger).Warn("Token resolution failed", zap.Error(err))
		}
		return nil, err
	}

	u := *v.(*model.AuthUser)
	return &u, nil
}

// Invalidate drops the cached session of token so the next request re-reads claims
// (e.g. after app_metadata changed).
func (s *Service) Invalidate(ctx context.Context, token string) {
	if token == "" {
		return
	}
	s.cache.Invalidate(ctx, sessionKey(token))
}

func (s *Service) resolve(ctx context.Context, token string) (*model.AuthUser, error) {
	if s.jwtSecret != "" {
		claims, err := util.ParseHS256(token, s.jwtSecret)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return userFromClaims(claims)
	}
	return s.resolveRemote(ctx, token)
}

func (s *Service) resolveRemote(ctx context.Context, token string) (*model.AuthUser, error) {
	if s.users == nil {
		return nil, errors.New("no token verifier configured")
	}
	resp, err := s.users.GetUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("auth user lookup: %w", err)
	}
	switch {
	case resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden:
		return nil, ErrInvalidToken
	case !resp.OK():
		return nil, &supabase.UpstreamError{Operation: "auth.user", Status: resp.Status, Body: resp.Body}
	}

	var raw struct {
		ID           string         `json:"id"`
		Email        string         `json:"email"`
		Role         string         `json:"role"`
		AppMetadata  map[string]any `json:"app_metadata"`
		UserMetadata map[string]any `json:"user_metadata"`
	}
	if err := json.Unmarshal(resp.Body, &raw); err != nil || raw.ID == "" {
		return nil, ErrInvalidToken
	}
	return buildUser(raw.ID, raw.Email, raw.Role, raw.AppMetadata, raw.UserMetadata, time.Time{}), nil
}

func userFromClaims(claims jwt.MapClaims) (*model.AuthUser, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	appMeta, _ := claims["app_metadata"].(map[string]any)
	userMeta, _ := claims["user_metadata"].(map[string]any)
	return buildUser(sub, email, role, appMeta, userMeta, expiresAt), nil
}

func buildUser(id, email, role string, appMeta, userMeta map[string]any, expiresAt time.Time) *model.AuthUser {
	if appMeta == nil {
		appMeta = map[string]any{}
	}
	if userMeta == nil {
		userMeta = map[string]any{}
	}
	u := &model.AuthUser{
		ID:           id,
		Email:        email,
		Role:         role,
		UserMetadata: userMeta,
		AppMetadata:  appMeta,
		ExpiresAt:    expiresAt,
	}
	// app_metadata is server-controlled and wins over user_metadata
	u.CompanyID = metaString("company_id", appMeta, userMeta)
	u.CompanyRole = metaString("company_role", appMeta, userMeta)
	if r := metaString("role", appMeta); r != "" {
		u.Role = r
	}
	return u
}

func metaString(key string, sources ...map[string]any) string {
	for _, m := range sources {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func sessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
