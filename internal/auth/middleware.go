package auth

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type contextKey string

const reviewerContextKey contextKey = "reviewer"

// Middleware validates reviewer tokens and rate-limits per reviewer.
type Middleware struct {
	jwtManager *JWTManager
	logger     *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewMiddleware creates the auth middleware. Each reviewer gets their own
// token bucket so one busy reviewer cannot starve the rest.
func NewMiddleware(jwtManager *JWTManager, logger *zap.Logger) *Middleware {
	return &Middleware{
		jwtManager: jwtManager,
		logger:     logger,
		limiters:   make(map[string]*rate.Limiter),
		limit:      rate.Limit(5),
		burst:      10,
	}
}

func (m *Middleware) limiter(subject string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[subject]
	if !ok {
		l = rate.NewLimiter(m.limit, m.burst)
		m.limiters[subject] = l
	}
	return l
}

// Wrap protects an HTTP handler with token validation and rate limiting.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := ExtractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		claims, err := m.jwtManager.Validate(token)
		if err != nil {
			m.logger.Warn("Token validation failed", zap.Error(err))
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		if !m.limiter(claims.Subject).Allow() {
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithReviewer(r.Context(), claims)))
	})
}

// ContextWithReviewer attaches reviewer claims to a context.
func ContextWithReviewer(ctx context.Context, claims *ReviewerClaims) context.Context {
	return context.WithValue(ctx, reviewerContextKey, claims)
}

// ReviewerFromContext returns the authenticated reviewer's claims.
func ReviewerFromContext(ctx context.Context) (*ReviewerClaims, bool) {
	claims, ok := ctx.Value(reviewerContextKey).(*ReviewerClaims)
	return claims, ok
}
