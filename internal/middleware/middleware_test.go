package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeCounter mimics INCR/EXPIRE/TTL/DEL in memory. A key without an entry
// in expires has no expiry.
type fakeCounter struct {
	counts    map[string]int64
	expires   map[string]time.Duration
	incrErr   error
	expireErr error
	ttlErr    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.incrErr != nil {
		return redis.NewIntResult(0, f.incrErr)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if f.expireErr != nil {
		return redis.NewBoolResult(false, f.expireErr)
	}
	f.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCounter) TTL(_ context.Context, key string) *redis.DurationCmd {
	if f.ttlErr != nil {
		return redis.NewDurationResult(0, f.ttlErr)
	}
	if _, ok := f.counts[key]; !ok {
		return redis.NewDurationResult(-2, nil)
	}
	ttl, ok := f.expires[key]
	if !ok {
		return redis.NewDurationResult(-1, nil)
	}
	return redis.NewDurationResult(ttl, nil)
}

func (f *fakeCounter) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := f.counts[key]; ok {
			n++
		}
		delete(f.counts, key)
		delete(f.expires, key)
	}
	return redis.NewIntResult(n, nil)
}

const clientKey = rateLimitKeyPrefix + ":10.0.0.1"

func limitedRouter(counter Counter, limit int) *gin.Engine {
	r := gin.New()
	r.POST("/issues", IssueRateLimiter(counter, limit, time.Hour, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func post(r http.Handler) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/issues", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	return w
}

func TestIssueRateLimiter_BlocksAfterLimit(t *testing.T) {
	counter := newFakeCounter()
	r := limitedRouter(counter, 2)

	assert.Equal(t, http.StatusCreated, post(r).Code)
	assert.Equal(t, http.StatusCreated, post(r).Code)

	w := post(r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "rate limit exceeded", body["error"])
	assert.Equal(t, map[string]interface{}{"retryAfter": float64(3600)}, body["details"])

	assert.Equal(t, time.Hour, counter.expires[clientKey])
}

func TestIssueRateLimiter_RedisFailure(t *testing.T) {
	counter := newFakeCounter()
	counter.incrErr = errors.New("connection refused")

	w := post(limitedRouter(counter, 5))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestIssueRateLimiter_ExpireFailureRemovesCounter(t *testing.T) {
	counter := newFakeCounter()
	counter.expireErr = errors.New("connection reset")
	r := limitedRouter(counter, 1)

	assert.Equal(t, http.StatusInternalServerError, post(r).Code)
	assert.NotContains(t, counter.counts, clientKey)

	counter.expireErr = nil
	assert.Equal(t, http.StatusCreated, post(r).Code)
	assert.Equal(t, time.Hour, counter.expires[clientKey])
}

func TestIssueRateLimiter_RestoresMissingExpiry(t *testing.T) {
	counter := newFakeCounter()
	counter.counts[clientKey] = 5
	r := limitedRouter(counter, 2)

	w := post(r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, time.Hour, counter.expires[clientKey])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]interface{}{"retryAfter": float64(3600)}, body["details"])
}

func TestIssueRateLimiter_TTLFailureReportsWindow(t *testing.T) {
	counter := newFakeCounter()
	counter.counts[clientKey] = 5
	counter.expires[clientKey] = 10 * time.Minute
	counter.ttlErr = errors.New("timeout")

	w := post(limitedRouter(counter, 2))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]interface{}{"retryAfter": float64(3600)}, body["details"])
}

func TestRequestLogger_AssignsAndEchoesRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ping", func(c *gin.Context) {
		assert.NotEmpty(t, c.GetString(RequestIDKey))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "Request handled", logs.All()[0].Message)
	second := logs.All()[1]
	assert.Equal(t, zapcore.WarnLevel, second.Level)
	assert.Equal(t, "abc-123", second.ContextMap()["request_id"])
	assert.Equal(t, int64(http.StatusNotFound), second.ContextMap()["status"])
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.GET("/issues", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/issues", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/issues", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
