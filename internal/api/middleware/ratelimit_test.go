package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/teamhub254/Homeseeker-sub000/internal/api/middleware"
	"github.com/teamhub254/Homeseeker-sub000/internal/config"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
)

func setupRateLimitEngine(t *testing.T, cfg *config.Config, configSvc *MockConfigService, verifier *MockTurnstileVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	r.Use(middleware.CaptchaMiddleware(cfg, verifier))
	r.Use(middleware.NewRateLimiterMiddleware(ctx, cfg, configSvc).Limit())
	r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.GET("/other", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	return r
}

func hit(router *gin.Engine, path, ip string, headers map[string]string) int {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":12345"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter_HardLimit(t *testing.T) {
	cfg := &config.Config{RateLimitHardRefillRate: 1, RateLimitHardBucketSize: 1, RateLimitSoftRefillRate: 10, RateLimitSoftBucketSize: 10}
	configSvc := new(MockConfigService)
	configSvc.On("GetAPIEndpointConfig", mock.Anything, models.APITypeREST, "/test", false).Return(nil, nil)
	router := setupRateLimitEngine(t, cfg, configSvc, new(MockTurnstileVerifier))

	assert.Equal(t, http.StatusOK, hit(router, "/test", "1.2.3.4", nil))
	assert.Equal(t, http.StatusTooManyRequests, hit(router, "/test", "1.2.3.4", nil))
	assert.Equal(t, http.StatusOK, hit(router, "/test", "4.3.2.1", nil))
}

func TestRateLimiter_SoftLimitRequiresCaptcha(t *testing.T) {
	cfg := &config.Config{RateLimitHardRefillRate: 10, RateLimitHardBucketSize: 10, RateLimitSoftRefillRate: 1, RateLimitSoftBucketSize: 1}
	configSvc := new(MockConfigService)
	configSvc.On("GetAPIEndpointConfig", mock.Anything, models.APITypeREST, "/test", false).Return(nil, nil)
	verifier := new(MockTurnstileVerifier)
	verifier.On("ValidateHumanToken", "xct", "5.6.7.8", "", "").Return(true)
	router := setupRateLimitEngine(t, cfg, configSvc, verifier)

	assert.Equal(t, http.StatusOK, hit(router, "/test", "5.6.7.8", nil))
	assert.Equal(t, http.StatusTeapot, hit(router, "/test", "5.6.7.8", nil))
	assert.Equal(t, http.StatusOK, hit(router, "/test", "5.6.7.8", map[string]string{"X-C-T": "xct"}))
}

func TestRateLimiter_EndpointOverrideHasOwnBucket(t *testing.T) {
	cfg := &config.Config{RateLimitHardRefillRate: 1, RateLimitHardBucketSize: 1, RateLimitSoftRefillRate: 10, RateLimitSoftBucketSize: 10}
	configSvc := new(MockConfigService)
	configSvc.On("GetAPIEndpointConfig", mock.Anything, models.APITypeREST, "/test", false).Return(nil, nil)
	configSvc.On("GetAPIEndpointConfig", mock.Anything, models.APITypeREST, "/other", false).Return(&models.APIEndpointConfig{
		Type:          models.APITypeREST,
		Endpoint:      "/other",
		RateLimitHard: &models.RateLimitConfig{BucketSize: 3, TokenRefillRate: 1},
	}, nil)
	router := setupRateLimitEngine(t, cfg, configSvc, new(MockTurnstileVerifier))

	assert.Equal(t, http.StatusOK, hit(router, "/test", "7.7.7.7", nil))
	assert.Equal(t, http.StatusTooManyRequests, hit(router, "/test", "7.7.7.7", nil))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(router, "/other", "7.7.7.7", nil))
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(router, "/other", "7.7.7.7", nil))
}
