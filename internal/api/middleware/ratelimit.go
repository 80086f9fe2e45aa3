package middleware

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/teamhub254/Homeseeker-sub000/internal/config"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleTimeout     = 30 * time.Minute
)

type clientLimiter struct {
	softLimiter *rate.Limiter
	hardLimiter *rate.Limiter
	lastSeen    time.Time
}

// RateLimiterMiddleware keeps a soft and a hard token bucket per client.
// Exhausting the hard bucket gives 429. Exhausting the soft bucket gives 418
// unless CaptchaMiddleware marked the request human. Endpoints with their
// own limits in api_endpoints_config get their own buckets.
type RateLimiterMiddleware struct {
	clients       map[string]*clientLimiter
	mu            sync.Mutex
	cfg           *config.Config
	configService services.IConfigService
}

// NewRateLimiterMiddleware evicts idle clients until ctx is done.
func NewRateLimiterMiddleware(ctx context.Context, cfg *config.Config, configService services.IConfigService) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients:       make(map[string]*clientLimiter),
		cfg:           cfg,
		configService: configService,
	}
	go rm.cleanupClients(ctx)
	return rm
}

// clientIdentifier is IP, browser fingerprint and SPA session.
func clientIdentifier(c *gin.Context) string {
	return c.ClientIP() + "|" + c.GetHeader("X-BFP") + "|" + c.GetHeader("X-SPA")
}

func (rm *RateLimiterMiddleware) getClientLimiter(key string, soft, hard models.RateLimitConfig) *clientLimiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	limiter, exists := rm.clients[key]
	if !exists {
		limiter = &clientLimiter{
			softLimiter: rate.NewLimiter(rate.Limit(soft.TokenRefillRate), soft.BucketSize),
			hardLimiter: rate.NewLimiter(rate.Limit(hard.TokenRefillRate), hard.BucketSize),
		}
		rm.clients[key] = limiter
	}
	limiter.lastSeen = time.Now()
	return limiter
}

func (rm *RateLimiterMiddleware) cleanupClients(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rm.evictIdle(time.Now()); n > 0 {
				log.Printf("Rate limiter cleanup removed %d idle client entries.", n)
			}
		}
	}
}

func (rm *RateLimiterMiddleware) evictIdle(now time.Time) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	count := 0
	for id, client := range rm.clients {
		if now.Sub(client.lastSeen) > limiterIdleTimeout {
			delete(rm.clients, id)
			count++
		}
	}
	return count
}

// limitsFor resolves the bucket key suffix and limits for an endpoint.
func (rm *RateLimiterMiddleware) limitsFor(c *gin.Context, apiType models.APIType, endpoint string) (string, models.RateLimitConfig, models.RateLimitConfig) {
	soft := models.RateLimitConfig{BucketSize: rm.cfg.RateLimitSoftBucketSize, TokenRefillRate: rm.cfg.RateLimitSoftRefillRate}
	hard := models.RateLimitConfig{BucketSize: rm.cfg.RateLimitHardBucketSize, TokenRefillRate: rm.cfg.RateLimitHardRefillRate}
	scope := ""

	apiCfg, err := rm.configService.GetAPIEndpointConfig(c.Request.Context(), apiType, endpoint, false)
	if err != nil {
		log.Printf("Error fetching API config for %s %s: %v. Using defaults.", apiType, endpoint, err)
	}
	if apiCfg != nil {
		if apiCfg.RateLimitSoft != nil {
			soft = *apiCfg.RateLimitSoft
			scope = string(apiType) + ":" + endpoint
		}
		if apiCfg.RateLimitHard != nil {
			hard = *apiCfg.RateLimitHard
			scope = string(apiType) + ":" + endpoint
		}
	}
	return scope, soft, hard
}

// Check spends one token for the caller on endpoint. When the request is
// refused it has already been aborted with 429 or 418.
func (rm *RateLimiterMiddleware) Check(c *gin.Context, apiType models.APIType, endpoint string) bool {
	client := clientIdentifier(c)
	scope, soft, hard := rm.limitsFor(c, apiType, endpoint)
	limiter := rm.getClientLimiter(client+"#"+scope, soft, hard)

	if !limiter.hardLimiter.Allow() {
		log.Printf("Hard rate limit exceeded for client %s on %s %s", client, apiType, endpoint)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
		return false
	}
	if !c.GetBool(ContextKeyIsHumanVerified) && !limiter.softLimiter.Allow() {
		log.Printf("Soft rate limit exceeded for client %s on %s %s (captcha required)", client, apiType, endpoint)
		c.AbortWithStatusJSON(http.StatusTeapot, gin.H{"error": "Captcha validation required"})
		return false
	}
	return true
}

// Limit applies Check to REST routes, keyed by the route pattern.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rm.Check(c, models.APITypeREST, c.FullPath()) {
			return
		}
		c.Next()
	}
}
