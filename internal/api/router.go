package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/teamhub254/Homeseeker-sub000/internal/api/handlers"
	"github.com/teamhub254/Homeseeker-sub000/internal/api/middleware"
	"github.com/teamhub254/Homeseeker-sub000/internal/auth"
	"github.com/teamhub254/Homeseeker-sub000/internal/captcha"
	"github.com/teamhub254/Homeseeker-sub000/internal/config"
	"github.com/teamhub254/Homeseeker-sub000/internal/email"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/realtime"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
	"github.com/teamhub254/Homeseeker-sub000/internal/storage"
	"github.com/teamhub254/Homeseeker-sub000/internal/tasks"
)

// Deps are the shared clients the main router is built on.
type Deps struct {
	DB            *mongo.Database
	Redis         *redis.Client
	TaskClient    tasks.Enqueuer
	ConfigService services.IConfigService
	Storage       storage.IObjectStorage
	Feed          realtime.IFeed
	Hub           *realtime.Hub
}

// SetupRouter builds the services and the public Gin engine. Background
// goroutines it starts (rate limiter cleanup) stop when ctx is done.
func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) (*gin.Engine, error) {
	policy, err := auth.NewPasswordPolicy(cfg.PasswordRegexp)
	if err != nil {
		return nil, err
	}

	profileService := services.NewProfileService(deps.DB)
	userService := services.NewUserService(deps.DB, policy, profileService)
	propertyService := services.NewPropertyService(deps.DB, cfg, profileService)
	inquiryService := services.NewInquiryService(deps.DB, cfg, propertyService)
	chatService := services.NewChatService(deps.DB, cfg, inquiryService, propertyService, profileService, deps.Feed)
	favoriteService := services.NewFavoriteService(deps.DB, propertyService)

	sessions := auth.NewSessions(auth.NewRedisSessionStore(deps.Redis), deps.Feed, cfg.JwtSecret, cfg.JwtTTL)
	captchaVerifier := captcha.NewTurnstileVerifier(cfg)
	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, cfg, deps.ConfigService)

	r := gin.Default()
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowedOrigin))
	r.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier))

	jsonApiHandler := handlers.NewJsonApiHandler(cfg, sessions, deps.TaskClient, rateLimiter,
		userService, profileService, propertyService, inquiryService, chatService, favoriteService, deps.Storage)
	restConfigHandler := handlers.NewRestConfigHandler(deps.ConfigService)
	restPropertyHandler := handlers.NewRestPropertyHandler(cfg, propertyService, deps.Storage, deps.TaskClient)
	restProfileHandler := handlers.NewRestProfileHandler(cfg, profileService, deps.Storage, deps.TaskClient)
	restInquiryHandler := handlers.NewRestInquiryHandler(inquiryService, chatService)
	restFavoriteHandler := handlers.NewRestFavoriteHandler(favoriteService)
	restStorageHandler := handlers.NewRestStorageHandler(deps.Storage)
	realtimeHandler := handlers.NewRealtimeHandler(chatService, deps.Feed, deps.Hub, cfg.CorsAllowedOrigin)

	v1 := r.Group("/v1")
	{
		// JSON API methods are rate limited per method inside the handler.
		v1.POST("/api", jsonApiHandler.HandleRequest)

		public := v1.Group("", rateLimiter.Limit())
		public.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
		public.GET("/config", restConfigHandler.GetPublicConfig)
		public.GET("/property/search", restPropertyHandler.SearchProperties)
		public.GET("/property/:id", restPropertyHandler.GetPropertyByID)
		public.GET("/user/:id/property", restPropertyHandler.GetUserProperties)
		public.GET("/profile/:id", restProfileHandler.GetProfile)
		public.GET("/storage/:bucket/*key", restStorageHandler.GetObject)

		authRequired := v1.Group("", rateLimiter.Limit(), middleware.AuthMiddleware(sessions))
		{
			authRequired.GET("/me/profile", restProfileHandler.GetMyProfile)
			authRequired.POST("/me/avatar", restProfileHandler.UploadAvatar)
			authRequired.DELETE("/me/avatar", restProfileHandler.DeleteAvatar)
			authRequired.GET("/me/inquiries", middleware.RequireRole(models.RoleLister), restInquiryHandler.ListReceived)
			authRequired.GET("/me/sent-inquiries", restInquiryHandler.ListSent)
			authRequired.GET("/me/favorites", restFavoriteHandler.ListFavorites)
			authRequired.GET("/me/favorites/:property_id", restFavoriteHandler.IsFavorite)
			authRequired.POST("/property/:id/image", restPropertyHandler.UploadImage)
			authRequired.DELETE("/property/:id/image", restPropertyHandler.DeleteImage)
			authRequired.GET("/inquiry/:id/messages", restInquiryHandler.GetMessages)
			authRequired.GET("/inquiry/:id/thread", realtimeHandler.ServeThread)
			authRequired.GET("/realtime", realtimeHandler.ServeStream)
		}
	}

	return r, nil
}

const testEmailPollAttempts = 10

// SetupServiceRouter configures the internal service API.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "data": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled.")
			}
		case "getTestEmail":
			var args []string // [template_id, email]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [template_id, email]"})
				return
			}
			stored, err := pollTestEmail(c.Request.Context(), rdb, args[1], args[0])
			if err != nil {
				if errors.Is(err, redis.Nil) {
					c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found for key %s", email.MockEmailKey(args[1], args[0]))})
					return
				}
				log.Printf("Service API: error reading test email: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": stored})
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// pollTestEmail waits briefly for the mock sender to store the email, then
// deletes it so the next test starts clean.
func pollTestEmail(ctx context.Context, rdb *redis.Client, to, templateID string) (*email.StoredEmail, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for attempt := 0; ; attempt++ {
		stored, err := email.GetStoredEmail(ctx, rdb, to, templateID)
		if err == nil {
			rdb.Del(ctx, email.MockEmailKey(to, templateID))
			return stored, nil
		}
		if !errors.Is(err, redis.Nil) || attempt+1 >= testEmailPollAttempts {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, redis.Nil
		case <-ticker.C:
		}
	}
}
