package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/teamhub254/Homeseeker-sub000/internal/config"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
)

// IConfigService serves runtime-tunable configuration. Values live in the
// configuration collection, are cached in memory and reloaded whenever a
// message arrives on the config_updates Redis channel.
type IConfigService interface {
	GetAllPublic(ctx context.Context) (map[string]interface{}, error)
	Get(ctx context.Context, key string) (interface{}, error)
	GetInt(ctx context.Context, key string, defaultValue int) int
	GetString(ctx context.Context, key string, defaultValue string) string
	GetBool(ctx context.Context, key string, defaultValue bool) bool
	GetFloat64(ctx context.Context, key string, defaultValue float64) float64
	GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration
	Load(ctx context.Context) error
	SubscribeToChanges(ctx context.Context) error
	SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error
	GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error)
}

const (
	configCollection    = "configuration"
	apiConfigCollection = "api_endpoints_config"
	configUpdateChannel = "config_updates"
)

type configService struct {
	db       *mongo.Database
	cfg      *config.Config
	rdb      *redis.Client
	cache    map[string]interface{}
	apiCache map[string]*models.APIEndpointConfig
	mutex    sync.RWMutex
}

// NewConfigService loads the cache and starts listening for updates until
// ctx is cancelled. A failed initial load is logged and env defaults apply.
func NewConfigService(ctx context.Context, db *mongo.Database, initialCfg *config.Config, rdb *redis.Client) IConfigService {
	s := &configService{
		db:       db,
		cfg:      initialCfg,
		rdb:      rdb,
		cache:    make(map[string]interface{}),
		apiCache: make(map[string]*models.APIEndpointConfig),
	}
	if err := s.Load(ctx); err != nil {
		log.Printf("WARNING: Failed to load initial config from DB: %v. Using defaults from env", err)
	}
	go func() {
		if err := s.SubscribeToChanges(ctx); err != nil {
			log.Printf("CRITICAL: Config Pub/Sub listener stopped: %v", err)
		}
	}()
	return s
}

func apiCacheKey(apiType models.APIType, endpoint string, authRequired bool) string {
	return fmt.Sprintf("%s#%s#%t", apiType, endpoint, authRequired)
}

// Load replaces both caches with what is in the database.
func (s *configService) Load(ctx context.Context) error {
	cursor, err := s.db.Collection(configCollection).Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to query config collection: %w", err)
	}
	defer cursor.Close(ctx)

	newCache := make(map[string]interface{})
	for cursor.Next(ctx) {
		var entry models.ConfigEntry
		if err := cursor.Decode(&entry); err != nil {
			log.Printf("Warning: Failed to decode config entry during load: %v", err)
			continue
		}
		newCache[entry.Key] = entry.Value
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("error iterating config cursor: %w", err)
	}

	newAPICache := make(map[string]*models.APIEndpointConfig)
	apiCursor, err := s.db.Collection(apiConfigCollection).Find(ctx, bson.M{})
	if err != nil {
		log.Printf("Error querying API endpoint configs: %v", err)
	} else {
		defer apiCursor.Close(ctx)
		for apiCursor.Next(ctx) {
			var entry models.APIEndpointConfig
			if err := apiCursor.Decode(&entry); err != nil {
				log.Printf("Warning: Failed to decode API config entry during load: %v", err)
				continue
			}
			newAPICache[apiCacheKey(entry.Type, entry.Endpoint, entry.AuthRequired)] = &entry
		}
		if err := apiCursor.Err(); err != nil {
			log.Printf("Error iterating API config cursor: %v", err)
		}
	}

	s.mutex.Lock()
	s.cache = newCache
	s.apiCache = newAPICache
	s.mutex.Unlock()

	log.Printf("Loaded %d general config entries and %d API configs into cache from DB.", len(newCache), len(newAPICache))
	return nil
}

// GetAllPublic returns the public entries plus the app name.
func (s *configService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	publicConfig := map[string]interface{}{}
	cursor, err := s.db.Collection(configCollection).Find(ctx, bson.M{"public": true})
	if err != nil {
		return nil, fmt.Errorf("failed to query public config from DB: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var entry models.ConfigEntry
		if err := cursor.Decode(&entry); err != nil {
			log.Printf("Warning: Failed to decode public config entry: %v", err)
			continue
		}
		publicConfig[entry.Key] = entry.Value
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating public config cursor: %w", err)
	}

	for key, value := range s.publicDefaults() {
		if _, exists := publicConfig[key]; !exists {
			publicConfig[key] = value
		}
	}
	return publicConfig, nil
}

func (s *configService) publicDefaults() map[string]interface{} {
	return map[string]interface{}{
		"APP_NAME":                   s.cfg.AppName,
		"SEARCH_DEFAULT_LIMIT":       s.cfg.SearchDefaultLimit,
		"SEARCH_MAX_LIMIT":           s.cfg.SearchMaxLimit,
		"INQUIRY_MESSAGE_MAX_LENGTH": s.cfg.InquiryMessageMaxLength,
		"CHAT_MESSAGE_MAX_LENGTH":    s.cfg.ChatMessageMaxLength,
		"IMAGE_MAX_SIZE_MB":          s.cfg.ImageMaxSizeMB,
	}
}

// Get checks the cache first, then the env defaults that are safe to expose.
func (s *configService) Get(ctx context.Context, key string) (interface{}, error) {
	s.mutex.RLock()
	val, exists := s.cache[key]
	s.mutex.RUnlock()
	if exists {
		return val, nil
	}
	if val, ok := s.publicDefaults()[key]; ok {
		return val, nil
	}
	return nil, fmt.Errorf("config key '%s' not found", key)
}

func (s *configService) GetString(ctx context.Context, key string, defaultValue string) string {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if strVal, ok := val.(string); ok {
		return strVal
	}
	log.Printf("Warning: Config key '%s' is not a string, using default.", key)
	return defaultValue
}

func (s *configService) GetInt(ctx context.Context, key string, defaultValue int) int {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	n, ok := toFloat64(val)
	if !ok {
		log.Printf("Warning: Config key '%s' is not an integer type (%T), using default.", key, val)
		return defaultValue
	}
	return int(n)
}

func (s *configService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if boolVal, ok := val.(bool); ok {
		return boolVal
	}
	log.Printf("Warning: Config key '%s' is not a boolean, using default.", key)
	return defaultValue
}

func (s *configService) GetFloat64(ctx context.Context, key string, defaultValue float64) float64 {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	n, ok := toFloat64(val)
	if !ok {
		log.Printf("Warning: Config key '%s' is not a float64 type (%T), using default.", key, val)
		return defaultValue
	}
	return n
}

// GetDuration reads a value stored as whole or fractional seconds.
func (s *configService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	n, ok := toFloat64(val)
	if !ok {
		log.Printf("Warning: Config key '%s' is not a numeric type for duration (%T), using default.", key, val)
		return defaultValue
	}
	return time.Duration(n * float64(time.Second))
}

// toFloat64 accepts the numeric types the BSON decoder can produce.
func toFloat64(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// SubscribeToChanges reloads the cache on every config_updates message
// until ctx ends.
func (s *configService) SubscribeToChanges(ctx context.Context) error {
	if s.rdb == nil {
		log.Println("Redis client not configured, cannot subscribe to config changes.")
		return nil
	}

	pubsub := s.rdb.Subscribe(ctx, configUpdateChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to receive confirmation from Redis Pub/Sub subscription: %w", err)
	}

	ch := pubsub.Channel()
	log.Println("Subscribed to Redis channel for config updates:", configUpdateChannel)

	for {
		select {
		case <-ctx.Done():
			log.Println("Config Pub/Sub listener stopped.")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			log.Printf("Received config update notification on channel %s: %s", msg.Channel, msg.Payload)
			if err := s.Load(ctx); err != nil {
				log.Printf("ERROR reloading config from DB after notification: %v", err)
			}
		}
	}
}

// SetConfigValue upserts a value and tells every instance to reload.
// A nil value removes the key.
func (s *configService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	collection := s.db.Collection(configCollection)
	filter := bson.M{"key": key}

	if value == nil {
		if _, err := collection.DeleteOne(ctx, filter); err != nil {
			return fmt.Errorf("failed to delete config key '%s': %w", key, err)
		}
	} else {
		update := bson.M{"$set": bson.M{"key": key, "value": value, "public": isPublic}}
		if _, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
			return fmt.Errorf("failed to upsert config key '%s' in DB: %w", key, err)
		}
	}

	s.mutex.Lock()
	if value == nil {
		delete(s.cache, key)
	} else {
		s.cache[key] = value
	}
	s.mutex.Unlock()

	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, configUpdateChannel, key).Err(); err != nil {
			log.Printf("Warning: Failed to publish config update notification for key '%s': %v", key, err)
		}
	}
	return nil
}

// GetAPIEndpointConfig returns the override for an endpoint, falling back to
// the guest entry for authenticated callers. nil means use the defaults.
func (s *configService) GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if cfg, ok := s.apiCache[apiCacheKey(apiType, endpoint, isAuthenticated)]; ok {
		return cfg, nil
	}
	if isAuthenticated {
		if cfg, ok := s.apiCache[apiCacheKey(apiType, endpoint, false)]; ok {
			return cfg, nil
		}
	}
	return nil, nil
}
