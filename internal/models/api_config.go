package models

// APIType tells REST routes apart from JSON API methods.
type APIType string

const (
	APITypeREST APIType = "REST"
	APITypeJSON APIType = "JSON"
)

// RateLimitConfig is a token bucket: BucketSize tokens refilled at
// TokenRefillRate tokens per second.
type RateLimitConfig struct {
	BucketSize      int `bson:"bucket_size" json:"bucket_size"`
	TokenRefillRate int `bson:"token_refill_rate" json:"token_refill_rate"`
}

// APIEndpointConfig overrides rate limits for one route or JSON method.
// Endpoint is the gin route pattern (e.g. "/v1/property/:id") for REST and
// the method name (e.g. "submitInquiry") for JSON.
type APIEndpointConfig struct {
	Base          `bson:",inline"`
	Type          APIType          `bson:"type" json:"type"`
	Endpoint      string           `bson:"endpoint" json:"endpoint"`
	AuthRequired  bool             `bson:"auth_required" json:"auth_required"`
	RateLimitSoft *RateLimitConfig `bson:"rate_limit_soft,omitempty" json:"rate_limit_soft,omitempty"`
	RateLimitHard *RateLimitConfig `bson:"rate_limit_hard,omitempty" json:"rate_limit_hard,omitempty"`
}

// ConfigEntry is one runtime-tunable value in the configuration collection.
type ConfigEntry struct {
	Key    string      `bson:"key" json:"key"`
	Value  interface{} `bson:"value" json:"value"`
	Public bool        `bson:"public" json:"public"`
}
