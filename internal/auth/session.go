package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/realtime"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

var ErrSessionRevoked = errors.New("session revoked or expired")

// SessionStore remembers which session ids are live.
type SessionStore interface {
	Create(ctx context.Context, sessionID string, userID utils.SixID, ttl time.Duration) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	Revoke(ctx context.Context, sessionID string) error
}

const sessionKeyPrefix = "session:"

// RedisSessionStore keeps one key per session, expiring with the token.
type RedisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func (s *RedisSessionStore) Create(ctx context.Context, sessionID string, userID utils.SixID, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, sessionKeyPrefix+sessionID, userID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to look up session: %w", err)
	}
	return n > 0, nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// Session is what sign-in and refresh hand back to the client.
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
}

// Sessions issues, validates and revokes access tokens and publishes
// auth state changes on the feed. feed may be nil.
type Sessions struct {
	store  SessionStore
	feed   realtime.IFeed
	secret string
	ttl    time.Duration
}

func NewSessions(store SessionStore, feed realtime.IFeed, secret string, ttl time.Duration) *Sessions {
	return &Sessions{store: store, feed: feed, secret: secret, ttl: ttl}
}

// Issue starts a new session. event is one of the realtime.Auth* types.
func (s *Sessions) Issue(ctx context.Context, userID utils.SixID, role models.Role, event string) (*Session, error) {
	sessionID := uuid.NewString()
	token, expiresAt, err := GenerateJWT(userID, role, sessionID, s.secret, s.ttl)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, sessionID, userID, s.ttl); err != nil {
		return nil, err
	}
	s.publish(ctx, userID, event)
	return &Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		UserID:      userID.String(),
		Role:        string(role),
	}, nil
}

// Validate checks the token and that its session has not been revoked.
func (s *Sessions) Validate(ctx context.Context, token string) (*Claims, error) {
	claims, err := ValidateJWT(token, s.secret)
	if err != nil {
		return nil, err
	}
	if claims.SessionID() == "" {
		return nil, ErrSessionRevoked
	}
	ok, err := s.store.Exists(ctx, claims.SessionID())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// Revoke ends the session the claims belong to.
func (s *Sessions) Revoke(ctx context.Context, claims *Claims) error {
	if err := s.store.Revoke(ctx, claims.SessionID()); err != nil {
		return err
	}
	if userID, err := claims.UserSixID(); err == nil {
		s.publish(ctx, userID, realtime.AuthSignedOut)
	}
	return nil
}

// Refresh replaces the session with a new one carrying a fresh expiry.
func (s *Sessions) Refresh(ctx context.Context, claims *Claims, role models.Role) (*Session, error) {
	userID, err := claims.UserSixID()
	if err != nil {
		return nil, err
	}
	session, err := s.Issue(ctx, userID, role, realtime.AuthTokenRefreshed)
	if err != nil {
		return nil, err
	}
	if err := s.store.Revoke(ctx, claims.SessionID()); err != nil {
		log.Printf("Warning: failed to revoke refreshed session %s: %v", claims.SessionID(), err)
	}
	return session, nil
}

func (s *Sessions) publish(ctx context.Context, userID utils.SixID, event string) {
	if s.feed == nil || event == "" {
		return
	}
	change, err := realtime.NewChange(realtime.TableAuth, event, realtime.Eq("user_id", userID.String()), userID.String(), nil)
	if err != nil {
		return
	}
	if err := s.feed.Publish(ctx, change); err != nil {
		log.Printf("Warning: failed to publish %s for user %s: %v", event, userID, err)
	}
}
