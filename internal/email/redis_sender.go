package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockEmailTTL is how long RedisSender keeps a captured message.
const MockEmailTTL = 5 * time.Minute

// StoredEmail is what RedisSender writes for each recipient.
type StoredEmail struct {
	To         string `json:"to"`
	From       string `json:"from"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	TemplateID string `json:"template_id"`
	SentAt     string `json:"sent_at"`
}

// RedisSender captures messages in Redis so tests can read them back
// through the service API.
type RedisSender struct {
	client *redis.Client
}

func NewRedisSender(client *redis.Client) *RedisSender {
	return &RedisSender{client: client}
}

// MockEmailKey is the key a captured message lives under.
func MockEmailKey(to, templateID string) string {
	return fmt.Sprintf("mockemail:%s:%s", strings.ToLower(to), templateID)
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	header, body, err := ParseHeaders(rawMessage)
	if err != nil {
		return fmt.Errorf("failed to parse email headers: %w", err)
	}
	templateID := header.Get(TemplateIDHeader)
	if templateID == "" {
		templateID = "unknown"
	}

	for _, recipient := range to {
		data, err := json.Marshal(StoredEmail{
			To:         recipient,
			From:       header.Get("From"),
			Subject:    subject,
			Body:       body,
			TemplateID: templateID,
			SentAt:     time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return fmt.Errorf("failed to marshal email data: %w", err)
		}
		key := MockEmailKey(recipient, templateID)
		if err := s.client.Set(ctx, key, data, MockEmailTTL).Err(); err != nil {
			return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
		}
		log.Printf("Mock email stored in Redis key '%s' (Subject: %s)", key, subject)
	}
	return nil
}

// GetStoredEmail reads a captured message back. It returns redis.Nil when
// nothing is stored.
func GetStoredEmail(ctx context.Context, client *redis.Client, to, templateID string) (*StoredEmail, error) {
	data, err := client.Get(ctx, MockEmailKey(to, templateID)).Bytes()
	if err != nil {
		return nil, err
	}
	var stored StoredEmail
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode stored email: %w", err)
	}
	return &stored, nil
}
