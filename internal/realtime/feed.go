package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Change types for table rows.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// Change types published on the auth table.
const (
	AuthSignedIn       = "SIGNED_IN"
	AuthSignedOut      = "SIGNED_OUT"
	AuthTokenRefreshed = "TOKEN_REFRESHED"
)

const (
	TableChatMessages = "chat_messages"
	TableAuth         = "auth"
)

// Filter selects the rows a subscriber cares about by column equality.
type Filter struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

func (f Filter) String() string {
	return f.Column + "=eq." + f.Value
}

// Change is one notification on the feed.
type Change struct {
	Table           string          `json:"table"`
	Type            string          `json:"type"`
	Filter          Filter          `json:"filter"`
	RecordID        string          `json:"record_id,omitempty"`
	Record          json.RawMessage `json:"record,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// NewChange builds a change, encoding record as JSON when it is not nil.
func NewChange(table, changeType string, filter Filter, recordID string, record interface{}) (Change, error) {
	c := Change{
		Table:           table,
		Type:            changeType,
		Filter:          filter,
		RecordID:        recordID,
		CommitTimestamp: time.Now().UTC(),
	}
	if record != nil {
		data, err := json.Marshal(record)
		if err != nil {
			return c, fmt.Errorf("failed to encode %s record: %w", table, err)
		}
		c.Record = data
	}
	return c, nil
}

// IFeed is a table change feed keyed by table and row filter.
type IFeed interface {
	Publish(ctx context.Context, change Change) error
	Subscribe(ctx context.Context, table string, filter Filter) (*Subscription, error)
}

// Subscription delivers changes until Close is called or its context ends.
type Subscription struct {
	changes <-chan Change
	closeFn func() error
	once    sync.Once
	err     error
}

// NewSubscription wraps a change channel and the function that tears it down.
func NewSubscription(changes <-chan Change, closeFn func() error) *Subscription {
	return &Subscription{changes: changes, closeFn: closeFn}
}

// Changes is closed once the subscription ends.
func (s *Subscription) Changes() <-chan Change {
	return s.changes
}

func (s *Subscription) Close() error {
	s.once.Do(func() {
		if s.closeFn != nil {
			s.err = s.closeFn()
		}
	})
	return s.err
}

// ChannelName is the Redis channel carrying changes for table and filter.
func ChannelName(table string, filter Filter) string {
	return fmt.Sprintf("realtime:%s:%s", table, filter)
}

const subscriptionBuffer = 32

// RedisFeed fans changes out through Redis pub/sub so every API instance
// sees them.
type RedisFeed struct {
	rdb *redis.Client
}

func NewRedisFeed(rdb *redis.Client) *RedisFeed {
	return &RedisFeed{rdb: rdb}
}

func (f *RedisFeed) Publish(ctx context.Context, change Change) error {
	if change.CommitTimestamp.IsZero() {
		change.CommitTimestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	if err := f.rdb.Publish(ctx, ChannelName(change.Table, change.Filter), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change on %s: %w", change.Table, err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, table string, filter Filter) (*Subscription, error) {
	channel := ChannelName(table, filter)
	pubsub := f.rdb.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed so no publish after return is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan Change, subscriptionBuffer)
	done := make(chan struct{})
	closeFn := func() error {
		close(done)
		return pubsub.Close()
	}
	go func() {
		defer close(out)
		in := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					log.Printf("Warning: dropping malformed change on %s: %v", channel, err)
					continue
				}
				select {
				case out <- change:
				case <-done:
					return
				case <-ctx.Done():
					_ = pubsub.Close()
					return
				}
			}
		}
	}()

	return NewSubscription(out, closeFn), nil
}
