// Package thread keeps a live, rendered view of one inquiry's chat thread:
// it loads the history, marks incoming messages read, follows the change
// feed and applies optimistic sends with rollback.
package thread

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/realtime"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// Store is the data access the view needs. services.IChatService satisfies it.
type Store interface {
	GetThread(ctx context.Context, inquiryID, userID utils.SixID) (*models.ThreadInfo, error)
	ListMessages(ctx context.Context, inquiryID, userID utils.SixID) ([]models.ChatMessage, error)
	MarkRead(ctx context.Context, inquiryID, readerID utils.SixID) (int64, error)
	SendMessage(ctx context.Context, inquiryID, senderID, messageID utils.SixID, content string) (*models.ChatMessage, error)
}

// Entry is a rendered message. Pending entries have not been stored yet.
type Entry struct {
	models.ChatMessage
	Pending bool `json:"pending,omitempty"`
}

// Snapshot is the full rendered state handed to the render callback.
type Snapshot struct {
	Thread   *models.ThreadInfo `json:"thread"`
	Messages []Entry            `json:"messages"`
}

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNotOpen      = errors.New("thread is not open")
)

// Thread is the live view. Render receives every state change in order;
// OnError, when set, receives failures from background refreshes.
type Thread struct {
	store     Store
	feed      realtime.IFeed
	inquiryID utils.SixID
	self      utils.SixID
	render    func(Snapshot)
	OnError   func(error)

	mu        sync.Mutex
	info      *models.ThreadInfo
	confirmed []models.ChatMessage
	pending   []models.ChatMessage
	open      bool

	renderMu sync.Mutex

	sub    *realtime.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

func New(store Store, feed realtime.IFeed, inquiryID, self utils.SixID, render func(Snapshot)) *Thread {
	return &Thread{
		store:     store,
		feed:      feed,
		inquiryID: inquiryID,
		self:      self,
		render:    render,
	}
}

// Open resolves the participants, subscribes to changes on the inquiry's
// messages, loads the history, marks incoming messages read and renders.
// The subscription is taken before the first load so nothing sent in
// between is missed.
func (t *Thread) Open(ctx context.Context) error {
	info, err := t.store.GetThread(ctx, t.inquiryID, t.self)
	if err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	sub, err := t.feed.Subscribe(loopCtx, realtime.TableChatMessages, realtime.Eq("inquiry_id", t.inquiryID.String()))
	if err != nil {
		cancel()
		return err
	}

	messages, err := t.store.ListMessages(ctx, t.inquiryID, t.self)
	if err != nil {
		cancel()
		_ = sub.Close()
		return err
	}

	t.mu.Lock()
	t.info = info
	t.confirmed = messages
	t.open = true
	t.sub = sub
	t.cancel = cancel
	t.done = make(chan struct{})
	t.mu.Unlock()

	if err := t.markIncomingRead(ctx); err != nil {
		log.Printf("Warning: failed to mark inquiry %s read for %s: %v", t.inquiryID, t.self, err)
	}
	t.emit()

	go t.follow(loopCtx, sub)
	return nil
}

// follow refetches the thread on every change notification. Notifications
// that queue up while a refetch runs are folded into the next one.
func (t *Thread) follow(ctx context.Context, sub *realtime.Subscription) {
	defer close(t.done)
	changes := sub.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
		drain:
			for {
				select {
				case _, ok := <-changes:
					if !ok {
						break drain
					}
				default:
					break drain
				}
			}
			if err := t.Refresh(ctx); err != nil && ctx.Err() == nil {
				t.reportError(err)
			}
		}
	}
}

// Refresh refetches all messages, drops pending entries that are now
// stored, marks new incoming messages read and renders.
func (t *Thread) Refresh(ctx context.Context) error {
	messages, err := t.store.ListMessages(ctx, t.inquiryID, t.self)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.confirmed = messages
	t.pending = withoutStored(t.pending, messages)
	t.mu.Unlock()

	if err := t.markIncomingRead(ctx); err != nil {
		t.reportError(err)
	}
	t.emit()
	return nil
}

// Send appends an optimistic entry carrying the id the stored row will
// have, renders, then stores it. On failure the entry is removed and the
// rendered state returns to what it was before the call.
func (t *Thread) Send(ctx context.Context, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	optimistic := models.ChatMessage{
		ID:        utils.NewSixID(),
		InquiryID: t.inquiryID,
		SenderID:  t.self,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return nil, ErrNotOpen
	}
	t.pending = append(t.pending, optimistic)
	t.mu.Unlock()
	t.emit()

	stored, err := t.store.SendMessage(ctx, t.inquiryID, t.self, optimistic.ID, content)

	t.mu.Lock()
	t.pending = removeID(t.pending, optimistic.ID)
	if err == nil && !containsID(t.confirmed, stored.ID) {
		t.confirmed = insertOrdered(t.confirmed, *stored)
	}
	t.mu.Unlock()
	t.emit()

	if err != nil {
		return nil, err
	}
	return stored, nil
}

// MarkRead marks incoming messages read and renders when anything changed.
func (t *Thread) MarkRead(ctx context.Context) error {
	if err := t.markIncomingRead(ctx); err != nil {
		return err
	}
	t.emit()
	return nil
}

// Snapshot returns a copy of the current state.
func (t *Thread) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]Entry, 0, len(t.confirmed)+len(t.pending))
	for _, m := range t.confirmed {
		entries = append(entries, Entry{ChatMessage: m})
	}
	for _, m := range t.pending {
		entries = append(entries, Entry{ChatMessage: m, Pending: true})
	}
	return Snapshot{Thread: t.info, Messages: entries}
}

// Close stops following the feed and waits for the follower to exit.
func (t *Thread) Close() {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return
	}
	t.open = false
	cancel, sub, done := t.cancel, t.sub, t.done
	t.mu.Unlock()

	cancel()
	_ = sub.Close()
	<-done
}

// markIncomingRead calls the store only when an incoming unread message is
// in view, and mirrors the change locally.
func (t *Thread) markIncomingRead(ctx context.Context) error {
	t.mu.Lock()
	needed := hasIncomingUnread(t.confirmed, t.self)
	t.mu.Unlock()
	if !needed {
		return nil
	}

	if _, err := t.store.MarkRead(ctx, t.inquiryID, t.self); err != nil {
		return err
	}

	t.mu.Lock()
	for i := range t.confirmed {
		if t.confirmed[i].SenderID != t.self {
			t.confirmed[i].IsRead = true
		}
	}
	t.mu.Unlock()
	return nil
}

func (t *Thread) emit() {
	t.renderMu.Lock()
	defer t.renderMu.Unlock()
	if t.render != nil {
		t.render(t.Snapshot())
	}
}

func (t *Thread) reportError(err error) {
	if t.OnError != nil {
		t.OnError(err)
		return
	}
	log.Printf("Thread %s: %v", t.inquiryID, err)
}

func hasIncomingUnread(messages []models.ChatMessage, self utils.SixID) bool {
	for _, m := range messages {
		if m.SenderID != self && !m.IsRead {
			return true
		}
	}
	return false
}

func containsID(messages []models.ChatMessage, id utils.SixID) bool {
	for _, m := range messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

func removeID(messages []models.ChatMessage, id utils.SixID) []models.ChatMessage {
	out := messages[:0:0]
	for _, m := range messages {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func withoutStored(pending, stored []models.ChatMessage) []models.ChatMessage {
	out := pending[:0:0]
	for _, m := range pending {
		if !containsID(stored, m.ID) {
			out = append(out, m)
		}
	}
	return out
}

// insertOrdered keeps messages sorted by created_at, then id.
func insertOrdered(messages []models.ChatMessage, m models.ChatMessage) []models.ChatMessage {
	out := append(messages[:len(messages):len(messages)], m)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out
}

func lessID(a, b utils.SixID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
