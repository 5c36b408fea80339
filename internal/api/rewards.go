package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/arcana-app/arcana/internal/domain"
)

// ─── Live Reward Feed ───────────────────────────────────────────────────────

// RewardHub fans reward notifications out to the owning account's SSE
// clients. It implements domain.Notifier.
type RewardHub struct {
	mu      sync.RWMutex
	clients map[chan []byte]string // channel -> account id
}

// NewRewardHub creates a new reward broadcast hub.
func NewRewardHub() *RewardHub {
	return &RewardHub{
		clients: make(map[chan []byte]string),
	}
}

// RewardEvent is a single reward granted to an account.
type RewardEvent struct {
	Type      string `json:"type"` // "reward_granted"
	Kind      string `json:"kind"` // "milestone", "achievement", "challenge", "golden"
	Title     string `json:"title"`
	Credits   int64  `json:"credits"`
	Timestamp int64  `json:"timestamp"` // Unix epoch
	AccountID string `json:"-"`
}

// Notify implements domain.Notifier.
func (h *RewardHub) Notify(ctx context.Context, n domain.Notification) {
	h.Broadcast(RewardEvent{
		Type:      "reward_granted",
		Kind:      n.Kind,
		Title:     n.Title,
		Credits:   n.Credits,
		Timestamp: time.Now().Unix(),
		AccountID: n.AccountID,
	})
}

// Broadcast sends an event to every client of its account.
func (h *RewardHub) Broadcast(event RewardEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch, account := range h.clients {
		if account != event.AccountID {
			continue
		}
		select {
		case ch <- data:
		default:
			// Client too slow, drop message
		}
	}
}

// Subscribe registers a client for accountID. Returns the channel and an
// unsubscribe func.
func (h *RewardHub) Subscribe(accountID string) (chan []byte, func()) {
	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[ch] = accountID
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// ClientCount returns the number of connected clients.
func (h *RewardHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleRewardsSSE serves the caller's live reward feed via Server-Sent Events.
// GET /api/rewards/live
func (h *RewardHub) HandleRewardsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch, unsub := h.Subscribe(AccountID(r.Context()))
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
