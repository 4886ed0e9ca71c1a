// Package realtime hosts the duplex session, the subscription registry
// fanning messages out to local sessions, and the presence aggregator that
// sits on top of both, grounded on chat-service/internal/ws's hub and
// websocket_handler.go.
package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/shopmindai/chatcore/internal/broker"
)

func chatChannel(chatID int64) string { return fmt.Sprintf("chat:%d", chatID) }
func userChannel(userID int64) string { return fmt.Sprintf("user:%d", userID) }

func parseChatChannel(channel string) (int64, bool) {
	var id int64
	if _, err := fmt.Sscanf(channel, "chat:%d", &id); err != nil {
		return 0, false
	}
	return id, true
}

func parseUserChannel(channel string) (int64, bool) {
	var id int64
	if _, err := fmt.Sscanf(channel, "user:%d", &id); err != nil {
		return 0, false
	}
	return id, true
}

// Registry is the process-local fan-out table: chat -> subscribed sessions
// and user -> authenticated sessions (a user may hold several sessions from
// multiple devices). Every mutation happens under one mutex; broadcasts
// snapshot the recipient list under the lock and send outside it, so a slow
// or blocked session can never hold the registry lock open.
type Registry struct {
	mu           sync.RWMutex
	chatSessions map[int64]map[*Session]struct{}
	userSessions map[int64]map[*Session]struct{}

	broker *broker.Broker
	log    *logrus.Entry
}

func NewRegistry(b *broker.Broker, log *logrus.Entry) *Registry {
	return &Registry{
		chatSessions: make(map[int64]map[*Session]struct{}),
		userSessions: make(map[int64]map[*Session]struct{}),
		broker:       b,
		log:          log.WithField("component", "registry"),
	}
}

// AttachUser registers s under userID, called once a session authenticates,
// and ensures the broker subscription to user:<id> exists so events
// published from another process reach this one. Broker.Subscribe is itself
// idempotent, so this is safe to call on every attach.
func (r *Registry) AttachUser(s *Session, userID int64) {
	r.mu.Lock()
	set, ok := r.userSessions[userID]
	if !ok {
		set = make(map[*Session]struct{})
		r.userSessions[userID] = set
	}
	set[s] = struct{}{}
	r.mu.Unlock()

	r.broker.Subscribe(userChannel(userID), r.handleUserBrokerMessage)
}

// AttachChat subscribes s to chatID's local fan-out and, on first local
// subscriber for that chat, opens the broker subscription that mirrors
// cross-process publishes back into this process.
func (r *Registry) AttachChat(s *Session, chatID int64) {
	r.mu.Lock()
	set, ok := r.chatSessions[chatID]
	if !ok {
		set = make(map[*Session]struct{})
		r.chatSessions[chatID] = set
	}
	set[s] = struct{}{}
	r.mu.Unlock()

	r.broker.Subscribe(chatChannel(chatID), r.handleChatBrokerMessage)
}

// Detach removes s from every map it appears in; called once when a
// session's pumps exit.
func (r *Registry) Detach(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, set := range r.chatSessions {
		delete(set, s)
	}
	for _, set := range r.userSessions {
		delete(set, s)
	}
}

func (r *Registry) handleChatBrokerMessage(channel string, payload []byte) {
	if chatID, ok := parseChatChannel(channel); ok {
		r.localFanoutChat(chatID, payload)
	}
}

func (r *Registry) handleUserBrokerMessage(channel string, payload []byte) {
	if userID, ok := parseUserChannel(channel); ok {
		r.localFanoutUser(userID, payload)
	}
}

// localFanoutChat copies the recipient set under the lock, then sends
// outside it: the copy-then-iterate pattern that keeps a stalled session
// from blocking every other delivery to the same chat.
func (r *Registry) localFanoutChat(chatID int64, payload []byte) {
	r.mu.RLock()
	set := r.chatSessions[chatID]
	recipients := make([]*Session, 0, len(set))
	for s := range set {
		recipients = append(recipients, s)
	}
	r.mu.RUnlock()

	for _, s := range recipients {
		s.enqueue(payload)
	}
}

func (r *Registry) localFanoutUser(userID int64, payload []byte) {
	r.mu.RLock()
	set := r.userSessions[userID]
	recipients := make([]*Session, 0, len(set))
	for s := range set {
		recipients = append(recipients, s)
	}
	r.mu.RUnlock()

	for _, s := range recipients {
		s.enqueue(payload)
	}
}

// PublishChat fans an envelope out to every session subscribed to chatID,
// across processes when a broker is configured. Local-process delivery
// happens via the broker subscription opened in AttachChat, which receives
// this same publish back from Redis; when the broker has no client
// configured, Broker.Publish itself calls back into the fallback wired at
// construction (see DispatchFallback).
func (r *Registry) PublishChat(ctx context.Context, chatID int64, env Envelope) {
	r.broker.Publish(ctx, chatChannel(chatID), env.bytes())
}

// PublishUser fans an envelope out to every session authenticated as userID.
func (r *Registry) PublishUser(ctx context.Context, userID int64, env Envelope) {
	r.broker.Publish(ctx, userChannel(userID), env.bytes())
}

// DispatchFallback is the broker.LocalFallback wired in at construction: it
// lets a single-process deployment (no Redis configured, or Redis
// unreachable) keep working by routing a publish straight to local fan-out
// instead of through Redis pub/sub.
func (r *Registry) DispatchFallback(channel string, payload []byte) {
	if chatID, ok := parseChatChannel(channel); ok {
		r.localFanoutChat(chatID, payload)
		return
	}
	if userID, ok := parseUserChannel(channel); ok {
		r.localFanoutUser(userID, payload)
	}
}

// LocalSessionsForChat returns a snapshot of sessions subscribed to chatID
// in THIS process only, used by the presence aggregator when a privacy
// setting requires a per-viewer payload the broker's uniform-fanout model
// cannot express.
func (r *Registry) LocalSessionsForChat(chatID int64) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.chatSessions[chatID]
	out := make([]*Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// IsUserOnlineLocally reports whether userID has any registered session in
// this process. Presence does not call it; it keeps its own count of active
// sessions for the online/away decision.
func (r *Registry) IsUserOnlineLocally(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userSessions[userID]) > 0
}
