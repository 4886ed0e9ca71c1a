package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shopmindai/chatcore/internal/model"
)

// PresenceStore is the slice of the store gateway presence needs: chat
// membership for fan-out targeting, privacy settings, and the last-activity
// write-through.
type PresenceStore interface {
	ChatsForUser(ctx context.Context, userID int64) ([]int64, error)
	GetUserSettings(ctx context.Context, userID int64) (*model.UserSettings, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	TouchUserLastActivity(ctx context.Context, userID int64) error
}

// Presence aggregates per-user connection activity across this process's
// sessions and broadcasts online/offline transitions, visibility-filtered
// by the target's last_seen_visibility. Its connection-count bookkeeping is
// guarded by its own mutex, separate from the Registry's.
type Presence struct {
	store    PresenceStore
	registry *Registry
	log      *logrus.Entry

	mu     sync.Mutex
	active map[int64]int // userID -> count of locally-active sessions
}

func NewPresence(store PresenceStore, registry *Registry, log *logrus.Entry) *Presence {
	return &Presence{
		store:    store,
		registry: registry,
		log:      log.WithField("component", "presence"),
		active:   make(map[int64]int),
	}
}

// Attach records a newly authenticated session. If active and this is the
// user's first locally-active session, it broadcasts "online".
func (p *Presence) Attach(ctx context.Context, userID int64, active bool) {
	if !active {
		return
	}
	if p.bumpActive(userID, 1) == 1 {
		p.broadcast(ctx, userID, "online")
	}
}

// SetActive handles an explicit presence_update frame or a ping's implied
// transition. It is a no-op when the session's active bit is unchanged.
func (p *Presence) SetActive(ctx context.Context, userID int64, wasActive, nowActive bool) {
	if wasActive == nowActive {
		return
	}
	if nowActive {
		if p.bumpActive(userID, 1) == 1 {
			p.broadcast(ctx, userID, "online")
		}
		return
	}
	if n := p.bumpActive(userID, -1); n == 0 {
		if err := p.store.TouchUserLastActivity(ctx, userID); err != nil {
			p.log.WithError(err).Warn("touch last activity failed")
		}
		p.broadcast(ctx, userID, "offline")
	}
}

// Detach handles a session closing; equivalent to SetActive(active, false)
// when the closing session was active.
func (p *Presence) Detach(ctx context.Context, userID int64, wasActive bool) {
	if !wasActive {
		return
	}
	if n := p.bumpActive(userID, -1); n == 0 {
		if err := p.store.TouchUserLastActivity(ctx, userID); err != nil {
			p.log.WithError(err).Warn("touch last activity failed")
		}
		p.broadcast(ctx, userID, "offline")
	}
}

func (p *Presence) bumpActive(userID int64, delta int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.active[userID] + delta
	if n <= 0 {
		delete(p.active, userID)
		n = 0
	} else {
		p.active[userID] = n
	}
	return n
}

func (p *Presence) broadcast(ctx context.Context, userID int64, status string) {
	settings, err := p.store.GetUserSettings(ctx, userID)
	if err != nil {
		p.log.WithError(err).Warn("load settings for presence broadcast failed")
		return
	}
	chatIDs, err := p.store.ChatsForUser(ctx, userID)
	if err != nil {
		p.log.WithError(err).Warn("load chats for presence broadcast failed")
		return
	}

	if settings.LastSeenVisibility == model.VisibilityEveryone {
		env := PresenceFull(userID, status)
		for _, chatID := range chatIDs {
			p.registry.PublishChat(ctx, chatID, env)
		}
		return
	}

	// Per-viewer payload: the broker's single-payload-per-channel model
	// cannot express this, so only same-process viewers are reached.
	var bucket string
	if status == "online" {
		bucket = "online"
	} else {
		bucket = p.lastSeenBucket(ctx, userID)
	}
	approx := PresenceApprox(userID, bucket)
	full := PresenceFull(userID, status)

	seen := make(map[*Session]struct{})
	for _, chatID := range chatIDs {
		for _, viewer := range p.registry.LocalSessionsForChat(chatID) {
			if _, done := seen[viewer]; done {
				continue
			}
			seen[viewer] = struct{}{}
			if viewer.userID == userID {
				viewer.send(full)
				continue
			}
			if viewer.isAdmin {
				viewer.send(full)
				continue
			}
			if settings.LastSeenVisibility == model.VisibilityNobody {
				continue
			}
			viewer.send(approx)
		}
	}
}

func (p *Presence) lastSeenBucket(ctx context.Context, userID int64) string {
	u, err := p.store.GetUserByID(ctx, userID)
	if err != nil || u.LastActivity == nil {
		return "long ago"
	}
	return lastSeenBucket(*u.LastActivity)
}

func lastSeenBucket(lastActivity time.Time) string {
	d := time.Since(lastActivity)
	switch {
	case d <= 5*time.Minute:
		return "just now"
	case d <= time.Hour:
		return "within an hour"
	case d <= 24*time.Hour:
		return "today"
	case d <= 7*24*time.Hour:
		return "this week"
	default:
		return "long ago"
	}
}
