package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/shopmindai/chatcore/internal/authn"
	"github.com/shopmindai/chatcore/internal/authz"
	"github.com/shopmindai/chatcore/internal/metrics"
	"github.com/shopmindai/chatcore/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	touchThrottle  = 90 * time.Second
	maxFrameRate   = 20 // inbound frames per second per session
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type inboundFrame struct {
	Type   string `json:"type"`
	Token  string `json:"token"`
	Active *bool  `json:"active"`
	ChatID int64  `json:"chat_id"`
	Status string `json:"status"`
}

// Deps bundles the collaborators every Session needs; the /ws handler builds
// one from the server's shared collaborators for each upgraded connection.
type Deps struct {
	Registry *Registry
	Presence *Presence
	Authz    *authz.Oracle
	Store    *store.Store
	Signer   *authn.Signer
	Log      *logrus.Entry
}

// Session is one duplex connection. State machine: unauthenticated ->
// authenticated -> subscribed(N chats). A non-"auth" frame while
// unauthenticated gets a "Not authenticated" error frame and the connection
// stays open; an "auth" frame with an invalid token closes the connection
// after its error frame; every other protocol violation emits an error frame
// and keeps the connection open.
type Session struct {
	deps    *Deps
	conn    *websocket.Conn
	outbox  chan []byte
	limiter *rate.Limiter
	log     *logrus.Entry

	mu              sync.Mutex
	authenticated   bool
	userID          int64
	isAdmin         bool
	active          bool
	subscribedChats map[int64]bool
	lastTouch       time.Time

	closeOnce sync.Once
}

// ServeWS upgrades the request and runs the session's pumps until closure.
// Call from the gin handler bound to /ws.
func ServeWS(w http.ResponseWriter, r *http.Request, deps *Deps) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		deps.Log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	s := &Session{
		deps:            deps,
		conn:            conn,
		outbox:          make(chan []byte, 64),
		limiter:         rate.NewLimiter(rate.Limit(maxFrameRate), maxFrameRate*2),
		log:             deps.Log.WithField("component", "session"),
		subscribedChats: make(map[int64]bool),
	}
	metrics.WSConnectionsActive.Inc()
	go s.writePump()
	go s.readPump()
}

func (s *Session) enqueue(payload []byte) {
	select {
	case s.outbox <- payload:
	default:
		// Slow consumer: drop rather than block the fan-out goroutine.
		s.log.Warn("outbound queue full, dropping frame")
	}
}

// send delivers an envelope to this session, used both by inline handlers
// and by Presence when per-viewer filtering requires bypassing the broker.
func (s *Session) send(env Envelope) { s.enqueue(env.bytes()) }

func (s *Session) readPump() {
	ctx := context.Background()
	defer s.closeSession(ctx)

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.WithError(err).Debug("session closed with error")
			}
			return
		}

		if !s.limiter.Allow() {
			s.send(errorFrame("rate limit exceeded"))
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.send(errorFrame("malformed frame"))
			continue
		}

		if !s.isAuthenticated() && frame.Type != "auth" {
			s.send(errorFrame("Not authenticated"))
			continue
		}

		switch frame.Type {
		case "auth":
			if !s.handleAuth(ctx, frame) {
				return
			}
		case "subscribe":
			s.handleSubscribe(ctx, frame)
		case "typing":
			s.handleTyping(ctx, frame)
		case "presence_update":
			s.handlePresenceUpdate(ctx, frame)
		case "ping":
			s.handlePing(ctx, frame)
		default:
			s.send(errorFrame("unknown frame type"))
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.outbox:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
			metrics.WSMessagesSent.Inc()
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) isAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *Session) handleAuth(ctx context.Context, frame inboundFrame) bool {
	claims, err := s.deps.Signer.Verify(frame.Token, authn.TokenAccess)
	if err != nil {
		s.send(errorFrame("invalid token"))
		return false
	}
	userID, err := claims.UserID()
	if err != nil {
		s.send(errorFrame("invalid token"))
		return false
	}
	active := true
	if frame.Active != nil {
		active = *frame.Active
	}

	s.mu.Lock()
	s.authenticated = true
	s.userID = userID
	s.isAdmin = claims.IsAdmin
	s.active = active
	s.lastTouch = time.Now()
	s.mu.Unlock()

	s.deps.Registry.AttachUser(s, userID)
	if err := s.deps.Store.TouchUserLastActivity(ctx, userID); err != nil {
		s.log.WithError(err).Warn("touch last activity on auth failed")
	}
	s.deps.Presence.Attach(ctx, userID, active)
	s.send(authOk(userID))
	return true
}

func (s *Session) handleSubscribe(ctx context.Context, frame inboundFrame) {
	userID := s.currentUserID()
	ok, err := s.deps.Authz.IsMember(ctx, frame.ChatID, userID)
	if err != nil {
		s.send(errorFrame("could not verify membership"))
		return
	}
	if !ok {
		s.send(errorFrame("Not a member of this chat"))
		return
	}

	s.mu.Lock()
	s.subscribedChats[frame.ChatID] = true
	s.mu.Unlock()

	s.deps.Registry.AttachChat(s, frame.ChatID)
	s.send(subscribed(frame.ChatID))
}

func (s *Session) handleTyping(ctx context.Context, frame inboundFrame) {
	userID := s.currentUserID()
	user, err := s.deps.Store.GetUserByID(ctx, userID)
	if err != nil {
		return
	}
	s.deps.Registry.PublishChat(ctx, frame.ChatID, typingEnvelope(userID, user.Username))
}

func (s *Session) handlePresenceUpdate(ctx context.Context, frame inboundFrame) {
	nowActive := frame.Status == "active"

	s.mu.Lock()
	wasActive := s.active
	s.active = nowActive
	userID := s.userID
	s.mu.Unlock()

	s.deps.Presence.SetActive(ctx, userID, wasActive, nowActive)
}

func (s *Session) handlePing(ctx context.Context, frame inboundFrame) {
	pingActive := frame.Active != nil && *frame.Active

	s.mu.Lock()
	wasActive := s.active
	userID := s.userID
	shouldTouch := pingActive && time.Since(s.lastTouch) >= touchThrottle
	if shouldTouch {
		s.lastTouch = time.Now()
	}
	if pingActive {
		s.active = true
	}
	s.mu.Unlock()

	s.send(pong())

	if shouldTouch {
		if err := s.deps.Store.TouchUserLastActivity(ctx, userID); err != nil {
			s.log.WithError(err).Warn("touch last activity on ping failed")
		}
	}
	if pingActive && !wasActive {
		s.deps.Presence.SetActive(ctx, userID, wasActive, true)
	}
}

func (s *Session) currentUserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) closeSession(ctx context.Context) {
	s.closeOnce.Do(func() {
		metrics.WSConnectionsActive.Dec()
		s.deps.Registry.Detach(s)
		close(s.outbox)

		s.mu.Lock()
		userID := s.userID
		wasActive := s.active
		authenticated := s.authenticated
		s.mu.Unlock()

		if authenticated {
			s.deps.Presence.Detach(ctx, userID, wasActive)
		}
	})
}
