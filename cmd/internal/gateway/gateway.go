// Package gateway exposes Relay's realtime delivery endpoint: a WebSocket
// connection per client, subscribed to the client's per-user channel and any
// conversation channels it joins.
package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"relay/cmd/internal/fanout"
	chatv1 "relay/shared/contracts/chat/v1"
)

const (
	wsSubprotocol = "relay.chat.v1"

	wsDefaultSendQueueSize = 256
	wsMinSendQueueSize     = 32

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute

	maxFrameBytes = 16 << 10 // 16 KiB; inbound frames are tiny control messages

	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
)

// Config contains gateway tunables, typically loaded from the environment.
type Config struct {
	OriginRequired bool
	AllowedOrigins []string

	WriteTimeout    time.Duration
	ReadIdleTimeout time.Duration
	SendQueueSize   int

	HeartbeatEvery   time.Duration
	HeartbeatTimeout time.Duration

	RateEvents int
	RateWindow time.Duration
}

// DefaultConfig returns secure-by-default gateway settings.
func DefaultConfig() Config {
	return Config{
		OriginRequired: true,
		AllowedOrigins: []string{"http://localhost", "http://127.0.0.1"},

		WriteTimeout:    wsDefaultWriteTimeout,
		ReadIdleTimeout: wsDefaultReadIdle,
		SendQueueSize:   wsDefaultSendQueueSize,

		HeartbeatEvery:   heartbeatInterval,
		HeartbeatTimeout: heartbeatTimeout,

		RateEvents: defaultRateEvents,
		RateWindow: defaultRateWindow,
	}
}

// Gateway bridges bus subscriptions onto WebSocket connections.
//
// Identity is resolved upstream (session auth is an external collaborator);
// the gateway trusts the forwarded identity in the request. The per-user
// channel key is the user's email.
type Gateway struct {
	log *slog.Logger
	bus fanout.Bus
	cfg Config

	originPatterns []string
}

// NewGateway constructs a Gateway over the given bus.
func NewGateway(log *slog.Logger, bus fanout.Bus, cfg Config) *Gateway {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if cfg.SendQueueSize < wsMinSendQueueSize {
		cfg.SendQueueSize = wsDefaultSendQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = wsDefaultWriteTimeout
	}
	if cfg.ReadIdleTimeout <= 0 {
		cfg.ReadIdleTimeout = wsDefaultReadIdle
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = heartbeatInterval
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = heartbeatTimeout
	}

	return &Gateway{
		log:            log,
		bus:            bus,
		cfg:            cfg,
		originPatterns: originPatternsFrom(cfg.AllowedOrigins),
	}
}

// clientFrame is the inbound client -> server control message.
type clientFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
}

// ServeHTTP adapter so the gateway can be mounted as http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the
// delivery loop until the client disconnects.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		http.Error(w, "missing email", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{wsSubprotocol},
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != wsSubprotocol {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", wsSubprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	sessionID := newSessionID()
	sub := fanout.NewSubscriber(sessionID, g.cfg.SendQueueSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Channel membership for this connection. Every detach runs on every exit
	// path; detach funcs are idempotent, so double release is harmless.
	var (
		mu       sync.Mutex
		detaches = make(map[string]func())
	)
	releaseAll := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, detach := range detaches {
			detach()
		}
		detaches = make(map[string]func())
	}
	defer releaseAll()

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			releaseAll()
			sub.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	// Scoped acquisition of the per-user channel: attached here, released by
	// releaseAll on every exit path regardless of reconnect cycles.
	userDetach, err := g.bus.Attach(email, sub)
	if err != nil {
		g.log.Error("ws.attach.fail", "session_id", sessionID, "err", err)
		shutdown(websocket.StatusInternalError, "subscribe failed")
		return
	}
	mu.Lock()
	detaches[email] = userDetach
	mu.Unlock()

	g.log.Info("ws.session.start", "session_id", sessionID, "email", email, "remote", r.RemoteAddr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Done():
				return
			case env := <-sub.Send:
				if err := writeEnvelope(ctx, conn, env, g.cfg.WriteTimeout); err != nil {
					g.log.Info("ws.write.fail", "session_id", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	go g.heartbeat(ctx, conn, sessionID, shutdown)

	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

	for {
		frame, err := readFrame(ctx, conn, g.cfg.ReadIdleTimeout)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				g.log.Info("ws.read.fail", "session_id", sessionID, "err", err)
			}
			shutdown(websocket.StatusNormalClosure, "read done")
			<-writerDone
			return
		}

		if !rl.Allow(time.Now()) {
			g.log.Info("ws.rate_limited", "session_id", sessionID)
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			<-writerDone
			return
		}

		switch frame.Type {
		case "join":
			convID := strings.TrimSpace(frame.ConversationID)
			if convID == "" {
				continue
			}

			mu.Lock()
			_, already := detaches[convID]
			mu.Unlock()
			if already {
				continue
			}

			detach, err := g.bus.Attach(convID, sub)
			if err != nil {
				g.log.Warn("ws.join.fail", "session_id", sessionID, "conversation_id", convID, "err", err)
				continue
			}
			mu.Lock()
			detaches[convID] = detach
			mu.Unlock()

		case "leave":
			convID := strings.TrimSpace(frame.ConversationID)
			if convID == "" || convID == email {
				continue
			}

			mu.Lock()
			detach := detaches[convID]
			delete(detaches, convID)
			mu.Unlock()
			if detach != nil {
				detach()
			}

		case "ping":
			// Liveness probe from the client; heartbeat handles the reverse direction.

		default:
			g.log.Info("ws.frame.unknown", "session_id", sessionID, "type", frame.Type)
		}
	}
}

// heartbeat pings the client periodically and shuts the session down after a
// failed ping, so half-open connections do not pin subscriptions.
func (g *Gateway) heartbeat(ctx context.Context, conn *websocket.Conn, sessionID string, shutdown func(websocket.StatusCode, string)) {
	t := time.NewTicker(g.cfg.HeartbeatEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pingCtx, cancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				g.log.Info("ws.heartbeat.fail", "session_id", sessionID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "heartbeat failed")
				return
			}
		}
	}
}

func (g *Gateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.cfg.OriginRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	u, err := url.Parse(origin)
	if err != nil {
		return errors.New("invalid origin")
	}

	for _, allowed := range g.cfg.AllowedOrigins {
		au, err := url.Parse(strings.TrimSpace(allowed))
		if err != nil {
			continue
		}
		if strings.EqualFold(u.Hostname(), au.Hostname()) {
			return nil
		}
	}
	return errors.New("origin not allowed")
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, env chatv1.Envelope, timeout time.Duration) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}

func readFrame(ctx context.Context, conn *websocket.Conn, idleTimeout time.Duration) (clientFrame, error) {
	rctx, cancel := context.WithTimeout(ctx, idleTimeout)
	defer cancel()

	_, data, err := conn.Read(rctx)
	if err != nil {
		return clientFrame{}, err
	}

	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return clientFrame{}, err
	}
	return frame, nil
}

// originPatternsFrom derives websocket.AcceptOptions host patterns from the
// allowed origin URLs so the two origin checks agree.
func originPatternsFrom(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(strings.TrimSpace(o))
		if err != nil || u.Hostname() == "" {
			continue
		}
		out = append(out, u.Hostname())
		out = append(out, u.Hostname()+":*")
	}
	return out
}

// newSessionID returns a random hex session id used for logging and
// subscriber identity.
func newSessionID() string {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return "session-unknown"
	}
	return hex.EncodeToString(b)
}
