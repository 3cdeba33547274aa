package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lewisedginton/friday_assistant/internal/assistant"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 16 << 10
)

// Websocket message types.
const (
	wsTypeMessage = "message"
	wsTypeReset   = "reset"
	wsTypeReady   = "ready"
	wsTypeReply   = "reply"
	wsTypeError   = "error"
)

type wsInbound struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type wsOutbound struct {
	Type   string           `json:"type"`
	Online bool             `json:"online,omitempty"`
	Reply  *assistant.Reply `json:"reply,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// handleWebsocket serves one GUI connection. Each connection is its own
// session; messages are answered in order.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	log := logger.GetLoggerFromContext(r.Context(), s.log)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go s.keepAlive(ctx, cancel, conn)

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	session := s.cfg.Assistant.NewSession()
	limiter := s.limiter.Limiter()
	log.Info("Websocket session started")
	defer log.Info("Websocket session ended")

	if err := send(conn, wsOutbound{Type: wsTypeReady, Online: s.cfg.Assistant.Online()}); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Websocket read failed", logger.ErrorField(err))
			}
			return
		}

		out := wsOutbound{Type: wsTypeError, Error: "rate limit exceeded"}
		if limiter.Allow() {
			out = s.handleFrame(ctx, session, data, log)
		}
		if ctx.Err() != nil {
			return
		}
		if err := send(conn, out); err != nil {
			log.Warn("Websocket write failed", logger.ErrorField(err))
			return
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, session *assistant.Session, data []byte, log logger.Logger) wsOutbound {
	var in wsInbound
	if err := json.Unmarshal(data, &in); err != nil {
		return wsOutbound{Type: wsTypeError, Error: "invalid JSON message"}
	}

	switch in.Type {
	case wsTypeMessage:
		if strings.TrimSpace(in.Text) == "" {
			return wsOutbound{Type: wsTypeError, Error: "text is required"}
		}
		reply, err := session.Respond(ctx, in.Text)
		if err != nil {
			log.Error("Websocket chat failed", logger.ErrorField(err))
			return wsOutbound{Type: wsTypeError, Error: "chat failed"}
		}
		if !reply.Continue {
			session.Reset()
		}
		return wsOutbound{Type: wsTypeReply, Reply: &reply}
	case wsTypeReset:
		session.Reset()
		return wsOutbound{Type: wsTypeReset}
	default:
		return wsOutbound{Type: wsTypeError, Error: "unknown message type " + in.Type}
	}
}

// keepAlive pings the peer and closes the connection on server shutdown.
// WriteControl and Close are safe to call alongside the read loop's writes.
func (s *Server) keepAlive(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			cancel()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteWait))
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				cancel()
				_ = conn.Close()
				return
			}
		}
	}
}

func send(conn *websocket.Conn, msg wsOutbound) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients), same-host origins, and origins matching the CORS allow list.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, pattern := range s.cfg.HTTP.AllowedOrigins {
		if originMatches(pattern, origin) {
			return true
		}
	}
	return false
}

// originMatches supports a single "*" wildcard, as the CORS middleware does.
func originMatches(pattern, origin string) bool {
	if pattern == "*" {
		return true
	}
	prefix, suffix, wildcard := strings.Cut(pattern, "*")
	if !wildcard {
		return strings.EqualFold(pattern, origin)
	}
	return len(origin) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(strings.ToLower(origin), strings.ToLower(prefix)) &&
		strings.HasSuffix(strings.ToLower(origin), strings.ToLower(suffix))
}
