package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BudulAI/BudulGo/pkg/telemetry"
)

// ErrSocketClosed is returned by Send after the socket has been closed.
var ErrSocketClosed = errors.New("socket is closed")

// socketHandshakeTimeout bounds the WebSocket upgrade.
const socketHandshakeTimeout = 10 * time.Second

// SocketFrame is one JSON push message from the backend. Raw preserves
// the whole frame for callers that need fields beyond the routed ones.
type SocketFrame struct {
	Action    string          `json:"action"`
	SessionID string          `json:"sessionId"`
	Message   string          `json:"message"`
	Raw       json.RawMessage `json:"-"`
}

// Socket is a live bidirectional channel for push-style updates.
//
// A read loop starts on open and pumps frames into Frames(). Malformed
// frames are logged and dropped, never fatal to the socket. Send and
// the read loop may run concurrently; Close is safe to call more than
// once.
type Socket struct {
	conn   *websocket.Conn
	logger *slog.Logger
	frames chan SocketFrame

	mu     sync.Mutex
	closed bool
}

// OpenSocket dials the chat WebSocket for a user and session.
//
// The socket scheme is derived from the configured base URL: http
// becomes ws, https becomes wss. The bearer token, when set, is sent on
// the handshake.
func (c *Client) OpenSocket(ctx context.Context, userID, sessionID string) (*Socket, error) {
	socketURL, err := c.socketURL(userID, sessionID)
	if err != nil {
		return nil, NewConnectivityError("failed to resolve websocket URL", err)
	}

	header := http.Header{}
	if token := c.authToken(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	telemetry.InjectContext(ctx, header)

	dialer := websocket.Dialer{HandshakeTimeout: socketHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, socketURL, header)
	if err != nil {
		return nil, NewConnectivityError("websocket dial failed", err)
	}

	s := &Socket{
		conn:   conn,
		logger: c.logger,
		frames: make(chan SocketFrame, 16),
	}
	go s.readLoop()

	return s, nil
}

// socketURL translates the HTTP base URL into the chat socket URL.
func (c *Client) socketURL(userID, sessionID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
		// already a socket scheme
	default:
		return "", fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") +
		"/api/v1/chat/ws/" + url.PathEscape(userID) + "/" + url.PathEscape(sessionID)
	return u.String(), nil
}

// Frames returns the channel of pushed frames. The channel closes when
// the socket closes. Drain it promptly: the read loop blocks once the
// buffer fills.
func (s *Socket) Frames() <-chan SocketFrame {
	return s.frames
}

// Send writes v as a JSON frame.
func (s *Socket) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSocketClosed
	}
	return s.conn.WriteJSON(v)
}

// Close sends a normal close message and releases the connection.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

func (s *Socket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// readLoop pumps frames until the connection drops.
func (s *Socket) readLoop() {
	defer close(s.frames)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isClosed() {
				s.logger.Info("websocket disconnected", "error", err)
			}
			return
		}

		var frame SocketFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warn("dropping malformed websocket frame", "error", err)
			continue
		}
		frame.Raw = data

		s.frames <- frame
	}
}
