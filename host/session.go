package host

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hkcm91/stickernest-runtime/bridge"
	"github.com/hkcm91/stickernest-runtime/bus"
	"github.com/hkcm91/stickernest-runtime/manifest"
	"github.com/hkcm91/stickernest-runtime/store"
)

const (
	// writeWait is the maximum time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// pongWait is the maximum time to wait for a pong reply from the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds inbound sandbox messages. Widget payloads are
	// JSON values, not blobs; anything larger belongs in an asset.
	maxMessageSize = 64 * 1024
)

// SessionServer upgrades HTTP requests to widget sandbox sessions. One
// session serves exactly one placed widget instance; the first inbound
// message must be a hello naming the instance.
type SessionServer struct {
	host     *Host
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewSessionServer creates a SessionServer for the given host. checkOrigin
// nil keeps the upgrader's same-origin default.
func NewSessionServer(h *Host, checkOrigin func(*http.Request) bool) *SessionServer {
	return &SessionServer{
		host:   h,
		logger: h.logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ServeHTTP upgrades the connection, performs the hello handshake and then
// runs the session until the sandbox disconnects. Disconnecting does not
// remove the widget; a reloading sandbox reconnects to the same instance.
func (s *SessionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("sandbox upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	inst, canvas, err := s.handshake(conn)
	if err != nil {
		s.logger.Warn("sandbox handshake failed", "remote", r.RemoteAddr, "error", err)
		_ = conn.Close()
		return
	}

	sess := newSession(conn, inst, s.logger)
	sess.wireBridge()

	go sess.writePump()

	if inst.Bridge.Mounted() {
		// Reconnect: the instance is already live, so Mount would be a
		// no-op. Replay the mount context so the new sandbox can hydrate.
		sess.enqueue(Message{Type: MsgMounted, WidgetID: inst.ID.String(), State: inst.Bridge.State()})
	} else if err := canvas.Mount(r.Context(), inst.ID); err != nil {
		s.logger.Error("failed to mount widget for sandbox", "widget", inst.ID, "error", err)
	}

	sess.readPump()
	sess.unwire()
	sess.close()
}

// handshake reads the hello message and resolves the widget instance.
func (s *SessionServer) handshake(conn *websocket.Conn) (*Instance, *Canvas, error) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, nil, err
	}
	var hello Message
	if err := json.Unmarshal(raw, &hello); err != nil {
		return nil, nil, err
	}
	if hello.Type != MsgHello {
		return nil, nil, ErrUnknownInstance
	}
	widgetID, err := uuid.Parse(hello.WidgetID)
	if err != nil {
		return nil, nil, err
	}
	inst, canvas, ok := s.host.FindInstance(widgetID)
	if !ok {
		return nil, nil, ErrUnknownInstance
	}
	return inst, canvas, nil
}

// session is one live sandbox connection.
type session struct {
	conn   *websocket.Conn
	inst   *Instance
	logger *slog.Logger

	send      chan []byte
	closeOnce sync.Once
	removals  []func()

	mu     sync.Mutex
	closed bool
}

func newSession(conn *websocket.Conn, inst *Instance, logger *slog.Logger) *session {
	return &session{
		conn:   conn,
		inst:   inst,
		logger: logger,
		send:   make(chan []byte, 256),
	}
}

// wireBridge installs the session as the widget side of the bridge: host
// callbacks are forwarded to the sandbox as wire messages. Input handlers
// are registered for every resolved port and event listeners for every
// declared listen, so routing stays inside the bridge.
func (sess *session) wireBridge() {
	br := sess.inst.Bridge
	widgetID := sess.inst.ID.String()

	br.OnMount(func(mc bridge.MountContext) {
		sess.enqueue(Message{Type: MsgMounted, WidgetID: widgetID, State: mc.State})
	})

	ports := manifest.ResolvePorts(br.Manifest())
	for _, in := range ports.Inputs {
		port := in
		br.OnInput(port, func(value any) {
			payload, err := encodePayload(value)
			if err != nil {
				sess.logger.Warn("dropping unserializable input", "widget", widgetID, "port", port, "error", err)
				return
			}
			sess.enqueue(Message{Type: MsgInput, WidgetID: widgetID, Port: port, Payload: payload})
		})
	}

	for _, event := range br.Manifest().Events.Listens {
		remove := br.On(event, func(env bus.Envelope) {
			e := env
			sess.enqueue(Message{Type: MsgEvent, WidgetID: widgetID, Event: env.Event, Envelope: &e})
		})
		sess.removals = append(sess.removals, remove)
	}

	br.OnStateChange(func(s store.State) {
		sess.enqueue(Message{Type: MsgStateChanged, WidgetID: widgetID, State: s})
	})

	br.OnDestroy(func() {
		sess.enqueue(Message{Type: MsgDestroy, WidgetID: widgetID})
		sess.close()
	})
}

// enqueue serializes and queues one outbound message. A slow sandbox drops
// messages instead of blocking the host; a finished session drops silently.
func (sess *session) enqueue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		sess.logger.Error("failed to encode sandbox message", "widget", sess.inst.ID, "type", msg.Type, "error", err)
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}
	select {
	case sess.send <- data:
	default:
		sess.logger.Warn("sandbox send buffer full, dropping message", "widget", sess.inst.ID, "type", msg.Type)
	}
}

// unwire removes the session's broadcast listeners from the bridge so a
// reconnecting sandbox does not stack listeners feeding a dead session. The
// replace-style hooks (OnMount, OnInput, OnStateChange, OnDestroy) are
// overwritten by the next session's wireBridge.
func (sess *session) unwire() {
	for _, remove := range sess.removals {
		remove()
	}
}

func (sess *session) close() {
	sess.closeOnce.Do(func() {
		sess.mu.Lock()
		sess.closed = true
		sess.mu.Unlock()
		close(sess.send)
	})
}

// readPump pumps messages from the sandbox into the bridge. It runs on the
// serving goroutine and returns when the connection drops.
func (sess *session) readPump() {
	defer func() { _ = sess.conn.Close() }()

	sess.conn.SetReadLimit(maxMessageSize)
	_ = sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.logger.Warn("sandbox read error", "widget", sess.inst.ID, "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			sess.logger.Warn("dropping malformed sandbox message", "widget", sess.inst.ID, "error", err)
			continue
		}
		sess.dispatch(msg)
	}
}

// dispatch applies one inbound sandbox message to the bridge.
func (sess *session) dispatch(msg Message) {
	br := sess.inst.Bridge

	switch msg.Type {
	case MsgOutput:
		value, err := msg.decodePayload()
		if err != nil {
			sess.logger.Warn("dropping output with bad payload", "widget", sess.inst.ID, "port", msg.Port, "error", err)
			return
		}
		br.EmitOutput(msg.Port, value)
	case MsgEmit:
		value, err := msg.decodePayload()
		if err != nil {
			sess.logger.Warn("dropping emit with bad payload", "widget", sess.inst.ID, "event", msg.Event, "error", err)
			return
		}
		br.Emit(msg.Event, value)
	case MsgSetState:
		br.SetState(msg.State)
	case MsgReplaceState:
		br.ReplaceState(msg.State)
	case MsgLog:
		switch msg.Level {
		case "warn":
			br.Warn(msg.Text)
		case "error":
			br.Error(msg.Text)
		default:
			br.Log(msg.Text)
		}
	default:
		sess.logger.Warn("unknown sandbox message type", "widget", sess.inst.ID, "type", msg.Type)
	}
}

// writePump pumps queued messages to the sandbox and keeps the connection
// alive with pings. It runs in its own goroutine per session.
func (sess *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sess.conn.Close()
	}()

	for {
		select {
		case data, ok := <-sess.send:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sess.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
