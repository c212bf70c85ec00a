package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"pointerheat/internal/protocol"
	"pointerheat/internal/session"

	"github.com/gorilla/websocket"
)

// statsInterval is how often sample counts are pushed while capturing
const statsInterval = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API only listens on loopback
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager handles WebSocket connections and broadcasting
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.RWMutex
	broadcast  chan protocol.Message
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	shutdown   chan struct{}
	stopOnce   sync.Once
}

// WebSocketClient represents a connected browser
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string

	// closed is set under clientsMu when the hub closes send
	closed bool
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan protocol.Message),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			n := len(m.clients)
			m.clientsMu.Unlock()
			log.Printf("WS: New client registered from %s. Total clients: %d", client.ip, n)

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				m.drop(client)
				log.Printf("WS: Client unregistered from %s. Total clients: %d", client.ip, len(m.clients))
			}
			m.clientsMu.Unlock()

		case message := <-m.broadcast:
			m.broadcastMessage(message)

		case <-ticker.C:
			if m.clientCount() > 0 && m.server.svc.Capturing() {
				m.broadcastMessage(m.statsMessage())
			}

		case <-m.shutdown:
			m.clientsMu.Lock()
			for client := range m.clients {
				m.drop(client)
			}
			m.clientsMu.Unlock()
			return
		}
	}
}

func (m *WSManager) stop() {
	m.stopOnce.Do(func() { close(m.shutdown) })
}

// drop removes a client and closes its send channel; clientsMu must be held
func (m *WSManager) drop(client *WebSocketClient) {
	delete(m.clients, client)
	client.closed = true
	close(client.send)
}

func (m *WSManager) clientCount() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

func (m *WSManager) broadcastMessage(message protocol.Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("WS: Failed to marshal broadcast message: %v", err)
		return
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	for client := range m.clients {
		select {
		case client.send <- jsonMsg:
		default:
			// Slow client, drop it
			m.drop(client)
		}
	}
}

// publish hands a message to the hub unless it has shut down
func (m *WSManager) publish(msg protocol.Message) {
	select {
	case m.broadcast <- msg:
	case <-m.shutdown:
	}
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Failed to upgrade connection: %v", err)
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 256),
		ip:      r.RemoteAddr,
	}

	// Greet with the current state before the hub can broadcast to it
	if data, err := json.Marshal(m.stateMessage(m.server.svc.Status().Session)); err == nil {
		client.send <- data
	}

	select {
	case m.register <- client:
	case <-m.shutdown:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (m *WSManager) stateMessage(info session.Info) protocol.Message {
	st := m.server.svc.Status()
	return protocol.Message{
		Type: protocol.TypeState,
		Payload: protocol.StatePayload{
			State:     string(info.State),
			SessionID: info.SessionID,
			Samples:   st.Samples,
			Sessions:  st.Sessions,
		},
	}
}

func (m *WSManager) statsMessage() protocol.Message {
	st := m.server.svc.Status()
	return protocol.Message{
		Type: protocol.TypeStats,
		Payload: protocol.StatsPayload{
			SessionID: st.Session.SessionID,
			Recorded:  st.Session.Recorded,
			Samples:   st.Samples,
		},
	}
}

// BroadcastState pushes a capture state change to all clients
func (m *WSManager) BroadcastState(info session.Info) {
	m.publish(m.stateMessage(info))
}

// readPump pumps messages from the websocket connection to the hub.
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS: Read error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a message for this client only
func (c *WebSocketClient) reply(msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WS: Failed to marshal reply: %v", err)
		return
	}

	c.manager.clientsMu.RLock()
	defer c.manager.clientsMu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("WS: Dropping reply to slow client %s", c.ip)
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("WS: Invalid message format: %v", err)
		return
	}

	svc := c.manager.server.svc
	switch msg.Type {
	case protocol.TypeStatusRequest:
		c.reply(c.manager.stateMessage(svc.Status().Session))

	case protocol.TypeCommand:
		var payload protocol.CommandPayload
		jsonBytes, _ := json.Marshal(msg.Payload)
		if err := json.Unmarshal(jsonBytes, &payload); err != nil {
			log.Printf("WS: Invalid command payload: %v", err)
			return
		}

		log.Printf("WS: Received %s command from %s", payload.Action, c.ip)

		// State changes reach every client through the service listener
		go func() {
			var err error
			switch payload.Action {
			case protocol.ActionStart:
				_, err = svc.StartCapture()
			case protocol.ActionStop:
				svc.StopCapture()
			default:
				log.Printf("WS: Unknown command %q", payload.Action)
				return
			}
			if err != nil {
				log.Printf("WS: Command %s failed: %v", payload.Action, err)
				c.reply(protocol.Message{Type: protocol.TypeError, Payload: protocol.ErrorPayload{Message: err.Error()}})
			}
		}()

	default:
		log.Printf("WS: Ignoring message type %q", msg.Type)
	}
}
