package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fishlab/gostim/internal/config"
	"github.com/fishlab/gostim/internal/event"
	"github.com/fishlab/gostim/internal/stim"
)

// HttpServer is the control surface of the rig: tracking software posts
// switch requests here, and UI clients watch state and frames over the
// websocket stream.
type HttpServer struct {
	logger     *slog.Logger
	server     *http.Server
	controller *stim.Controller
	scheduler  *stim.Scheduler
	wsServer   *WebSocketServer

	eventsMux    sync.Mutex
	recentEvents []EventEntry
}

const recentEventLimit = 100

type EventEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

type WebSocketServer struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

func NewWebSocketServer() *WebSocketServer {
	return &WebSocketServer{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (s *WebSocketServer) Run() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = true
		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
		case message := <-s.broadcast:
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(s.clients, client)
				}
			}
		}
	}
}

// Broadcast queues a message for all clients without ever blocking the
// caller; when the hub is backed up the message is dropped.
func (s *WebSocketServer) Broadcast(message []byte) {
	select {
	case s.broadcast <- message:
	default:
	}
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, 256)}
	s.register <- client

	go s.writePump(client)
	go s.readPump(client)
}

func (s *WebSocketServer) writePump(client *Client) {
	defer func() {
		client.conn.Close()
	}()

	for message := range client.send {
		w, err := client.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		if err := w.Close(); err != nil {
			return
		}
	}
	client.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (s *WebSocketServer) readPump(client *Client) {
	defer func() {
		s.unregister <- client
		client.conn.Close()
	}()

	for {
		_, _, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket read error", "error", err)
			}
			break
		}
	}
}

func New(logger *slog.Logger, controller *stim.Controller, scheduler *stim.Scheduler) (*HttpServer, error) {
	return &HttpServer{
		logger:     logger,
		controller: controller,
		scheduler:  scheduler,
		wsServer:   NewWebSocketServer(),
	}, nil
}

func (s *HttpServer) Listen(port int) error {
	go s.wsServer.Run()
	go s.broadcastStatus()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.getStatus)
	mux.HandleFunc("POST /api/stimulus", s.postStimulus)
	mux.HandleFunc("GET /api/events", s.getEvents)
	mux.HandleFunc("/ws", s.wsServer.HandleWebSocket)

	s.server = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *HttpServer) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

type statusData struct {
	Type       string         `json:"type"`
	Version    string         `json:"version"`
	Generation uint64         `json:"generation"`
	Kind       string         `json:"kind"`
	Phase      string         `json:"phase"`
	Spec       map[string]any `json:"spec"`
	Channels   []channelData  `json:"channels"`
}

type channelData struct {
	Velocity float32 `json:"velocity"`
	Texture  string  `json:"texture"`
	Holding  bool    `json:"holding"`
	Stopped  bool    `json:"stopped"`
}

func (s *HttpServer) statusData() statusData {
	data := statusData{Type: "status", Version: config.Version}
	snap := s.scheduler.Snapshot()
	if snap == nil {
		return data
	}
	data.Generation = snap.Generation
	data.Kind = string(snap.Kind())
	data.Phase = string(snap.Phase)
	data.Spec = snap.Spec.Summary()
	n := 1
	if snap.Kind() == stim.KindBinocular {
		n = 2
	}
	for i := 0; i < n; i++ {
		ch := snap.Channels[i]
		data.Channels = append(data.Channels, channelData{
			Velocity: ch.Velocity,
			Texture:  ch.Texture.String(),
			Holding:  ch.Holding,
			Stopped:  ch.Stopped,
		})
	}
	return data
}

func (s *HttpServer) getStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.statusData()); err != nil {
		s.logger.Error("Failed to encode status", slog.Any("error", err))
	}
}

// postStimulus is the network entry point for switch events: a JSON request
// body in the same shape tracking software sends over the wire.
func (s *HttpServer) postStimulus(w http.ResponseWriter, r *http.Request) {
	var req stim.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("malformed request: %v", err))
		return
	}

	gen, err := s.controller.Switch(r.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, stim.ErrInvalidSpec) {
			status = http.StatusBadRequest
		}
		writeJSONError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"generation": gen})
}

func (s *HttpServer) getEvents(w http.ResponseWriter, r *http.Request) {
	s.eventsMux.Lock()
	entries := make([]EventEntry, len(s.recentEvents))
	copy(entries, s.recentEvents)
	s.eventsMux.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// HandleEvent is registered on the event listener: it keeps a short history
// for the API and pushes each event to websocket clients.
func (s *HttpServer) HandleEvent(_ context.Context, e event.Event) error {
	entry := EventEntry{
		Timestamp: e.OccurredAt(),
		Source:    e.Source(),
		Message:   e.Message(),
	}

	s.eventsMux.Lock()
	s.recentEvents = append(s.recentEvents, entry)
	if len(s.recentEvents) > recentEventLimit {
		s.recentEvents = s.recentEvents[len(s.recentEvents)-recentEventLimit:]
	}
	s.eventsMux.Unlock()

	payload, err := json.Marshal(map[string]any{"type": "event", "event": entry})
	if err != nil {
		return err
	}
	s.wsServer.Broadcast(payload)
	return nil
}

func (s *HttpServer) broadcastStatus() {
	for {
		jsonData, err := json.Marshal(s.statusData())
		if err != nil {
			s.logger.Error("Failed to marshal status data", slog.Any("error", err))
			time.Sleep(1 * time.Second)
			continue
		}
		s.wsServer.Broadcast(jsonData)
		time.Sleep(1 * time.Second)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
