package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"truckflow/pkg/conn"
	"truckflow/pkg/geo"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Tokens authenticate channels; origin checks add nothing for
	// native mobile clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

var (
	errChannelClosed   = errors.New("channel closed")
	errChannelBackedUp = errors.New("channel backed up")
)

// wsHandle adapts a websocket connection to conn.Handle. Sends go through a
// buffered queue drained by a single writer goroutine, so a slow client
// backs up its own queue and never the bus.
type wsHandle struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSHandle(ws *websocket.Conn) *wsHandle {
	h := &wsHandle{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	go h.writeLoop()
	return h
}

// Send queues the payload. A full queue counts as a dead client.
func (h *wsHandle) Send(payload []byte) error {
	select {
	case <-h.done:
		return errChannelClosed
	default:
	}
	select {
	case h.send <- payload:
		return nil
	case <-h.done:
		return errChannelClosed
	default:
		return errChannelBackedUp
	}
}

// Close stops the writer. Safe to call more than once.
func (h *wsHandle) Close() error {
	h.once.Do(func() { close(h.done) })
	return nil
}

func (h *wsHandle) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.ws.Close()
	}()
	for {
		select {
		case msg := <-h.send:
			h.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.Close()
				return
			}
		case <-ticker.C:
			h.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.Close()
				return
			}
		case <-h.done:
			return
		}
	}
}

// locationMessage is one ping on the vendor location channel. Active
// defaults to true; an explicit false deactivates the vendor without
// closing the channel.
type locationMessage struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Active *bool   `json:"active,omitempty"`
}

// locationSocketHandler accepts repeated {lat, lon} messages from an
// authenticated vendor and writes them into the geo cache. On every exit
// path the vendor's presence is removed, so a dead vendor disappears from
// proximity search immediately.
func locationSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := verifier.VerifyToken(ctx, tokenFromRequest(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if id.Role != conn.RoleVendor {
		http.Error(w, "vendor role required", http.StatusForbidden)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(ctx, "location socket upgrade", "error", err)
		return
	}
	wsConnectionsActive.WithLabelValues("location").Inc()

	defer func() {
		if err := geoCache.Remove(ctx, id.ParticipantID); err != nil {
			log.Error(ctx, "remove presence on disconnect", "vendor_id", id.ParticipantID, "error", err)
		}
		ws.Close()
		wsConnectionsActive.WithLabelValues("location").Dec()
		log.Info(ctx, "location channel closed", "vendor_id", id.ParticipantID)
	}()

	log.Info(ctx, "location channel open", "vendor_id", id.ParticipantID)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	stopPings := keepAlive(ws)
	defer stopPings()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))

		var msg locationMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			writeSocketError(ws, "malformed location message")
			continue
		}

		if msg.Active != nil && !*msg.Active {
			if err := geoCache.Remove(ctx, id.ParticipantID); err != nil {
				log.Error(ctx, "deactivate presence", "vendor_id", id.ParticipantID, "error", err)
			}
			continue
		}

		err = geoCache.Upsert(ctx, geo.Presence{
			VendorID: id.ParticipantID,
			Lat:      msg.Lat,
			Lon:      msg.Lon,
			Active:   true,
		})
		switch {
		case errors.Is(err, geo.ErrInvalidCoordinate):
			writeSocketError(ws, err.Error())
		case err != nil:
			log.Error(ctx, "upsert presence", "vendor_id", id.ParticipantID, "error", err)
		default:
			locationUpdatesTotal.Inc()
		}
	}
}

// notificationSocketHandler registers the participant's channel and streams
// every order event the bus routes to them until the channel closes.
func notificationSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := verifier.VerifyToken(ctx, tokenFromRequest(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(ctx, "notification socket upgrade", "error", err)
		return
	}
	wsConnectionsActive.WithLabelValues("notifications").Inc()

	handle := newWSHandle(ws)
	token := registry.Register(id.ParticipantID, id.Role, handle)

	defer func() {
		registry.Unregister(token)
		handle.Close()
		wsConnectionsActive.WithLabelValues("notifications").Dec()
		log.Info(ctx, "notification channel closed",
			"participant_id", id.ParticipantID, "role", id.Role)
	}()

	log.Info(ctx, "notification channel open",
		"participant_id", id.ParticipantID, "role", id.Role)

	// Inbound messages are not expected; the read loop only notices pongs
	// and disconnects.
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// keepAlive pings the peer from a side goroutine. WriteControl is safe
// alongside the read loop's occasional writes.
func keepAlive(ws *websocket.Conn) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func writeSocketError(ws *websocket.Conn, msg string) {
	payload, _ := json.Marshal(map[string]string{"error": msg})
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = ws.WriteMessage(websocket.TextMessage, payload)
}
