package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/sakif/movieshelf/internal/eventbus"
	"github.com/sakif/movieshelf/internal/model"
)

const (
	// eventBufferSize is how many envelopes may queue per connection before
	// new ones are dropped.
	eventBufferSize = 16

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Envelope is one websocket message. ID is a ULID, so clients can order and
// de-duplicate messages.
type Envelope struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	CollectionID string           `json:"collectionId"`
	Membership   model.Membership `json:"membership"`
	At           time.Time        `json:"at"`
}

// EventsHandler streams movie_saved events over a websocket.
//
// Each connection gets its own bus subscription feeding a bounded queue. A
// slow client loses events instead of stalling the save that published them.
type EventsHandler struct {
	bus      *eventbus.Bus
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(bus *eventbus.Bus, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleStream upgrades the connection and forwards events until the client
// goes away.
//
// HTTP: GET /api/events (websocket)
func (h *EventsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	queue := make(chan Envelope, eventBufferSize)
	unsubscribe := eventbus.OnMovieSaved(h.bus, func(ev *eventbus.MovieSaved) {
		env := Envelope{
			ID:           ulid.Make().String(),
			Type:         eventbus.EventMovieSaved,
			CollectionID: ev.CollectionID,
			Membership:   ev.Membership,
			At:           time.Now().UTC(),
		}
		select {
		case queue <- env:
		default:
			h.logger.Warn("event stream full, dropping event",
				slog.String("remote", r.RemoteAddr),
				slog.String("eventId", env.ID),
			)
		}
	})
	defer unsubscribe()

	h.logger.Info("event stream opened", slog.String("remote", r.RemoteAddr))
	defer h.logger.Info("event stream closed", slog.String("remote", r.RemoteAddr))

	// The read loop only handles control frames and notices disconnects.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-queue:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				h.logger.Debug("event stream write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
