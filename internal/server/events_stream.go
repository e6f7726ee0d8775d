package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/folios/internal/events"
)

const writeTimeout = 10 * time.Second

// EventsStreamHandler streams bus events to websocket clients. Clients may
// filter with ?types=REQUEST_TRANSITIONED,TASK_TRANSITIONED; no filter means
// every event type.
type EventsStreamHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsStreamHandler creates the websocket events handler.
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus: bus,
		log: log.With().Str("component", "events_stream").Logger(),
	}
}

func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	types := h.requestedTypes(r)
	ch := make(chan events.Event, 64)
	handler := func(event events.Event) {
		select {
		case ch <- event:
		default:
			// Slow consumer: drop rather than block the publisher.
		}
	}
	for _, eventType := range types {
		h.bus.Subscribe(eventType, handler)
	}

	h.log.Info().Int("types", len(types)).Msg("Events stream client connected")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				status := websocket.CloseStatus(err)
				if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
					h.log.Debug().Err(err).Msg("Events stream write failed")
				}
				return
			}
		}
	}
}

func (h *EventsStreamHandler) requestedTypes(r *http.Request) []events.EventType {
	raw := r.URL.Query().Get("types")
	if raw == "" {
		return events.AllEventTypes
	}
	var types []events.EventType
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			types = append(types, events.EventType(name))
		}
	}
	if len(types) == 0 {
		return events.AllEventTypes
	}
	return types
}
