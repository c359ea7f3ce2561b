package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/stockfolio/internal/events"
	"github.com/aristath/stockfolio/internal/modules/accounts"
)

const (
	streamBuffer       = 64
	streamHeartbeat    = 30 * time.Second
	streamWriteTimeout = 5 * time.Second
)

// StreamMessage is one websocket message of the event stream
type StreamMessage struct {
	Type      string                 `json:"type"`
	Module    string                 `json:"module,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventsStreamHandler streams the caller's account events over a websocket.
type EventsStreamHandler struct {
	eventBus *events.Bus
	auth     accounts.Authenticator
	log      zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler.
func NewEventsStreamHandler(eventBus *events.Bus, auth accounts.Authenticator, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		auth:     auth,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream. Browsers cannot set headers on a
// websocket handshake, so the session token is also accepted as ?token=.
// ?types=A,B limits the stream to the listed event types.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := accounts.TokenFromRequest(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	accountID, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	allowed := parseTypes(r.URL.Query().Get("types"))

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket handshake failed")
		return
	}
	defer conn.CloseNow()

	// Nothing is read from clients; CloseRead handles control frames and
	// cancels ctx once the client goes away.
	ctx := conn.CloseRead(r.Context())

	eventChan := make(chan *events.Event, streamBuffer)
	handler := func(event *events.Event) {
		if !matchesAccount(event, accountID) {
			return
		}
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Int64("account_id", accountID).
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	var subscriptions []uint64
	for _, eventType := range events.AllEventTypes() {
		if allowed != nil && !allowed[eventType] {
			continue
		}
		subscriptions = append(subscriptions, h.eventBus.Subscribe(eventType, handler))
	}
	defer func() {
		for _, id := range subscriptions {
			h.eventBus.Unsubscribe(id)
		}
	}()

	h.log.Info().Int64("account_id", accountID).Msg("Client connected to event stream")

	if err := h.write(ctx, conn, StreamMessage{
		Type:      "connected",
		Timestamp: time.Now().Format(time.RFC3339),
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Int64("account_id", accountID).Msg("Client disconnected from event stream")
			return

		case event := <-eventChan:
			if err := h.write(ctx, conn, StreamMessage{
				Type:      string(event.Type),
				Module:    event.Module,
				Timestamp: event.Timestamp.Format(time.RFC3339Nano),
				Data:      event.Data,
			}); err != nil {
				return
			}

		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Event stream ping failed")
				return
			}
		}
	}
}

func (h *EventsStreamHandler) write(ctx context.Context, conn *websocket.Conn, msg StreamMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()

	if err := wsjson.Write(writeCtx, conn, msg); err != nil {
		h.log.Debug().Err(err).Str("event_type", msg.Type).Msg("Failed to write to event stream")
		return err
	}
	return nil
}

// matchesAccount reports whether event belongs to accountID. Events without
// an account are not streamed.
func matchesAccount(event *events.Event, accountID int64) bool {
	switch v := event.Data["account_id"].(type) {
	case float64:
		return int64(v) == accountID
	case int64:
		return v == accountID
	default:
		return false
	}
}

func parseTypes(raw string) map[events.EventType]bool {
	if raw == "" {
		return nil
	}
	allowed := make(map[events.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			allowed[events.EventType(strings.ToUpper(t))] = true
		}
	}
	return allowed
}
