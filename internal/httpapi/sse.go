package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/thoughtd/internal/events"
)

// heartbeatInterval keeps proxies from timing out idle SSE connections.
const heartbeatInterval = 30 * time.Second

// handleSessionEvents streams a session's lifecycle events via Server-Sent
// Events.
//
// The handler subscribes to the session's NATS subjects and forwards each
// event to the client. Unlike an operation stream there is no terminal
// event; the connection stays open until the client disconnects.
//
// SSE event types:
//   - thought_stored: a thought was persisted to the session
//   - reflection_created: a reflection cycle stored meta-thoughts
//
// Example:
//
//	GET /api/v1/sessions/{id}/events
//
//	event: thought_stored
//	data: {"thought_id":"...","session_id":"planning","category":"reasoning",...}
//
//	event: reflection_created
//	data: {"session_id":"planning","mode":"reasoning","thought_ids":[...],...}
func (s *Server) handleSessionEvents(c echo.Context) error {
	sessionID := c.Param("id")

	conn := s.svc.Bus.Conn()
	if conn == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event bus not configured")
	}

	// Set SSE headers
	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Subscribe to every event family for this session
	msgChan := make(chan *nats.Msg, 16)
	sub, err := conn.ChanSubscribe(events.SubjectSessionEvents(sessionID), msgChan)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "subscribing to session events")
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	// Commit headers so clients see the stream open immediately
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	// Heartbeat ticker to prevent proxy timeouts
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	// Stream events until the client disconnects
	for {
		select {
		case msg := <-msgChan:
			kind := events.KindFromSubject(msg.Subject)
			if kind == "" {
				continue
			}

			fmt.Fprintf(c.Response(), "event: %s\n", kind)
			fmt.Fprintf(c.Response(), "data: %s\n\n", string(msg.Data))
			c.Response().Flush()

		case <-ticker.C:
			// Send heartbeat to keep connection alive
			fmt.Fprintf(c.Response(), ": heartbeat\n\n")
			c.Response().Flush()

		case <-c.Request().Context().Done():
			// Client disconnected
			return nil
		}
	}
}
