// Package events publishes thought lifecycle notifications over NATS.
//
// Events are published to per-session subjects:
//
//	thoughtd.thoughts.stored.<session>
//	thoughtd.reflections.created.<session>
//
// The bus is optional infrastructure: a nil *Bus drops every publish, so
// the daemon runs unchanged without a NATS server. Publishing is fire and
// forget; failures are logged, never returned.
package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

// Event kinds used in subjects and metrics.
const (
	KindThoughtStored     = "thought_stored"
	KindReflectionCreated = "reflection_created"
)

// ThoughtStored is the payload published when a thought is persisted.
type ThoughtStored struct {
	ThoughtID  string    `json:"thought_id"`
	SessionID  string    `json:"session_id"`
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReflectionCreated is the payload published after a reflection cycle
// stores meta-thoughts.
type ReflectionCreated struct {
	SessionID  string    `json:"session_id"`
	Mode       string    `json:"mode"`
	ThoughtIDs []string  `json:"thought_ids"`
	LatencyMS  float64   `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Bus publishes lifecycle events to NATS.
type Bus struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// New creates a bus over an established NATS connection. A nil connection
// yields a nil bus, which is safe to publish on and publishes nothing.
func New(conn *nats.Conn, logger *zap.Logger) *Bus {
	if conn == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{conn: conn, logger: logger}
}

// Conn exposes the underlying connection for subscribers (the SSE feed).
// It is nil when the bus is nil.
func (b *Bus) Conn() *nats.Conn {
	if b == nil {
		return nil
	}
	return b.conn
}

// PublishThoughtStored emits a thought_stored event for the thought's
// session.
func (b *Bus) PublishThoughtStored(t *thought.Thought) {
	if b == nil || t == nil {
		return
	}
	b.publish(KindThoughtStored, SubjectThoughtsStored(t.SessionID), ThoughtStored{
		ThoughtID:  t.ID,
		SessionID:  t.SessionID,
		Category:   t.Category,
		Confidence: t.Confidence,
		CreatedAt:  t.CreatedAt,
	})
}

// PublishReflectionCreated emits a reflection_created event for the
// session the reflections were stored in.
func (b *Bus) PublishReflectionCreated(payload ReflectionCreated) {
	if b == nil {
		return
	}
	if payload.CreatedAt.IsZero() {
		payload.CreatedAt = time.Now().UTC()
	}
	b.publish(KindReflectionCreated, SubjectReflectionsCreated(payload.SessionID), payload)
}

func (b *Bus) publish(kind, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn("marshaling event payload",
			zap.String("subject", subject),
			zap.Error(err),
		)
		PublishFailures.WithLabelValues(kind).Inc()
		return
	}
	if err := b.conn.Publish(subject, data); err != nil {
		b.logger.Warn("publishing event",
			zap.String("subject", subject),
			zap.Error(err),
		)
		PublishFailures.WithLabelValues(kind).Inc()
		return
	}
	EventsPublished.WithLabelValues(kind).Inc()
}

// SubjectThoughtsStored returns the thought_stored subject for a session.
func SubjectThoughtsStored(sessionID string) string {
	return "thoughtd.thoughts.stored." + subjectToken(sessionID)
}

// SubjectReflectionsCreated returns the reflection_created subject for a
// session.
func SubjectReflectionsCreated(sessionID string) string {
	return "thoughtd.reflections.created." + subjectToken(sessionID)
}

// SubjectSessionEvents returns a wildcard subject matching every event
// family for a session. Subscribers use it to follow a session's full
// lifecycle with one subscription.
func SubjectSessionEvents(sessionID string) string {
	return "thoughtd.*.*." + subjectToken(sessionID)
}

// KindFromSubject recovers the event kind from a published subject.
// Unknown subjects yield an empty kind.
func KindFromSubject(subject string) string {
	switch {
	case strings.HasPrefix(subject, "thoughtd.thoughts.stored."):
		return KindThoughtStored
	case strings.HasPrefix(subject, "thoughtd.reflections.created."):
		return KindReflectionCreated
	default:
		return ""
	}
}

// subjectToken makes a session id safe for use as a single NATS subject
// token. Session ids are caller-chosen free text; whitespace, dots, and
// wildcard characters would split or widen the subject.
func subjectToken(sessionID string) string {
	if sessionID == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '-'
		}
	}, sessionID)
}
