// Package events publishes workflow and chat activity to NATS subjects.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ashureev/growthdesk/internal/workflow"
)

// SubjectPrefix roots every published subject.
const SubjectPrefix = "growthdesk"

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Connect dials NATS with reconnect handling logged through logger.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("growthdesk"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// WorkflowMessage is the payload published for a transition. Image bytes
// are not published.
type WorkflowMessage struct {
	Instance  string             `json:"instance"`
	UserID    string             `json:"user_id"`
	SessionID string             `json:"session_id"`
	Op        workflow.Op        `json:"op"`
	From      workflow.StageName `json:"from"`
	To        workflow.StageName `json:"to"`
	Snapshot  workflow.Snapshot  `json:"snapshot"`
	HasImage  bool               `json:"has_image"`
	At        time.Time          `json:"at"`
}

// ChatMessage is the payload published for a chat turn.
type ChatMessage struct {
	Instance  string    `json:"instance"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	TurnID    uint64    `json:"turn_id"`
	Role      string    `json:"role"`
	Mode      string    `json:"mode"`
	Text      string    `json:"text"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher turns observed events into NATS messages for one session.
type Publisher struct {
	conn      Conn
	userID    string
	sessionID string
	logger    *slog.Logger
}

// NewPublisher creates a publisher bound to a user session.
func NewPublisher(conn Conn, userID, sessionID string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, userID: userID, sessionID: sessionID, logger: logger}
}

// WorkflowSubject returns the subject a transition is published on.
func WorkflowSubject(instance string, to workflow.StageName) string {
	return strings.Join([]string{SubjectPrefix, "workflow", token(instance), strings.ToLower(string(to))}, ".")
}

// ChatSubject returns the subject chat turns are published on.
func ChatSubject(instance string) string {
	return strings.Join([]string{SubjectPrefix, "chat", token(instance)}, ".")
}

// Observe implements workflow.Observer.
func (p *Publisher) Observe(ev workflow.Event) {
	snap := ev.Snapshot
	hasImage := len(snap.Image) > 0
	snap.Image = nil

	p.publish(WorkflowSubject(ev.Instance, ev.To), WorkflowMessage{
		Instance:  ev.Instance,
		UserID:    p.userID,
		SessionID: p.sessionID,
		Op:        ev.Op,
		From:      ev.From,
		To:        ev.To,
		Snapshot:  snap,
		HasImage:  hasImage,
		At:        ev.At,
	})
}

// ObserveTurn implements workflow.TurnObserver.
func (p *Publisher) ObserveTurn(ev workflow.TurnEvent) {
	msg := ChatMessage{
		Instance:  ev.Instance,
		UserID:    p.userID,
		SessionID: p.sessionID,
		TurnID:    ev.Turn.ID,
		Role:      string(ev.Turn.Role),
		Mode:      string(ev.Mode.Mode),
		Text:      ev.Turn.Text,
		At:        ev.At,
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	p.publish(ChatSubject(ev.Instance), msg)
}

func (p *Publisher) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.logger.Warn("Failed to encode event", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish event", "subject", subject, "error", err)
	}
}

// token makes s safe for use as a single subject token.
func token(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n':
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return "_"
	}
	return s
}
