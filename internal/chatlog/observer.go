package chatlog

import (
	"strings"
	"time"

	"github.com/ashureev/growthdesk/internal/workflow"
)

const timeLayout = time.RFC3339Nano

// Channels written by the observers.
const (
	ChannelChat     = "chat_http"
	ChannelWorkflow = "workflow"
)

// ChatObserver logs every chat turn of one session.
type ChatObserver struct {
	Log       Logger
	UserID    string
	SessionID string
}

// ObserveTurn implements workflow.TurnObserver.
func (o ChatObserver) ObserveTurn(ev workflow.TurnEvent) {
	direction, eventType := "outbound", "chat_user_message"
	if ev.Turn.IsAssistant() {
		direction, eventType = "inbound", "chat_assistant_message"
		if ev.Err != nil {
			eventType = "chat_error"
		}
	}
	meta := map[string]any{
		"instance": ev.Instance,
		"turn_id":  ev.Turn.ID,
		"mode":     string(ev.Mode.Mode),
	}
	if ev.Err != nil {
		meta["error"] = ev.Err.Error()
	}
	o.Log.Log(Event{
		Timestamp:  ev.At.UTC().Format(timeLayout),
		UserID:     o.UserID,
		SessionID:  o.SessionID,
		Channel:    ChannelChat,
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: ev.Turn.Text,
		Meta:       meta,
	})
}

// WorkflowObserver logs workflow transitions of one session.
type WorkflowObserver struct {
	Log       Logger
	UserID    string
	SessionID string
}

// Observe implements workflow.Observer.
func (o WorkflowObserver) Observe(ev workflow.Event) {
	meta := map[string]any{
		"instance": ev.Instance,
		"op":       string(ev.Op),
		"from":     string(ev.From),
		"to":       string(ev.To),
		"version":  ev.Snapshot.Version,
	}
	if ev.Snapshot.Error != "" {
		meta["error"] = ev.Snapshot.Error
		meta["failed_stage"] = string(ev.Snapshot.FailedStage)
	}

	var content string
	switch ev.To {
	case workflow.StageContentPending:
		content = ev.Snapshot.Details
	case workflow.StageContentReview, workflow.StagePromptPending:
		content = ev.Snapshot.Draft
	case workflow.StagePromptReview:
		if ev.Snapshot.Prompts != nil {
			content = ev.Snapshot.Prompts.ImagePrompt
		}
	}

	o.Log.Log(Event{
		Timestamp:  ev.At.UTC().Format(timeLayout),
		UserID:     o.UserID,
		SessionID:  o.SessionID,
		Channel:    ChannelWorkflow,
		Direction:  "internal",
		EventType:  "workflow_" + strings.ToLower(string(ev.To)),
		ContentRaw: content,
		Meta:       meta,
	})
}
