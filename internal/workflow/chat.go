package workflow

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/growthdesk/internal/classifier"
	"github.com/ashureev/growthdesk/internal/domain"
	"github.com/ashureev/growthdesk/internal/generation"
	"github.com/ashureev/growthdesk/internal/ledger"
	"github.com/ashureev/growthdesk/internal/profile"
)

// Greeting seeds every new conversation.
const Greeting = "👋 Hi! I'm your AI Business Growth Assistant. I help small business owners like you grow with simple, realistic actions you can do yourself. What would you like help with today?"

// ErrorTurnPrefix starts the assistant turn recorded for a failed reply.
const ErrorTurnPrefix = "❌ Sorry, I encountered an error: "

// TurnEvent is emitted for every turn appended by Chat.
type TurnEvent struct {
	Instance string
	Turn     domain.Turn
	Mode     domain.TaskMode
	Err      error
	At       time.Time
}

// TurnObserver receives chat turns in append order.
type TurnObserver interface {
	ObserveTurn(TurnEvent)
}

// ChatResult is the outcome of one Send.
type ChatResult struct {
	Mode  domain.TaskMode
	User  domain.Turn
	Reply domain.Turn
}

// Chat is the conversational path: each message is classified against the
// history before it and answered with the current business profile.
type Chat struct {
	id         string
	ledger     *ledger.Ledger
	classifier *classifier.Classifier
	profile    profile.Source
	conn       generation.Connector
	logger     *slog.Logger

	mu       sync.Mutex
	sending  bool
	lastMode domain.TaskMode

	obsMu     sync.RWMutex
	observers []TurnObserver
}

// NewChat creates a conversation seeded with the greeting. cls and src may be
// nil, selecting the default classifier and profile defaults.
func NewChat(id string, conn generation.Connector, cls *classifier.Classifier, src profile.Source, logger *slog.Logger) *Chat {
	if id == "" {
		id = uuid.NewString()
	}
	if cls == nil {
		cls = classifier.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chat{
		id:         id,
		ledger:     ledger.New(),
		classifier: cls,
		profile:    src,
		conn:       conn,
		logger:     logger.With("chat", id),
		lastMode:   domain.TaskModeFor(domain.ModeGeneral),
	}
	c.ledger.Append(domain.RoleAssistant, Greeting)
	return c
}

// ID returns the instance identifier.
func (c *Chat) ID() string { return c.id }

// History returns the read-only ledger view.
func (c *Chat) History() ledger.Reader { return c.ledger }

// Turns returns a copy of every turn so far.
func (c *Chat) Turns() []domain.Turn { return c.ledger.Snapshot() }

// Mode returns the task mode of the most recent send.
func (c *Chat) Mode() domain.TaskMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMode
}

// Busy reports whether a send is in flight.
func (c *Chat) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// Subscribe registers a turn observer.
func (c *Chat) Subscribe(o TurnObserver) {
	c.obsMu.Lock()
	c.observers = append(c.observers, o)
	c.obsMu.Unlock()
}

// Send records message, asks the generator for a reply and records that.
// A generation failure is recorded as an error turn and returned.
func (c *Chat) Send(ctx context.Context, message string) (ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ChatResult{}, &ValidationError{Field: "message", Message: "message cannot be empty"}
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return ChatResult{}, ErrBusy
	}
	c.sending = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
	}()

	prior := ledger.Frozen(c.ledger.Snapshot())
	mode := c.classifier.Classify(message, prior)

	c.mu.Lock()
	c.lastMode = mode
	c.mu.Unlock()

	userTurn := c.ledger.Append(domain.RoleUser, message)
	c.emit(TurnEvent{Instance: c.id, Turn: userTurn, Mode: mode, At: time.Now()})

	business, err := profile.Load(ctx, c.profile)
	if err != nil {
		c.logger.Warn("using default business profile", "error", err)
	}

	start := time.Now()
	text, err := c.conn.ChatReply(context.WithoutCancel(ctx), generation.ChatRequest{
		Message:  message,
		Business: business,
		Mode:     mode,
		History:  prior,
	})
	if err != nil {
		c.logger.Warn("chat reply failed",
			"mode", mode.Mode,
			"duration", time.Since(start),
			"error", err)
		reply := c.ledger.Append(domain.RoleAssistant, ErrorTurnPrefix+generation.UserMessage(err))
		c.emit(TurnEvent{Instance: c.id, Turn: reply, Mode: mode, Err: err, At: time.Now()})
		return ChatResult{Mode: mode, User: userTurn, Reply: reply}, err
	}

	reply := c.ledger.Append(domain.RoleAssistant, text)
	c.emit(TurnEvent{Instance: c.id, Turn: reply, Mode: mode, At: time.Now()})
	c.logger.Debug("chat reply completed", "mode", mode.Mode, "duration", time.Since(start))
	return ChatResult{Mode: mode, User: userTurn, Reply: reply}, nil
}

func (c *Chat) emit(ev TurnEvent) {
	c.obsMu.RLock()
	observers := append([]TurnObserver(nil), c.observers...)
	c.obsMu.RUnlock()
	for _, o := range observers {
		o.ObserveTurn(ev)
	}
}
