// Package workflow drives the staged generation pipeline: business details
// become a draft post, the approved draft becomes an image prompt pair, and
// the prompt becomes an image. Each stage waits on a human gate.
package workflow

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/growthdesk/internal/generation"
)

// Workflow is one instance of the generation pipeline. All methods are safe
// for concurrent use; at most one generation call is in flight at a time.
type Workflow struct {
	id     string
	conn   generation.Connector
	logger *slog.Logger

	mu      sync.Mutex
	stage   Stage
	version uint64

	// emitMu keeps observer delivery in transition order.
	emitMu    sync.Mutex
	obsMu     sync.RWMutex
	observers []subscription
	nextObs   uint64
}

type subscription struct {
	id uint64
	o  Observer
}

// New creates a workflow in the INPUT state. An empty id gets a random one.
func New(id string, conn generation.Connector, logger *slog.Logger) *Workflow {
	if id == "" {
		id = uuid.NewString()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		id:        id,
		conn:      conn,
		logger:    logger.With("workflow", id),
		stage:     Input{},
	}
}

// ID returns the instance identifier.
func (w *Workflow) ID() string { return w.id }

// Stage returns the current state.
func (w *Workflow) Stage() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stage
}

// Snapshot returns the current presentation view.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return snapshotOf(w.id, w.version, w.stage)
}

// Subscribe registers an observer and returns a function that removes it.
// Observers are called in subscription order.
func (w *Workflow) Subscribe(o Observer) func() {
	w.obsMu.Lock()
	id := w.nextObs
	w.nextObs++
	w.observers = append(w.observers, subscription{id: id, o: o})
	w.obsMu.Unlock()

	return func() {
		w.obsMu.Lock()
		defer w.obsMu.Unlock()
		for i, s := range w.observers {
			if s.id == id {
				w.observers = append(w.observers[:i:i], w.observers[i+1:]...)
				return
			}
		}
	}
}

// SubmitInput drafts post content from business details. It is legal from
// INPUT, from CONTENT_REVIEW after RequestEdit, and after a failed draft.
func (w *Workflow) SubmitInput(ctx context.Context, details string) (Snapshot, error) {
	w.mu.Lock()
	if err := w.checkIdleLocked(); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}

	pending := ContentPending{}
	switch st := w.stage.(type) {
	case Input:
	case ContentReview:
		if !st.Editing {
			w.mu.Unlock()
			return Snapshot{}, invalidTransition(OpSubmitInput, st.Name())
		}
		pending.Previous = st.Draft
		pending.Revision = st.Revision
	case Failed:
		prev, ok := st.Pending.(ContentPending)
		if !ok {
			w.mu.Unlock()
			return Snapshot{}, invalidTransition(OpSubmitInput, st.Name())
		}
		pending.Previous = prev.Previous
		pending.Revision = prev.Revision
	default:
		w.mu.Unlock()
		return Snapshot{}, invalidTransition(OpSubmitInput, st.Name())
	}

	pending.Details = strings.TrimSpace(details)
	if pending.Details == "" {
		w.mu.Unlock()
		return Snapshot{}, &ValidationError{Field: "details", Message: "please enter some business details"}
	}

	return w.execute(ctx, OpSubmitInput, pending)
}

// ApproveContent passes the approval gate and requests the prompt pair.
func (w *Workflow) ApproveContent(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	if err := w.checkIdleLocked(); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}

	var pending PromptPending
	switch st := w.stage.(type) {
	case ContentReview:
		pending = PromptPending{Details: st.Details, Draft: st.Draft, Revision: st.Revision}
	case Failed:
		prev, ok := st.Pending.(PromptPending)
		if !ok {
			w.mu.Unlock()
			return Snapshot{}, invalidTransition(OpApprove, st.Name())
		}
		pending = prev
	default:
		w.mu.Unlock()
		return Snapshot{}, invalidTransition(OpApprove, st.Name())
	}

	return w.execute(ctx, OpApprove, pending)
}

// RejectContent discards the draft and everything downstream of it.
func (w *Workflow) RejectContent() (Snapshot, error) {
	w.mu.Lock()
	if err := w.checkIdleLocked(); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}

	switch st := w.stage.(type) {
	case ContentReview:
	case Failed:
		if _, ok := st.Pending.(PromptPending); !ok {
			w.mu.Unlock()
			return Snapshot{}, invalidTransition(OpReject, st.Name())
		}
	default:
		w.mu.Unlock()
		return Snapshot{}, invalidTransition(OpReject, st.Name())
	}

	ev := w.transitionLocked(OpReject, Input{Rejected: true})
	w.unlockAndEmit(ev)
	return ev.Snapshot, nil
}

// RequestEdit marks the draft under review for revision. The draft stays
// until the next SubmitInput.
func (w *Workflow) RequestEdit() (Snapshot, error) {
	w.mu.Lock()
	if err := w.checkIdleLocked(); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}

	st, ok := w.stage.(ContentReview)
	if !ok {
		from := w.stage.Name()
		w.mu.Unlock()
		return Snapshot{}, invalidTransition(OpEdit, from)
	}
	st.Editing = true

	ev := w.transitionLocked(OpEdit, st)
	w.unlockAndEmit(ev)
	return ev.Snapshot, nil
}

// GenerateImage renders the image for the reviewed prompt pair.
func (w *Workflow) GenerateImage(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	if err := w.checkIdleLocked(); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}

	st, ok := w.stage.(PromptReview)
	if !ok || st.Prompts.IsEmpty() {
		from := w.stage.Name()
		w.mu.Unlock()
		return Snapshot{}, invalidTransition(OpGenerateImage, from)
	}

	pending := ImagePending{Details: st.Details, Draft: st.Draft, Revision: st.Revision, Prompts: st.Prompts}
	return w.execute(ctx, OpGenerateImage, pending)
}

// Retry re-issues the call that failed, keeping upstream artifacts.
func (w *Workflow) Retry(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	if err := w.checkIdleLocked(); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}

	st, ok := w.stage.(Failed)
	if !ok || st.Pending == nil {
		from := w.stage.Name()
		w.mu.Unlock()
		return Snapshot{}, invalidTransition(OpRetry, from)
	}

	return w.execute(ctx, OpRetry, st.Pending)
}

// Reset discards every artifact and returns to INPUT.
func (w *Workflow) Reset() (Snapshot, error) {
	w.mu.Lock()
	if err := w.checkIdleLocked(); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}

	ev := w.transitionLocked(OpReset, Input{})
	w.unlockAndEmit(ev)
	return ev.Snapshot, nil
}

func (w *Workflow) checkIdleLocked() error {
	if IsPending(w.stage) {
		return ErrBusy
	}
	return nil
}

// execute enters pending, issues its call with w.mu released and records the
// outcome. Called with w.mu held; returns with it released.
func (w *Workflow) execute(ctx context.Context, op Op, pending Stage) (Snapshot, error) {
	ev := w.transitionLocked(op, pending)
	w.unlockAndEmit(ev)

	start := time.Now()
	next, err := w.call(context.WithoutCancel(ctx), pending)
	if err != nil {
		msg := generation.UserMessage(err)
		w.logger.Warn("generation failed",
			"op", op,
			"stage", pending.Name(),
			"duration", time.Since(start),
			"error", err)
		next = Failed{Pending: pending, Message: msg, Err: err}
	} else {
		w.logger.Debug("generation completed",
			"op", op,
			"stage", pending.Name(),
			"duration", time.Since(start))
	}

	w.mu.Lock()
	ev = w.transitionLocked(op, next)
	w.unlockAndEmit(ev)
	return ev.Snapshot, err
}

// call runs the generation call owned by a pending state and returns the
// state it resolves to.
func (w *Workflow) call(ctx context.Context, pending Stage) (Stage, error) {
	switch st := pending.(type) {
	case ContentPending:
		draft, err := w.conn.TextContent(ctx, st.Details)
		if err != nil {
			return nil, err
		}
		review := ContentReview{Details: st.Details, Draft: draft, Revision: st.Revision + 1}
		if st.Previous != "" {
			review.Changes = diffDrafts(st.Previous, draft)
		}
		return review, nil

	case PromptPending:
		prompts, err := w.conn.PromptPair(ctx, st.Draft)
		if err != nil {
			return nil, err
		}
		if prompts.IsEmpty() {
			return nil, &generation.MalformedResponse{Stage: generation.StagePrompt, Field: "imagePrompt"}
		}
		return PromptReview{Details: st.Details, Draft: st.Draft, Revision: st.Revision, Prompts: prompts}, nil

	case ImagePending:
		img, err := w.conn.Image(ctx, st.Prompts.ImagePrompt)
		if err != nil {
			return nil, err
		}
		if len(img) == 0 {
			return nil, &generation.MalformedResponse{Stage: generation.StageImage, Field: "image"}
		}
		return ImageReady{Details: st.Details, Draft: st.Draft, Revision: st.Revision, Prompts: st.Prompts, Image: img}, nil
	}
	return nil, invalidTransition(OpRetry, pending.Name())
}

func (w *Workflow) transitionLocked(op Op, next Stage) Event {
	from := w.stage.Name()
	w.stage = next
	w.version++
	return Event{
		Instance: w.id,
		Op:       op,
		From:     from,
		To:       next.Name(),
		Snapshot: snapshotOf(w.id, w.version, next),
		At:       time.Now(),
	}
}

// unlockAndEmit releases w.mu and delivers ev to observers.
func (w *Workflow) unlockAndEmit(ev Event) {
	w.emitMu.Lock()
	w.mu.Unlock()
	defer w.emitMu.Unlock()

	w.obsMu.RLock()
	observers := make([]Observer, 0, len(w.observers))
	for _, s := range w.observers {
		observers = append(observers, s.o)
	}
	w.obsMu.RUnlock()

	for _, o := range observers {
		o.Observe(ev)
	}
}
