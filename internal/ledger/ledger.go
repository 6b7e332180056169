// Package ledger provides the append-only conversation history shared by the
// classifier and the generation connector.
package ledger

import (
	"slices"
	"sync"

	"github.com/ashureev/growthdesk/internal/domain"
)

// Reader is the read-only view of a ledger.
type Reader interface {
	LastAssistant() (domain.Turn, bool)
	Snapshot() []domain.Turn
}

// Ledger is an ordered, append-only sequence of turns. Turns are never
// changed or removed once appended.
type Ledger struct {
	mu     sync.RWMutex
	turns  []domain.Turn
	nextID uint64
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{nextID: 1}
}

// Append records a new turn and returns it with its assigned ID.
func (l *Ledger) Append(role domain.Role, text string) domain.Turn {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := domain.Turn{ID: l.nextID, Role: role, Text: text}
	l.nextID++
	l.turns = append(l.turns, t)
	return t
}

// LastAssistant returns the most recent assistant turn.
func (l *Ledger) LastAssistant() (domain.Turn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := len(l.turns) - 1; i >= 0; i-- {
		if l.turns[i].IsAssistant() {
			return l.turns[i], true
		}
	}
	return domain.Turn{}, false
}

// Snapshot returns an ordered copy of all turns.
func (l *Ledger) Snapshot() []domain.Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.turns)
}

// Len returns the number of recorded turns.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Since returns the turns appended after the turn with the given ID.
func (l *Ledger) Since(id uint64) []domain.Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, _ := slices.BinarySearchFunc(l.turns, id+1, func(t domain.Turn, target uint64) int {
		switch {
		case t.ID < target:
			return -1
		case t.ID > target:
			return 1
		}
		return 0
	})
	return slices.Clone(l.turns[i:])
}

// Frozen is an immutable Reader over a fixed set of turns.
type Frozen []domain.Turn

// LastAssistant returns the most recent assistant turn.
func (f Frozen) LastAssistant() (domain.Turn, bool) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i].IsAssistant() {
			return f[i], true
		}
	}
	return domain.Turn{}, false
}

// Snapshot returns a copy of the turns.
func (f Frozen) Snapshot() []domain.Turn {
	return slices.Clone([]domain.Turn(f))
}
