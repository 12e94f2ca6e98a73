package session

import (
	"sync"
	"time"

	"github.com/feral-file/ff-minter/internal/adapter"
	"github.com/feral-file/ff-minter/internal/domain"
)

// Action is a user action protected by the guard
type Action string

const (
	ActionGenerate Action = "generate"
	ActionMint     Action = "mint"
)

// Guard enforces a debounce window and a single in-flight invocation per action
type Guard struct {
	mu       sync.Mutex
	clock    adapter.Clock
	debounce map[Action]time.Duration
	last     map[Action]time.Time
	busy     map[Action]bool
}

// NewGuard creates a guard with the given per-action debounce windows
func NewGuard(clock adapter.Clock, debounce map[Action]time.Duration) *Guard {
	return &Guard{
		clock:    clock,
		debounce: debounce,
		last:     make(map[Action]time.Time),
		busy:     make(map[Action]bool),
	}
}

// Acquire claims the action. The returned release must be called on every exit path;
// calling it more than once is a no-op.
func (g *Guard) Acquire(action Action) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.busy[action] {
		return nil, domain.ErrActionInProgress
	}

	now := g.clock.Now()
	if last, ok := g.last[action]; ok && now.Sub(last) < g.debounce[action] {
		return nil, domain.ErrDebounced
	}

	g.last[action] = now
	g.busy[action] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			g.busy[action] = false
		})
	}, nil
}

// Busy reports whether any action is in flight
func (g *Guard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, b := range g.busy {
		if b {
			return true
		}
	}
	return false
}
