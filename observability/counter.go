package observability

import (
	"context"
	"maps"
	"sync"
)

// CounterObserver tallies events by type and level. The pipeline's monitor
// mode wraps the logging observer with a counter so a run can report how many
// tasks started, completed, and failed without parsing log output.
type CounterObserver struct {
	mu       sync.Mutex
	byType   map[EventType]int
	warnings int
	errors   int
}

// NewCounterObserver creates an empty CounterObserver.
func NewCounterObserver() *CounterObserver {
	return &CounterObserver{
		byType: make(map[EventType]int),
	}
}

func (c *CounterObserver) OnEvent(ctx context.Context, event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byType[event.Type]++
	switch {
	case event.Level >= LevelError:
		c.errors++
	case event.Level >= LevelWarning:
		c.warnings++
	}
}

// Count returns the number of events recorded for the given type.
func (c *CounterObserver) Count(t EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.byType[t]
}

// Counts returns a copy of the per-type tallies.
func (c *CounterObserver) Counts() map[EventType]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return maps.Clone(c.byType)
}

// Warnings returns the number of warning-level events recorded.
func (c *CounterObserver) Warnings() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.warnings
}

// Errors returns the number of error-level events recorded.
func (c *CounterObserver) Errors() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.errors
}
