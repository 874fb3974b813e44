package memory

import (
	"sync"

	"training-quiz-service/internal/app"
)

// ControllerRegistry is an in-memory implementation of
// app.ControllerRegistry keyed by attempt id.
type ControllerRegistry struct {
	mu          sync.RWMutex
	controllers map[string]*app.AttemptController
}

func NewControllerRegistry() *ControllerRegistry {
	return &ControllerRegistry{controllers: make(map[string]*app.AttemptController)}
}

func (r *ControllerRegistry) Put(attemptID string, c *app.AttemptController) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers[attemptID] = c
}

func (r *ControllerRegistry) Get(attemptID string) (*app.AttemptController, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controllers[attemptID]
	return c, ok
}

func (r *ControllerRegistry) Remove(attemptID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, attemptID)
}
