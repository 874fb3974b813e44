package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"training-quiz-service/internal/app"
)

// ControllerRegistry is a Redis-aware implementation of
// app.ControllerRegistry.
// Notes:
//   - Controllers are process-local (they own goroutines and timers), so the
//     map stays in memory.
//   - Redis marks attempt liveness with a TTL key, which lets operators see
//     in-flight attempts across instances and could back sticky routing.
type ControllerRegistry struct {
	client      *redis.Client
	ttl         time.Duration
	mu          sync.RWMutex
	controllers map[string]*app.AttemptController
}

func NewControllerRegistry(client *redis.Client, ttl time.Duration) *ControllerRegistry {
	return &ControllerRegistry{
		client:      client,
		ttl:         ttl,
		controllers: make(map[string]*app.AttemptController),
	}
}

func (r *ControllerRegistry) Put(attemptID string, c *app.AttemptController) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers[attemptID] = c
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(attemptID), "1", r.ttl).Err()
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
	_ = r.client.Del(context.Background(), r.key(attemptID)).Err()
}

func (r *ControllerRegistry) key(attemptID string) string {
	return "attempt:active:" + attemptID
}
