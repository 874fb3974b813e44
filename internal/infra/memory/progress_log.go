package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ProgressLog is an in-process app.ProgressTracker: it records course
// completions and logs them. The real enrollment system lives outside this
// service; deployments integrate by swapping in their own tracker.
type ProgressLog struct {
	log *zap.Logger

	mu        sync.RWMutex
	completed map[string][]string // userID -> courseIDs
}

func NewProgressLog(log *zap.Logger) *ProgressLog {
	return &ProgressLog{
		log:       log,
		completed: make(map[string][]string),
	}
}

func (p *ProgressLog) MarkCourseComplete(_ context.Context, userID, courseID string) error {
	p.mu.Lock()
	p.completed[userID] = append(p.completed[userID], courseID)
	p.mu.Unlock()
	p.log.Info("course marked complete",
		zap.String("userId", userID),
		zap.String("courseId", courseID))
	return nil
}

// CompletedCourses returns the courses recorded for a user.
func (p *ProgressLog) CompletedCourses(userID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.completed[userID]))
	copy(out, p.completed[userID])
	return out
}
