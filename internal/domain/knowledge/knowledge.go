package knowledge

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskRecord is one task outcome archived for later retrieval.
type TaskRecord struct {
	ID        uuid.UUID `json:"id"`
	TaskID    string    `json:"taskId"`
	AgentID   string    `json:"agentId"`
	Status    string    `json:"status"`
	Summary   string    `json:"summary,omitempty"`
	Payload   []byte    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Learning is a reusable piece of operational knowledge.
type Learning struct {
	ID        uuid.UUID `json:"id"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows store queries. Zero values mean no constraint.
type Filter struct {
	AgentID string
	Status  string
	Topic   string
	Limit   int
}

// Store is the long-term knowledge collaborator. All calls are best-effort:
// scheduling must keep working when the store is down, so callers wrap
// failures instead of propagating them.
type Store interface {
	StoreTaskHistory(ctx context.Context, rec *TaskRecord) (uuid.UUID, error)
	QuerySimilarSolutions(ctx context.Context, query string, k int, filter *Filter) ([]*TaskRecord, error)
	StoreLearning(ctx context.Context, l *Learning) (uuid.UUID, error)
	GetLearnings(ctx context.Context, filter *Filter) ([]*Learning, error)
}
