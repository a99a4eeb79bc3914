package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agent-hub/agent-hub/internal/domain/knowledge"
)

const defaultQueryLimit = 20

// KnowledgeRepository implements knowledge.Store on Postgres.
type KnowledgeRepository struct {
	pool *pgxpool.Pool
}

func NewKnowledgeRepository(pool *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{pool: pool}
}

func (r *KnowledgeRepository) StoreTaskHistory(ctx context.Context, rec *knowledge.TaskRecord) (uuid.UUID, error) {
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO task_history (id, task_id, agent_id, status, summary, payload, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, id, rec.TaskID, rec.AgentID, rec.Status, rec.Summary, rec.Payload, createdAt)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *KnowledgeRepository) QuerySimilarSolutions(ctx context.Context, query string, k int, filter *knowledge.Filter) ([]*knowledge.TaskRecord, error) {
	if k <= 0 {
		k = defaultQueryLimit
	}
	sql := `
		SELECT id, task_id, agent_id, status, summary, payload, created_at
		FROM task_history
		WHERE (task_id ILIKE $1 OR summary ILIKE $1)`
	args := []interface{}{"%" + query + "%"}
	if filter != nil && filter.AgentID != "" {
		args = append(args, filter.AgentID)
		sql += " AND agent_id=$" + itoa(len(args))
	}
	if filter != nil && filter.Status != "" {
		args = append(args, filter.Status)
		sql += " AND status=$" + itoa(len(args))
	}
	args = append(args, k)
	sql += " ORDER BY created_at DESC LIMIT $" + itoa(len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []*knowledge.TaskRecord
	for rows.Next() {
		var rec knowledge.TaskRecord
		if err := rows.Scan(&rec.ID, &rec.TaskID, &rec.AgentID, &rec.Status, &rec.Summary, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (r *KnowledgeRepository) StoreLearning(ctx context.Context, l *knowledge.Learning) (uuid.UUID, error) {
	id := l.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := l.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO learnings (id, topic, content, tags, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, id, l.Topic, l.Content, l.Tags, createdAt)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *KnowledgeRepository) GetLearnings(ctx context.Context, filter *knowledge.Filter) ([]*knowledge.Learning, error) {
	sql := `
		SELECT id, topic, content, tags, created_at
		FROM learnings`
	args := []interface{}{}
	if filter != nil && filter.Topic != "" {
		args = append(args, filter.Topic)
		sql += " WHERE topic=$1"
	}
	limit := defaultQueryLimit
	if filter != nil && filter.Limit > 0 {
		limit = filter.Limit
	}
	args = append(args, limit)
	sql += " ORDER BY created_at DESC LIMIT $" + itoa(len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var learnings []*knowledge.Learning
	for rows.Next() {
		var l knowledge.Learning
		if err := rows.Scan(&l.ID, &l.Topic, &l.Content, &l.Tags, &l.CreatedAt); err != nil {
			return nil, err
		}
		learnings = append(learnings, &l)
	}
	return learnings, rows.Err()
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	buf := make([]byte, 0, 4)
	for i > 0 {
		buf = append([]byte{byte(i%10) + '0'}, buf...)
		i /= 10
	}
	return string(buf)
}
