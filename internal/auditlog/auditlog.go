package auditlog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Entry is one audit record. The engine only emits entries; storage querying
// and retention belong to the audit log's owner.
type Entry struct {
	Category     string
	Action       string
	Actor        string
	ResourceType string
	ResourceID   string
	Detail       map[string]any
	CreatedAt    time.Time
}

// Recorder is the write-only audit sink invoked after a mutation commits.
// Implementations must be safe to call fire-and-forget: a failed record is
// logged and dropped, never bubbled into the request outcome.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

type pgRecorder struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPgRecorder writes audit entries to the audit_entries table.
func NewPgRecorder(pool *pgxpool.Pool, log *zap.Logger) Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &pgRecorder{pool: pool, log: log}
}

func (r *pgRecorder) Record(ctx context.Context, e Entry) {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_entries (category, action, actor, resource_type, resource_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.Category, e.Action, e.Actor, e.ResourceType, e.ResourceID, e.Detail, createdAt)
	if err != nil {
		r.log.Warn("audit entry dropped",
			zap.String("category", e.Category),
			zap.String("action", e.Action),
			zap.Error(err))
	}
}

// Nop discards every entry. Used in tests and by the seed command.
type Nop struct{}

func (Nop) Record(ctx context.Context, e Entry) {}
