package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/voxnote/voxnote/internal/model"
	appErr "github.com/voxnote/voxnote/internal/pkg/errors"
)

// SequenceRepo persists the sessionId -> documentName mapping. A mapping is
// written at most once; later writers observe the first writer's value.
type SequenceRepo struct {
	db *sql.DB
}

func NewSequenceRepo(db *sql.DB) *SequenceRepo {
	return &SequenceRepo{db: db}
}

func (r *SequenceRepo) Get(ctx context.Context, sessionID string) (*model.SequenceMapping, error) {
	where := map[string]interface{}{
		"session_id": sessionID,
	}
	sqlStr, args, err := builder.BuildSelect("sequence_mapping", where, []string{"session_id", "document_name", "ctime"})
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	var mapping model.SequenceMapping
	if err := rows.Scan(&mapping.SessionID, &mapping.DocumentName, &mapping.Ctime); err != nil {
		return nil, err
	}
	return &mapping, nil
}

// ListByDocumentPrefix returns every mapping whose document name starts
// with the given date prefix, assigned or not yet written to a collection.
func (r *SequenceRepo) ListByDocumentPrefix(ctx context.Context, prefix string) ([]*model.SequenceMapping, error) {
	where := map[string]interface{}{
		"document_name like": prefix + "_%",
	}
	sqlStr, args, err := builder.BuildSelect("sequence_mapping", where, []string{"session_id", "document_name", "ctime"})
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var mappings []*model.SequenceMapping
	for rows.Next() {
		mapping := &model.SequenceMapping{}
		if err := rows.Scan(&mapping.SessionID, &mapping.DocumentName, &mapping.Ctime); err != nil {
			return nil, err
		}
		mappings = append(mappings, mapping)
	}
	return mappings, rows.Err()
}

// InsertIfAbsent atomically records the mapping unless one already exists.
// Returns true when this call created the mapping.
func (r *SequenceRepo) InsertIfAbsent(ctx context.Context, sessionID, documentName string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO sequence_mapping (session_id, document_name, ctime) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		sessionID, documentName, time.Now().UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
