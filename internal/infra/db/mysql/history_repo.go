package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/bryanwahyu/motionspec/internal/domain/analysis"
	domain "github.com/bryanwahyu/motionspec/internal/domain/history"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Save insert/update a completed-analysis record
func (r *HistoryRepository) Save(ctx context.Context, rec *domain.Record) error {
	const q = `
INSERT INTO analysis_history
(id, user_id, format, quality, video_name, overview, code, notes, score, agentic, duration_ms, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 overview=VALUES(overview), code=VALUES(code), notes=VALUES(notes),
 score=VALUES(score), duration_ms=VALUES(duration_ms);
`
	user := userKey(rec.UserID)
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var score sql.NullInt64
	if rec.Score != nil {
		score = sql.NullInt64{Int64: int64(*rec.Score), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, q,
		rec.ID, user, rec.Format, rec.Quality, rec.VideoName,
		rec.Overview, rec.Code, rec.Notes, score, rec.Agentic,
		rec.DurationMS, createdAt,
	)
	return err
}

// Get by ID + UserID
func (r *HistoryRepository) Get(ctx context.Context, userID string, id domain.RecordID) (*domain.Record, error) {
	const q = `
SELECT id, user_id, format, quality, video_name, overview, code, notes, score, agentic, duration_ms, created_at
FROM analysis_history
WHERE user_id=? AND id=? LIMIT 1;
`
	return scanRecord(r.db.QueryRowContext(ctx, q, userID, id))
}

// Latest records per user
func (r *HistoryRepository) Latest(ctx context.Context, userID string, limit int) ([]*domain.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, format, quality, video_name, overview, code, notes, score, agentic, duration_ms, created_at
FROM analysis_history
WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var format, quality string
	var score sql.NullInt64
	if err := row.Scan(
		&rec.ID, &rec.UserID, &format, &quality, &rec.VideoName,
		&rec.Overview, &rec.Code, &rec.Notes, &score, &rec.Agentic,
		&rec.DurationMS, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.Format = analysis.OutputFormat(format)
	rec.Quality = analysis.QualityLevel(quality)
	if score.Valid {
		n := int(score.Int64)
		rec.Score = &n
	}
	return &rec, nil
}
