package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/bryanwahyu/motionspec/internal/domain/analysis"
	domain "github.com/bryanwahyu/motionspec/internal/domain/history"
)

// Connect opens a postgres pool for the analysis history store, sized the
// same way as the mysql side.
func Connect(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if maxOpen <= 0 {
		maxOpen = 25
	}
	if maxIdle <= 0 {
		maxIdle = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Save(ctx context.Context, rec *domain.Record) error {
	const q = `
INSERT INTO analysis_history
(id, user_id, format, quality, video_name, overview, code, notes, score, agentic, duration_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
 overview=EXCLUDED.overview, code=EXCLUDED.code, notes=EXCLUDED.notes,
 score=EXCLUDED.score, duration_ms=EXCLUDED.duration_ms;
`
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var score sql.NullInt64
	if rec.Score != nil {
		score = sql.NullInt64{Int64: int64(*rec.Score), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.UserID, rec.Format, rec.Quality, rec.VideoName,
		rec.Overview, rec.Code, rec.Notes, score, rec.Agentic,
		rec.DurationMS, createdAt,
	)
	return err
}

func (r *HistoryRepository) Get(ctx context.Context, userID string, id domain.RecordID) (*domain.Record, error) {
	const q = `
SELECT id, user_id, format, quality, video_name, overview, code, notes, score, agentic, duration_ms, created_at
FROM analysis_history
WHERE user_id=$1 AND id=$2 LIMIT 1;
`
	return scanRecord(r.db.QueryRowContext(ctx, q, userID, id))
}

func (r *HistoryRepository) Latest(ctx context.Context, userID string, limit int) ([]*domain.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, format, quality, video_name, overview, code, notes, score, agentic, duration_ms, created_at
FROM analysis_history
WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2;
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
