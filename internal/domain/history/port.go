package history

import "context"

// Repository port for persisting and querying completed analyses
type Repository interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, userID string, id RecordID) (*Record, error)
	Latest(ctx context.Context, userID string, limit int) ([]*Record, error)
}
