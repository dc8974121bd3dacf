package analysis

import "context"

// NoopLedger accepts every spend. Deployed when billing is handled upstream
// or not at all.
type NoopLedger struct{}

func (NoopLedger) Spend(ctx context.Context, userID string, units int) error { return nil }
