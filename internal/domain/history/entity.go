package history

import (
	"time"

	"github.com/bryanwahyu/motionspec/internal/domain/analysis"
)

// RecordID identifier type
type RecordID string

// Record is one completed analysis stored for retrieval. The analysis core
// never touches persistence; handlers write records after a run completes.
type Record struct {
	ID         RecordID              `json:"id"`
	UserID     string                `json:"user_id"`
	Format     analysis.OutputFormat `json:"format"`
	Quality    analysis.QualityLevel `json:"quality"`
	VideoName  string                `json:"video_name,omitempty"`
	Overview   string                `json:"overview"`
	Code       string                `json:"code"`
	Notes      string                `json:"notes,omitempty"`
	Score      *int                  `json:"score,omitempty"` // verification score, agentic runs only
	Agentic    bool                  `json:"agentic"`
	DurationMS int64                 `json:"duration_ms"`
	CreatedAt  time.Time             `json:"created_at"`
}
