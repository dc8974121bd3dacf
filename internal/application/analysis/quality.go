package analysis

import (
	"fmt"

	domain "github.com/bryanwahyu/motionspec/internal/domain/analysis"
)

// Quality tables: every model/parameter choice is a function of
// (quality tier, pass number) through this data, never branched ad hoc.
// Adding a tier is a data change. The table is injected into the Service so
// tests substitute fixtures.

const (
	modelLight  = "gemini-2.5-flash"
	modelStrong = "gemini-2.5-pro"
)

// Profile is one quality tier's configuration bundle.
type Profile struct {
	// Single drives the non-agentic single-call path.
	Single domain.GenerateParams

	// Passes drives the agentic pipeline, indexed by pass (0-based).
	// Reasoning-heavy passes (2, 3) get larger token budgets and lower
	// temperature than the structural passes (1, 4); the premium tier also
	// upgrades them to the stronger model.
	Passes [4]domain.GenerateParams

	// UpgradeTo names the tier the blocking single-call path may retry at,
	// once, after a transport failure. Empty disables the retry.
	UpgradeTo domain.QualityLevel
}

// Table maps a quality tier to its profile.
type Table map[domain.QualityLevel]Profile

// Profile looks up a tier. Tiers are validated at the boundary, so a miss
// here is a programming error.
func (t Table) Profile(q domain.QualityLevel) (Profile, error) {
	p, ok := t[q]
	if !ok {
		return Profile{}, fmt.Errorf("%w: no quality profile for %q", domain.ErrInvalidInput, q)
	}
	return p, nil
}

// DefaultTable returns the shipped tier configuration.
func DefaultTable() Table {
	return Table{
		domain.QualityFast: {
			Single:    domain.GenerateParams{Model: modelLight, MaxOutputTokens: 8192, Temperature: 0.4},
			UpgradeTo: domain.QualityPro,
			Passes: [4]domain.GenerateParams{
				{Model: modelLight, MaxOutputTokens: 8192, Temperature: 0.5},
				{Model: modelLight, MaxOutputTokens: 12288, Temperature: 0.2},
				{Model: modelLight, MaxOutputTokens: 12288, Temperature: 0.2},
				{Model: modelLight, MaxOutputTokens: 8192, Temperature: 0.4},
			},
		},
		domain.QualityPro: {
			Single: domain.GenerateParams{Model: modelLight, MaxOutputTokens: 16384, Temperature: 0.3, ThinkingBudget: 4096},
			Passes: [4]domain.GenerateParams{
				{Model: modelLight, MaxOutputTokens: 8192, Temperature: 0.5},
				{Model: modelLight, MaxOutputTokens: 16384, Temperature: 0.2, ThinkingBudget: 4096},
				{Model: modelLight, MaxOutputTokens: 16384, Temperature: 0.2, ThinkingBudget: 4096},
				{Model: modelLight, MaxOutputTokens: 8192, Temperature: 0.4},
			},
		},
		domain.QualityMax: {
			Single: domain.GenerateParams{Model: modelStrong, MaxOutputTokens: 24576, Temperature: 0.2, ThinkingBudget: 8192},
			Passes: [4]domain.GenerateParams{
				{Model: modelLight, MaxOutputTokens: 8192, Temperature: 0.5},
				{Model: modelStrong, MaxOutputTokens: 24576, Temperature: 0.15, ThinkingBudget: 8192},
				{Model: modelStrong, MaxOutputTokens: 24576, Temperature: 0.15, ThinkingBudget: 8192},
				{Model: modelLight, MaxOutputTokens: 8192, Temperature: 0.4},
			},
		},
	}
}
