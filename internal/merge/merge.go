// Package merge combines per-source field candidates into a unified,
// confidence-scored record. All functions are pure: no I/O, no clock, no
// global state beyond the zap logger.
package merge

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/complyops/decision-engine/internal/model"
)

// Config tunes the disagreement penalty. The exact constant is a tunable:
// more or stronger disagreement always lowers confidence, the factor only
// scales how fast.
type Config struct {
	// DisagreementFactor scales the penalty applied to the winning
	// candidate's confidence when sources conflict. Must be in (0, 1].
	DisagreementFactor float64
}

// DefaultConfig returns the tuning used when no override is configured.
func DefaultConfig() Config {
	return Config{DisagreementFactor: 0.5}
}

// Warning records a malformed candidate that was excluded from the merge.
// Exclusion is not an abort: the rest of the batch still merges.
type Warning struct {
	Candidate model.FieldCandidate
	Reason    string
}

// Merge reconciles all candidates for one file into a UnifiedRecord.
// Candidates are grouped by field; each group merges independently.
func Merge(fileID string, candidates []model.FieldCandidate, cfg Config) (model.UnifiedRecord, []Warning) {
	if cfg.DisagreementFactor <= 0 || cfg.DisagreementFactor > 1 {
		cfg = DefaultConfig()
	}

	var warnings []Warning
	byField := make(map[model.FieldKey][]model.FieldCandidate)
	for _, c := range candidates {
		if !c.Source.Valid() {
			warnings = append(warnings, Warning{Candidate: c, Reason: "missing or unknown source type"})
			continue
		}
		byField[c.Field] = append(byField[c.Field], c)
	}

	if len(warnings) > 0 {
		zap.L().Warn("merge: excluded malformed candidates",
			zap.String("file_id", fileID),
			zap.Int("excluded", len(warnings)),
			zap.Int("total", len(candidates)),
		)
	}

	record := model.UnifiedRecord{
		FileID:    fileID,
		Fields:    make(map[model.FieldKey]model.MergedField, len(byField)),
		CreatedAt: time.Now().UTC(),
	}
	for field, group := range byField {
		record.Fields[field] = MergeField(group, cfg)
	}
	return record, warnings
}

// MergeField reconciles the candidates for a single field.
//
// All candidates agreeing under normalized equality: value = that value,
// confidence = max source confidence, agreement = true. Disagreement: the
// highest-confidence candidate wins, agreement = false, and its confidence
// is reduced by a penalty that grows with the number and confidence-weight
// of the conflicting candidates. Zero candidates is a vacuous agreement,
// not an error.
func MergeField(candidates []model.FieldCandidate, cfg Config) model.MergedField {
	if len(candidates) == 0 {
		return model.MergedField{Agreement: true}
	}

	// Deterministic winner selection: sort by confidence desc, then source
	// and document id so equal confidences never produce arbitrary order.
	sorted := make([]model.FieldCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		if sorted[i].Source != sorted[j].Source {
			return sorted[i].Source < sorted[j].Source
		}
		return sorted[i].DocumentID < sorted[j].DocumentID
	})

	winner := sorted[0]
	winnerNorm := NormalizeValue(winner.Value)

	var conflicts []model.FieldCandidate
	var conflictWeight float64
	sources := make([]model.SourceType, 0, len(sorted))
	for _, c := range sorted {
		sources = append(sources, c.Source)
		if NormalizeValue(c.Value) != winnerNorm {
			conflicts = append(conflicts, c)
			conflictWeight += clamp01(c.Confidence)
		}
	}

	if len(conflicts) == 0 {
		return model.MergedField{
			Value:      winner.Value,
			Present:    true,
			Confidence: clamp01(winner.Confidence),
			Agreement:  true,
			Sources:    sources,
		}
	}

	// Penalty grows monotonically with total conflicting confidence and
	// is strictly positive whenever any conflict exists, so the merged
	// confidence is always below the best single source.
	penalty := cfg.DisagreementFactor * conflictWeight / (1 + conflictWeight)
	confidence := clamp01(winner.Confidence) * (1 - penalty)
	if confidence >= winner.Confidence {
		confidence = clamp01(winner.Confidence) * 0.99
	}

	return model.MergedField{
		Value:      winner.Value,
		Present:    true,
		Confidence: clamp01(confidence),
		Agreement:  false,
		Sources:    sources,
		Conflicts:  conflicts,
	}
}

// NormalizeValue applies the normalized-equality rules: unicode NFC, case
// fold, collapsed whitespace.
func NormalizeValue(v string) string {
	v = norm.NFC.String(v)
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.Join(strings.Fields(v), " ")
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
