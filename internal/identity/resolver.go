// Package identity deduplicates person records across documents, reconciling
// identifier variants introduced by OCR and inconsistent source formats.
package identity

import (
	"context"
	"time"

	"github.com/agext/levenshtein"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/complyops/decision-engine/internal/model"
)

// TieBreaker picks the preferred identity when a name-only fuzzy match hits
// more than one candidate with the same similarity. It must be
// deterministic; the default prefers the identity whose earliest
// contributing record has the smallest source document id.
type TieBreaker func(a, b *model.PersonIdentity) bool

// EarliestSourceTieBreak is the default comparator policy.
func EarliestSourceTieBreak(a, b *model.PersonIdentity) bool {
	return firstDocumentID(a) < firstDocumentID(b)
}

func firstDocumentID(p *model.PersonIdentity) string {
	if len(p.Records) == 0 {
		return ""
	}
	return p.Records[0].DocumentID
}

// Config tunes the matching policy.
type Config struct {
	// MaxEditDistance bounds the near-identifier match (pass 2).
	MaxEditDistance int
	// NearIdentifierPenalty is subtracted from full confidence when a
	// record merges as an identifier variant rather than an exact match.
	NearIdentifierPenalty float64
	// FuzzyNamePenalty is subtracted when the merge signal was name-only.
	FuzzyNamePenalty float64
	// NameSimilarityThreshold is the minimum token-set similarity for a
	// name-only merge.
	NameSimilarityThreshold float64
	// TieBreak resolves multi-candidate fuzzy name matches. Nil uses
	// EarliestSourceTieBreak.
	TieBreak TieBreaker
}

// DefaultConfig returns the matching tuning used when no override is set.
func DefaultConfig() Config {
	return Config{
		MaxEditDistance:         2,
		NearIdentifierPenalty:   0.15,
		FuzzyNamePenalty:        0.30,
		NameSimilarityThreshold: 0.60,
	}
}

// Resolver performs the 3-pass per-record matching: exact identifier, near
// identifier, name-only fuzzy.
type Resolver struct {
	cfg Config
}

// NewResolver creates a Resolver, filling config zero values with defaults.
func NewResolver(cfg Config) *Resolver {
	def := DefaultConfig()
	if cfg.MaxEditDistance <= 0 {
		cfg.MaxEditDistance = def.MaxEditDistance
	}
	if cfg.NearIdentifierPenalty <= 0 {
		cfg.NearIdentifierPenalty = def.NearIdentifierPenalty
	}
	if cfg.FuzzyNamePenalty <= 0 {
		cfg.FuzzyNamePenalty = def.FuzzyNamePenalty
	}
	if cfg.NameSimilarityThreshold <= 0 {
		cfg.NameSimilarityThreshold = def.NameSimilarityThreshold
	}
	if cfg.TieBreak == nil {
		cfg.TieBreak = EarliestSourceTieBreak
	}
	return &Resolver{cfg: cfg}
}

// Resolve deduplicates records into canonical identities for one file.
// existing holds the identities already known for the case; matches against
// them are merges, never duplicates (idempotent upsert). Cancellation
// mid-batch returns the subset resolved so far as a successful partial
// result, not a failure.
func (r *Resolver) Resolve(ctx context.Context, fileID string, records []model.RawPersonRecord, existing []model.PersonIdentity) model.IdentityResult {
	log := zap.L().With(zap.String("component", "identity_resolver"), zap.String("file_id", fileID))

	identities := make([]*model.PersonIdentity, 0, len(existing)+len(records))
	for i := range existing {
		cp := existing[i]
		identities = append(identities, &cp)
	}

	minConfidence := 1.0
	resolved := 0

	for _, rec := range records {
		if ctx.Err() != nil {
			log.Info("resolution cancelled mid-batch",
				zap.Int("resolved", resolved),
				zap.Int("total", len(records)),
			)
			break
		}

		conf := r.resolveRecord(fileID, rec, &identities)
		if conf < minConfidence {
			minConfidence = conf
		}
		resolved++
	}

	result := model.IdentityResult{
		Identities: make([]model.PersonIdentity, 0, len(identities)),
		Confidence: minConfidence,
	}
	for _, p := range identities {
		result.Identities = append(result.Identities, *p)
	}
	if total := len(records); resolved < total {
		result.Partial = true
		result.MissingDataRatio = float64(total-resolved) / float64(total)
	}
	return result
}

// resolveRecord merges one record into the identity set and returns the
// confidence of the merge signal (1.0 exact, lower for variants).
func (r *Resolver) resolveRecord(fileID string, rec model.RawPersonRecord, identities *[]*model.PersonIdentity) float64 {
	normID := NormalizeIdentifier(rec.Identifier)

	// Pass 1: exact identifier match — unconditional merge.
	if normID != "" {
		for _, p := range *identities {
			if NormalizeIdentifier(p.Identifier) == normID {
				mergeRecord(p, rec, 1.0)
				return 1.0
			}
		}

		// Pass 2: near-identifier match — variant link with penalty. The
		// canonical identifier is never overwritten.
		for _, p := range *identities {
			canonical := NormalizeIdentifier(p.Identifier)
			if canonical == "" {
				continue
			}
			if !r.nearIdentifier(normID, canonical) {
				continue
			}
			conf := 1.0 - r.cfg.NearIdentifierPenalty
			p.Variants = append(p.Variants, model.IdentityVariant{
				Value:      rec.Identifier,
				Kind:       model.VariantNearIdentifier,
				DocumentID: rec.DocumentID,
				Penalty:    r.cfg.NearIdentifierPenalty,
			})
			mergeRecord(p, rec, conf)
			return conf
		}
	}

	// Pass 3: name-only fuzzy match — lowest-confidence merge signal.
	if best := r.bestNameMatch(rec.Name, *identities); best != nil {
		conf := 1.0 - r.cfg.FuzzyNamePenalty
		best.Variants = append(best.Variants, model.IdentityVariant{
			Value:      rec.Name,
			Kind:       model.VariantFuzzyName,
			DocumentID: rec.DocumentID,
			Penalty:    r.cfg.FuzzyNamePenalty,
		})
		mergeRecord(best, rec, conf)
		return conf
	}

	// New canonical identity. The id is derived from the case and the
	// normalized identifier (or name), so re-resolving identical inputs
	// yields identical canonical ids.
	key := normID
	if key == "" {
		key = NormalizeName(rec.Name)
	}
	p := &model.PersonIdentity{
		CanonicalID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(fileID+"|person|"+key)).String(),
		FileID:      fileID,
		Identifier:  rec.Identifier,
		Confidence:  1.0,
		State:       model.IdentityActive,
		CreatedAt:   time.Now().UTC(),
	}
	mergeRecord(p, rec, 1.0)
	*identities = append(*identities, p)
	return 1.0
}

// bestNameMatch returns the identity with the highest token-set similarity
// above the threshold, applying the tie-break comparator on equal scores.
func (r *Resolver) bestNameMatch(name string, identities []*model.PersonIdentity) *model.PersonIdentity {
	if NormalizeName(name) == "" {
		return nil
	}

	var best *model.PersonIdentity
	bestSim := 0.0
	for _, p := range identities {
		sim := 0.0
		for _, known := range p.Names {
			if s := TokenSetSimilarity(name, known); s > sim {
				sim = s
			}
		}
		if sim < r.cfg.NameSimilarityThreshold {
			continue
		}
		switch {
		case sim > bestSim:
			best, bestSim = p, sim
		case sim == bestSim && best != nil && r.cfg.TieBreak(p, best):
			best = p
		}
	}
	return best
}

// nearIdentifier reports whether a and b are within the configured edit
// distance or differ only by known OCR-confusable substitutions.
func (r *Resolver) nearIdentifier(a, b string) bool {
	if ocrConfusable(a, b) {
		return true
	}
	return levenshtein.Distance(a, b, nil) <= r.cfg.MaxEditDistance
}

// ocrPairs lists character substitutions OCR engines commonly confuse.
var ocrPairs = map[[2]byte]bool{
	{'0', 'O'}: true, {'O', '0'}: true,
	{'1', 'I'}: true, {'I', '1'}: true,
	{'1', 'L'}: true, {'L', '1'}: true,
	{'5', 'S'}: true, {'S', '5'}: true,
	{'8', 'B'}: true, {'B', '8'}: true,
	{'3', 'B'}: true, {'B', '3'}: true,
	{'2', 'Z'}: true, {'Z', '2'}: true,
	{'6', 'G'}: true, {'G', '6'}: true,
}

// ocrConfusable reports whether every differing position between two
// equal-length identifiers is a known OCR confusion pair.
func ocrConfusable(a, b string) bool {
	if len(a) != len(b) || a == b {
		return false
	}
	for i := 0; i < len(a); i++ {
		if a[i] == b[i] {
			continue
		}
		if !ocrPairs[[2]byte{a[i], b[i]}] {
			return false
		}
	}
	return true
}

// mergeRecord folds a raw record into an identity and lowers its confidence
// to the weakest merge signal seen so far.
func mergeRecord(p *model.PersonIdentity, rec model.RawPersonRecord, confidence float64) {
	if rec.Name != "" && !p.HasName(rec.Name) {
		p.Names = append(p.Names, rec.Name)
	}
	for _, existing := range p.Records {
		if existing == rec {
			return
		}
	}
	p.Records = append(p.Records, rec)
	if confidence < p.Confidence {
		p.Confidence = confidence
	}
}
