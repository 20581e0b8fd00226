package model

import "time"

// RawPersonRecord is a person mention lifted from a single document before
// identity resolution.
type RawPersonRecord struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	DocumentID string `json:"document_id"`
}

// VariantKind classifies how an identifier or name variant was linked to a
// canonical identity.
type VariantKind string

const (
	VariantExact VariantKind = "exact"
	// VariantNearIdentifier covers bounded edit distance and OCR-confusable
	// substitutions against the canonical identifier.
	VariantNearIdentifier VariantKind = "near_identifier"
	VariantFuzzyName      VariantKind = "fuzzy_name"
)

// IdentityVariant is an alternate or OCR-confused form linked to a canonical
// identity. The canonical identifier is never replaced by a variant.
type IdentityVariant struct {
	Value      string      `json:"value"`
	Kind       VariantKind `json:"kind"`
	DocumentID string      `json:"document_id"`
	Penalty    float64     `json:"penalty"`
}

// IdentityState tracks lifecycle without deletion. Identities are only
// soft-stated: a merged identity points at its survivor.
type IdentityState string

const (
	IdentityActive IdentityState = "active"
	IdentityMerged IdentityState = "merged"
)

// PersonIdentity is a deduplicated canonical person record for a case.
type PersonIdentity struct {
	CanonicalID string            `json:"canonical_id"`
	FileID      string            `json:"file_id"`
	Identifier  string            `json:"identifier"`
	Names       []string          `json:"names"`
	Variants    []IdentityVariant `json:"variants,omitempty"`
	Records     []RawPersonRecord `json:"records"`
	Confidence  float64           `json:"confidence"`
	State       IdentityState     `json:"state"`
	MergedInto  string            `json:"merged_into,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// HasName reports whether the identity already carries the given name.
func (p *PersonIdentity) HasName(name string) bool {
	for _, n := range p.Names {
		if n == name {
			return true
		}
	}
	return false
}

// IdentityResult is the output of one resolution pass. A cancelled pass is
// still a successful partial result: Identities holds everything resolved
// before the cancellation signal was acted on.
type IdentityResult struct {
	Identities []PersonIdentity `json:"identities"`
	// Confidence is the minimum merge confidence across identities, 1.0
	// when every merge was an exact identifier match.
	Confidence float64 `json:"confidence"`
	Partial    bool    `json:"partial"`
	// MissingDataRatio = unresolved / total input records.
	MissingDataRatio float64 `json:"missing_data_ratio"`
}
