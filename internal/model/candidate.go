package model

import "time"

// SourceType identifies the extraction path a field candidate came from.
type SourceType string

const (
	SourceXML    SourceType = "xml"
	SourcePDF    SourceType = "pdf"
	SourceDOCX   SourceType = "docx"
	SourceOCR    SourceType = "ocr"
	SourceManual SourceType = "manual"
)

// Valid reports whether the source type is one of the known extraction paths.
func (s SourceType) Valid() bool {
	switch s {
	case SourceXML, SourcePDF, SourceDOCX, SourceOCR, SourceManual:
		return true
	}
	return false
}

// FieldKey is the closed set of metadata fields the engine reconciles.
// Keeping this closed (rather than an open string-keyed bag) keeps merge
// logic exhaustive and testable.
type FieldKey string

const (
	FieldCaseNumber  FieldKey = "case_number"
	FieldSubjectName FieldKey = "subject_name"
	FieldSubjectID   FieldKey = "subject_id"
	FieldIssueDate   FieldKey = "issue_date"
	FieldAuthority   FieldKey = "authority"
	FieldInstrument  FieldKey = "instrument"
	FieldAmount      FieldKey = "amount"
	FieldDueDays     FieldKey = "due_days"
)

// KnownFieldKeys lists every field the merge layer handles.
var KnownFieldKeys = []FieldKey{
	FieldCaseNumber,
	FieldSubjectName,
	FieldSubjectID,
	FieldIssueDate,
	FieldAuthority,
	FieldInstrument,
	FieldAmount,
	FieldDueDays,
}

// Valid reports whether the key belongs to the closed field set.
func (k FieldKey) Valid() bool {
	for _, known := range KnownFieldKeys {
		if k == known {
			return true
		}
	}
	return false
}

// FieldCandidate is one extracted value for one field from one source.
type FieldCandidate struct {
	Field      FieldKey   `json:"field"`
	Value      string     `json:"value"`
	Source     SourceType `json:"source"`
	Confidence float64    `json:"confidence"`
	DocumentID string     `json:"document_id"`
}

// MergedField is the reconciled view of a single field across sources.
type MergedField struct {
	Value      string       `json:"value"`
	Present    bool         `json:"present"`
	Confidence float64      `json:"confidence"`
	Agreement  bool         `json:"agreement"`
	Sources    []SourceType `json:"sources"`
	// Conflicts holds the losing candidates when sources disagreed, so
	// reviewers can see exactly what was overridden and by how much.
	Conflicts []FieldCandidate `json:"conflicts,omitempty"`
}

// UnifiedRecord is the merged, confidence-scored record for one file.
// It is recomputed per processing pass; disagreement is always reflected
// in the per-field confidence, never masked.
type UnifiedRecord struct {
	FileID    string                   `json:"file_id"`
	Fields    map[FieldKey]MergedField `json:"fields"`
	CreatedAt time.Time                `json:"created_at"`
}

// Field returns the merged field for key, or a zero MergedField if absent.
func (r *UnifiedRecord) Field(key FieldKey) MergedField {
	if r == nil || r.Fields == nil {
		return MergedField{Agreement: true}
	}
	if f, ok := r.Fields[key]; ok {
		return f
	}
	return MergedField{Agreement: true}
}
