package model

// InstrumentType is the closed set of legal instruments the classifier can
// produce. Unknown is a valid, non-error outcome.
type InstrumentType string

const (
	InstrumentResolution InstrumentType = "resolution"
	InstrumentSummons    InstrumentType = "summons"
	InstrumentInjunction InstrumentType = "injunction"
	InstrumentSubpoena   InstrumentType = "subpoena"
	InstrumentNotice     InstrumentType = "notice"
	InstrumentUnknown    InstrumentType = "unknown"
)

// ComplianceAction is the action a classified instrument obliges.
type ComplianceAction string

const (
	ActionSubmitResponse   ComplianceAction = "submit_response"
	ActionAppearInCourt    ComplianceAction = "appear_in_court"
	ActionCeaseActivity    ComplianceAction = "cease_activity"
	ActionProduceDocuments ComplianceAction = "produce_documents"
	ActionAcknowledge      ComplianceAction = "acknowledge"
	ActionManualTriage     ComplianceAction = "manual_triage"
)

// ActionFor maps each instrument type to its compliance action.
func ActionFor(t InstrumentType) ComplianceAction {
	switch t {
	case InstrumentResolution:
		return ActionSubmitResponse
	case InstrumentSummons:
		return ActionAppearInCourt
	case InstrumentInjunction:
		return ActionCeaseActivity
	case InstrumentSubpoena:
		return ActionProduceDocuments
	case InstrumentNotice:
		return ActionAcknowledge
	default:
		return ActionManualTriage
	}
}

// LegalDirective is the classified instrument plus its mapped action.
type LegalDirective struct {
	Instrument InstrumentType   `json:"instrument"`
	Action     ComplianceAction `json:"action"`
	Confidence float64          `json:"confidence"`
	// Basis records whether the classification came from a structural
	// marker or free-text keyword inference.
	Basis string `json:"basis,omitempty"`
}

// Unclassified reports whether the directive landed on Unknown.
func (d LegalDirective) Unclassified() bool {
	return d.Instrument == InstrumentUnknown
}
