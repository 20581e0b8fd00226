package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/complyops/decision-engine/internal/model"
)

func TestClassify_MarkerBeatsKeywords(t *testing.T) {
	signals := Signals{
		Markers: []string{"Citatorio"},
		// Text suggests a notice, but the stamped marker outranks it.
		Text: "please be advised that this notice requires acknowledgment of receipt",
	}

	d := Classify(signals, &model.UnifiedRecord{})
	assert.Equal(t, model.InstrumentSummons, d.Instrument)
	assert.Equal(t, model.ActionAppearInCourt, d.Action)
	assert.Equal(t, "marker", d.Basis)
	assert.GreaterOrEqual(t, d.Confidence, 0.70)
}

func TestClassify_StructuralMarkerScoresAtLeastFloor(t *testing.T) {
	d := Classify(Signals{Markers: []string{"court-stamp"}}, &model.UnifiedRecord{})
	assert.Equal(t, model.InstrumentSummons, d.Instrument)
	assert.GreaterOrEqual(t, d.Confidence, 0.70)
}

func TestClassify_KeywordConfidenceNeverReachesMarkerBand(t *testing.T) {
	text := "you are hereby summoned to appear before the court; the hearing date is set and failure to appear will be sanctioned"

	d := Classify(Signals{Text: text}, &model.UnifiedRecord{})
	assert.Equal(t, model.InstrumentSummons, d.Instrument)
	assert.Equal(t, "keyword", d.Basis)
	assert.LessOrEqual(t, d.Confidence, 0.65)
	assert.Greater(t, d.Confidence, 0.45)
}

func TestClassify_SingleKeywordHitUsesBase(t *testing.T) {
	d := Classify(Signals{Text: "the parties are enjoined pending further order"}, &model.UnifiedRecord{})
	assert.Equal(t, model.InstrumentInjunction, d.Instrument)
	assert.InDelta(t, 0.45, d.Confidence, 1e-9)
}

func TestClassify_NoSignalIsUnknownNotError(t *testing.T) {
	d := Classify(Signals{Text: "quarterly invoice attached"}, &model.UnifiedRecord{})
	assert.True(t, d.Unclassified())
	assert.Equal(t, model.ActionManualTriage, d.Action)
	assert.Zero(t, d.Confidence)
}

func TestClassify_MergedInstrumentFieldCountsAsMarker(t *testing.T) {
	record := &model.UnifiedRecord{
		Fields: map[model.FieldKey]model.MergedField{
			model.FieldInstrument: {Value: "Resolucion", Present: true, Agreement: true, Confidence: 0.9},
		},
	}

	d := Classify(Signals{}, record)
	assert.Equal(t, model.InstrumentResolution, d.Instrument)
	assert.Equal(t, model.ActionSubmitResponse, d.Action)
	assert.Equal(t, "marker", d.Basis)
}

func TestClassify_ConflictedInstrumentFieldIgnored(t *testing.T) {
	record := &model.UnifiedRecord{
		Fields: map[model.FieldKey]model.MergedField{
			model.FieldInstrument: {Value: "Resolucion", Present: true, Agreement: false, Confidence: 0.4},
		},
	}

	d := Classify(Signals{}, record)
	assert.True(t, d.Unclassified())
}

func TestActionFor_CoversEveryInstrument(t *testing.T) {
	cases := map[model.InstrumentType]model.ComplianceAction{
		model.InstrumentResolution: model.ActionSubmitResponse,
		model.InstrumentSummons:    model.ActionAppearInCourt,
		model.InstrumentInjunction: model.ActionCeaseActivity,
		model.InstrumentSubpoena:   model.ActionProduceDocuments,
		model.InstrumentNotice:     model.ActionAcknowledge,
		model.InstrumentUnknown:    model.ActionManualTriage,
	}
	for instrument, want := range cases {
		assert.Equal(t, want, model.ActionFor(instrument), string(instrument))
	}
}
