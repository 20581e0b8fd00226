// Package directive maps document signals to a legal instrument type and
// its compliance action.
package directive

import (
	"strings"

	"go.uber.org/zap"

	"github.com/complyops/decision-engine/internal/model"
)

// Confidence bands. Marker-based classifications always score at or above
// markerFloor; keyword inference never exceeds keywordCeiling, so the two
// paths can never produce ambiguous overlapping bands.
const (
	markerFloor    = 0.70
	keywordCeiling = 0.65
	keywordBase    = 0.45
	keywordStep    = 0.05
)

// Signals carries the classification inputs for one document: structural or
// stamped markers found by the parsers, and the free text body.
type Signals struct {
	Markers []string `json:"markers,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// instrument markers: structural/stamped indicators, matched exactly after
// normalization. These outrank any keyword inference.
var markerTable = map[string]struct {
	instrument model.InstrumentType
	confidence float64
}{
	"resolucion":        {model.InstrumentResolution, 0.95},
	"resolution":        {model.InstrumentResolution, 0.95},
	"citatorio":         {model.InstrumentSummons, 0.95},
	"summons":           {model.InstrumentSummons, 0.95},
	"injunction":        {model.InstrumentInjunction, 0.92},
	"medida cautelar":   {model.InstrumentInjunction, 0.90},
	"subpoena":          {model.InstrumentSubpoena, 0.95},
	"requerimiento":     {model.InstrumentSubpoena, 0.85},
	"notice":            {model.InstrumentNotice, 0.90},
	"notificacion":      {model.InstrumentNotice, 0.88},
	"official-seal":     {model.InstrumentResolution, 0.80},
	"court-stamp":       {model.InstrumentSummons, 0.80},
	"registry-barcode":  {model.InstrumentNotice, 0.75},
	"tribunal-header":   {model.InstrumentSummons, 0.78},
	"authority-header":  {model.InstrumentResolution, 0.75},
	"service-affidavit": {model.InstrumentSummons, 0.82},
}

// keywordTable drives the free-text inference path.
var keywordTable = map[model.InstrumentType][]string{
	model.InstrumentResolution: {"resolved that", "it is hereby resolved", "administrative resolution", "final determination"},
	model.InstrumentSummons:    {"you are hereby summoned", "appear before", "hearing date", "failure to appear"},
	model.InstrumentInjunction: {"restrained from", "enjoined", "cease and desist", "preliminary relief"},
	model.InstrumentSubpoena:   {"produce the following", "documents requested", "compelled to produce", "duces tecum"},
	model.InstrumentNotice:     {"please be advised", "this notice", "notified that", "acknowledgment of receipt"},
}

// Classify maps signals plus the merged metadata record to a directive.
// No marker and no keyword match yields Unknown with confidence 0 — a valid
// outcome eligible for manual review, not a failure.
func Classify(signals Signals, record *model.UnifiedRecord) model.LegalDirective {
	if d, ok := classifyByMarker(signals, record); ok {
		return d
	}
	if d, ok := classifyByKeywords(signals.Text); ok {
		return d
	}

	zap.L().Debug("directive: no marker or keyword match, classifying unknown")
	return model.LegalDirective{
		Instrument: model.InstrumentUnknown,
		Action:     model.ActionFor(model.InstrumentUnknown),
		Confidence: 0,
	}
}

// classifyByMarker checks explicit instrument markers, including the merged
// instrument field when extraction already produced one.
func classifyByMarker(signals Signals, record *model.UnifiedRecord) (model.LegalDirective, bool) {
	markers := signals.Markers
	if f := record.Field(model.FieldInstrument); f.Present && f.Agreement {
		markers = append(markers, f.Value)
	}

	best := model.LegalDirective{}
	found := false
	for _, m := range markers {
		entry, ok := markerTable[normalizeMarker(m)]
		if !ok {
			continue
		}
		conf := entry.confidence
		if conf < markerFloor {
			conf = markerFloor
		}
		if !found || conf > best.Confidence {
			best = model.LegalDirective{
				Instrument: entry.instrument,
				Action:     model.ActionFor(entry.instrument),
				Confidence: conf,
				Basis:      "marker",
			}
			found = true
		}
	}
	return best, found
}

// classifyByKeywords infers the instrument from free text. Confidence grows
// with the number of matching phrases but is capped strictly below the
// marker floor.
func classifyByKeywords(text string) (model.LegalDirective, bool) {
	if strings.TrimSpace(text) == "" {
		return model.LegalDirective{}, false
	}
	lower := strings.ToLower(text)

	bestHits := 0
	var bestInstrument model.InstrumentType
	for _, instrument := range []model.InstrumentType{
		model.InstrumentResolution,
		model.InstrumentSummons,
		model.InstrumentInjunction,
		model.InstrumentSubpoena,
		model.InstrumentNotice,
	} {
		hits := 0
		for _, kw := range keywordTable[instrument] {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			bestInstrument = instrument
		}
	}

	if bestHits == 0 {
		return model.LegalDirective{}, false
	}

	conf := keywordBase + keywordStep*float64(bestHits-1)
	if conf > keywordCeiling {
		conf = keywordCeiling
	}
	return model.LegalDirective{
		Instrument: bestInstrument,
		Action:     model.ActionFor(bestInstrument),
		Confidence: conf,
		Basis:      "keyword",
	}, true
}

func normalizeMarker(m string) string {
	return strings.ToLower(strings.TrimSpace(m))
}
