package loader

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/complyops/decision-engine/internal/engine"
	"github.com/complyops/decision-engine/internal/model"
)

// candidateColumns is the expected CSV header. Column order is fixed;
// extraction exporters write this layout.
var candidateColumns = []string{"file_id", "field", "value", "source", "confidence", "document_id"}

// loadCSV reads candidate rows and groups them into one input per file id.
// Rows for the same file may appear in any order.
func loadCSV(path string) ([]engine.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read header %s", path)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read rows %s", path)
	}
	return groupRows(rows)
}

func checkHeader(header []string) error {
	if len(header) < len(candidateColumns) {
		return eris.Errorf("loader: expected %d columns, got %d", len(candidateColumns), len(header))
	}
	for i, want := range candidateColumns {
		if strings.TrimSpace(strings.ToLower(header[i])) != want {
			return eris.Errorf("loader: column %d is %q, want %q", i, header[i], want)
		}
	}
	return nil
}

// groupRows builds candidates per file id. A bad confidence value fails the
// load; a missing file id fails the load. Source validity is not checked
// here: the merge layer excludes unknown sources with a warning instead.
func groupRows(rows [][]string) ([]engine.Input, error) {
	byFile := make(map[string][]model.FieldCandidate)
	for i, row := range rows {
		if len(row) < len(candidateColumns) {
			return nil, eris.Errorf("loader: row %d has %d columns, want %d", i+1, len(row), len(candidateColumns))
		}
		fileID := strings.TrimSpace(row[0])
		if fileID == "" {
			return nil, eris.Errorf("loader: row %d is missing file_id", i+1)
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: row %d confidence", i+1)
		}
		byFile[fileID] = append(byFile[fileID], model.FieldCandidate{
			Field:      model.FieldKey(strings.TrimSpace(row[1])),
			Value:      row[2],
			Source:     model.SourceType(strings.TrimSpace(row[3])),
			Confidence: conf,
			DocumentID: strings.TrimSpace(row[5]),
		})
	}

	fileIDs := make([]string, 0, len(byFile))
	for id := range byFile {
		fileIDs = append(fileIDs, id)
	}
	sort.Strings(fileIDs)

	inputs := make([]engine.Input, 0, len(fileIDs))
	for _, id := range fileIDs {
		inputs = append(inputs, engine.Input{FileID: id, Candidates: byFile[id]})
	}
	return inputs, nil
}
