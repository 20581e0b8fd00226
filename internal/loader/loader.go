// Package loader reads extraction batches from JSON, CSV, and XLSX files
// and converts them into processing inputs.
package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/complyops/decision-engine/internal/engine"
)

// LoadBatches reads one or more processing inputs from path, dispatching on
// the file extension.
func LoadBatches(path string) ([]engine.Input, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadJSON(path)
	case ".csv":
		return loadCSV(path)
	case ".xlsx":
		return loadXLSX(path)
	default:
		return nil, eris.Errorf("loader: unsupported file type %q", filepath.Ext(path))
	}
}

// batchFile is the JSON document shape: either a single input or a list.
type batchFile struct {
	Inputs []engine.Input `json:"inputs"`
}

// loadJSON accepts three shapes: {"inputs": [...]}, a bare array, or a
// single input object.
func loadJSON(path string) ([]engine.Input, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read %s", path)
	}

	var wrapped batchFile
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Inputs) > 0 {
		return validate(wrapped.Inputs)
	}

	var list []engine.Input
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return validate(list)
	}

	var single engine.Input
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, eris.Wrapf(err, "loader: parse %s", path)
	}
	return validate([]engine.Input{single})
}

func validate(inputs []engine.Input) ([]engine.Input, error) {
	for i, in := range inputs {
		if in.FileID == "" {
			return nil, eris.Errorf("loader: input %d is missing file_id", i)
		}
	}
	return inputs, nil
}
