package intent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/auroralab/aurora/internal/model"
)

// Artifact file names inside a model directory. The three files are one
// versioned unit: the vectorizer built at training time, the classifier
// weights, and the class-index-to-ActionID map.
const (
	VectorizerFile = "vectorizer.json"
	ModelFile      = "model.json"
	LabelMapFile   = "label_map.json"
)

// Vectorizer holds the TF-IDF vocabulary and inverse document frequencies
// fitted at training time. Inference only ever transforms; it never refits.
type Vectorizer struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
}

// Model holds multinomial logistic regression parameters:
// Weights[class][feature] and one intercept per class.
type Model struct {
	Classes    int         `json:"classes"`
	Features   int         `json:"features"`
	Weights    [][]float64 `json:"weights"`
	Intercepts []float64   `json:"intercepts"`
}

// Artifacts is the full trained unit kept in memory by the adapter.
type Artifacts struct {
	Vectorizer Vectorizer
	Model      Model
	LabelMap   map[string]model.ActionID
}

// validate checks cross-artifact consistency so that a partially-written or
// mismatched artifact set is rejected as a whole.
func (a *Artifacts) validate() error {
	if len(a.Vectorizer.Vocabulary) == 0 {
		return fmt.Errorf("vectorizer has empty vocabulary")
	}
	if len(a.Vectorizer.IDF) != len(a.Vectorizer.Vocabulary) {
		return fmt.Errorf("vectorizer idf length %d does not match vocabulary size %d",
			len(a.Vectorizer.IDF), len(a.Vectorizer.Vocabulary))
	}
	if a.Model.Classes < 2 {
		return fmt.Errorf("model has %d classes, need at least 2", a.Model.Classes)
	}
	if a.Model.Features != len(a.Vectorizer.Vocabulary) {
		return fmt.Errorf("model feature count %d does not match vocabulary size %d",
			a.Model.Features, len(a.Vectorizer.Vocabulary))
	}
	if len(a.Model.Weights) != a.Model.Classes || len(a.Model.Intercepts) != a.Model.Classes {
		return fmt.Errorf("model weight/intercept shape does not match class count %d", a.Model.Classes)
	}
	for i, row := range a.Model.Weights {
		if len(row) != a.Model.Features {
			return fmt.Errorf("model weight row %d has %d features, want %d", i, len(row), a.Model.Features)
		}
	}
	if len(a.LabelMap) != a.Model.Classes {
		return fmt.Errorf("label map has %d entries, model has %d classes", len(a.LabelMap), a.Model.Classes)
	}
	for idx, id := range a.LabelMap {
		if !id.Valid() {
			return fmt.Errorf("label map entry %s maps to invalid action id %q", idx, id)
		}
	}
	return nil
}

// LoadArtifacts reads the three artifact files from dir. Any missing or
// malformed file fails the load as a unit.
func LoadArtifacts(dir string) (*Artifacts, error) {
	var a Artifacts
	if err := readJSON(filepath.Join(dir, VectorizerFile), &a.Vectorizer); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, ModelFile), &a.Model); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, LabelMapFile), &a.LabelMap); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("inconsistent artifacts in %s: %w", dir, err)
	}
	return &a, nil
}

// Save writes the three artifact files to dir, each atomically
// (tmp + rename), creating the directory if needed.
func (a *Artifacts) Save(dir string) error {
	if err := a.validate(); err != nil {
		return fmt.Errorf("refusing to save inconsistent artifacts: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(dir, VectorizerFile), a.Vectorizer); err != nil {
		return err
	}
	if err := writeJSONAtomic(filepath.Join(dir, ModelFile), a.Model); err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(dir, LabelMapFile), a.LabelMap)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}
