// Package intent wraps the trained text classifier behind a small adapter:
// text in, calibrated (action, confidence) out. The adapter never retrains
// and holds no per-call mutable state, so concurrent reads are safe.
package intent

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/auroralab/aurora/internal/model"
)

// ErrModelNotLoaded means the model, vectorizer, or label map could not be
// loaded. Partial loading is not a supported state: the three artifacts are
// a single versioned unit.
var ErrModelNotLoaded = errors.New("intent: model artifacts not loaded")

// ErrEmptyInput means the input text was empty or whitespace-only. The
// underlying model is never invoked for such input.
var ErrEmptyInput = errors.New("intent: empty input text")

// InferenceError means the loaded model produced an unusable prediction.
type InferenceError struct {
	Reason string
}

func (e *InferenceError) Error() string {
	return "intent: inference failed: " + e.Reason
}

// Adapter classifies free text into one whitelisted action identifier with
// a calibrated confidence.
type Adapter struct {
	artifacts *Artifacts
}

// NewAdapter loads the artifact unit from dir. Any load failure is reported
// as ErrModelNotLoaded with detail attached.
func NewAdapter(dir string) (*Adapter, error) {
	artifacts, err := LoadArtifacts(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelNotLoaded, err)
	}
	return &Adapter{artifacts: artifacts}, nil
}

// NewAdapterFromArtifacts wraps already-loaded artifacts. Used by the
// trainer and by tests that build a model in memory.
func NewAdapterFromArtifacts(a *Artifacts) (*Adapter, error) {
	if a == nil {
		return nil, ErrModelNotLoaded
	}
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelNotLoaded, err)
	}
	return &Adapter{artifacts: a}, nil
}

// Classify predicts the most probable action for the text. Confidence is
// the maximum softmax posterior over the label distribution: a calibrated
// estimate of correctness, never a guarantee.
func (ad *Adapter) Classify(text string) (model.ClassificationResult, error) {
	if strings.TrimSpace(text) == "" {
		return model.ClassificationResult{}, ErrEmptyInput
	}

	features := ad.artifacts.Vectorizer.Transform(text)
	probs := ad.artifacts.Model.Posterior(features)

	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}

	id, ok := ad.artifacts.LabelMap[strconv.Itoa(best)]
	if !ok {
		return model.ClassificationResult{}, &InferenceError{
			Reason: fmt.Sprintf("class index %d is not in the label map", best),
		}
	}

	return model.NewClassificationResult(id, probs[best], text)
}

// Labels returns the set of action identifiers the model can predict.
func (ad *Adapter) Labels() []model.ActionID {
	ids := make([]model.ActionID, 0, len(ad.artifacts.LabelMap))
	for _, id := range ad.artifacts.LabelMap {
		ids = append(ids, id)
	}
	return ids
}

// Normalize applies the deterministic text normalization shared by training
// and inference: trim and lowercase. Identical input always produces
// identical features.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Tokenize splits normalized text into terms on any non-letter, non-digit
// rune. Shared by training and inference.
func Tokenize(text string) []string {
	return strings.FieldsFunc(Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Transform maps text to an L2-normalized TF-IDF vector over the fitted
// vocabulary. Out-of-vocabulary terms are ignored.
func (v *Vectorizer) Transform(text string) []float64 {
	features := make([]float64, len(v.Vocabulary))
	for _, term := range Tokenize(text) {
		if idx, ok := v.Vocabulary[term]; ok {
			features[idx] += v.IDF[idx]
		}
	}

	var norm float64
	for _, f := range features {
		norm += f * f
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range features {
			features[i] /= norm
		}
	}
	return features
}

// Posterior returns the softmax class distribution for a feature vector.
func (m *Model) Posterior(features []float64) []float64 {
	scores := make([]float64, m.Classes)
	for c := 0; c < m.Classes; c++ {
		s := m.Intercepts[c]
		for f, x := range features {
			if x != 0 {
				s += m.Weights[c][f] * x
			}
		}
		scores[c] = s
	}
	return softmax(scores)
}

// softmax converts raw scores to a probability distribution, shifting by
// the max score for numerical stability.
func softmax(scores []float64) []float64 {
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(s - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
