package intent

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/auroralab/aurora/internal/model"
)

// Example is one labeled training utterance.
type Example struct {
	Text   string
	Intent model.ActionID
}

// TrainOptions controls the gradient-descent fit.
type TrainOptions struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// DefaultTrainOptions returns settings that converge on small intent
// corpora without tuning.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Epochs:       300,
		LearningRate: 0.5,
		L2:           1e-4,
	}
}

// LoadCorpus reads labeled examples from a CSV file with a "text,intent"
// header. Rows with empty text or an invalid intent identifier fail the
// whole load.
func LoadCorpus(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()
	return ReadCorpus(f)
}

// ReadCorpus parses a labeled CSV corpus from a reader.
func ReadCorpus(r io.Reader) ([]Example, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read corpus header: %w", err)
	}
	if strings.TrimSpace(header[0]) != "text" || strings.TrimSpace(header[1]) != "intent" {
		return nil, fmt.Errorf("corpus must have 'text,intent' header, got %q,%q", header[0], header[1])
	}

	var examples []Example
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("corpus line %d: %w", line, err)
		}
		text := strings.TrimSpace(record[0])
		intent := model.ActionID(strings.TrimSpace(record[1]))
		if text == "" {
			return nil, fmt.Errorf("corpus line %d: empty text", line)
		}
		if !intent.Valid() {
			return nil, fmt.Errorf("corpus line %d: invalid intent identifier %q", line, record[1])
		}
		examples = append(examples, Example{Text: text, Intent: intent})
	}

	if len(examples) == 0 {
		return nil, fmt.Errorf("corpus contains no examples")
	}
	return examples, nil
}

// Train fits a TF-IDF vectorizer and a multinomial logistic regression
// classifier over the corpus. The fit is deterministic: vocabulary and
// class order are sorted, weights start at zero, and full-batch gradient
// descent visits examples in input order.
func Train(examples []Example, opts TrainOptions) (*Artifacts, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("no training examples")
	}
	if opts.Epochs <= 0 || opts.LearningRate <= 0 {
		return nil, fmt.Errorf("invalid training options: epochs=%d learning_rate=%v", opts.Epochs, opts.LearningRate)
	}

	vectorizer, err := fitVectorizer(examples)
	if err != nil {
		return nil, err
	}

	classes, labelMap := fitLabels(examples)
	if len(classes) < 2 {
		return nil, fmt.Errorf("corpus has %d distinct intents, need at least 2", len(classes))
	}

	nFeatures := len(vectorizer.Vocabulary)
	nClasses := len(classes)

	x := make([][]float64, len(examples))
	y := make([]int, len(examples))
	for i, ex := range examples {
		x[i] = vectorizer.Transform(ex.Text)
		y[i] = classes[ex.Intent]
	}

	m := Model{
		Classes:    nClasses,
		Features:   nFeatures,
		Weights:    make([][]float64, nClasses),
		Intercepts: make([]float64, nClasses),
	}
	for c := range m.Weights {
		m.Weights[c] = make([]float64, nFeatures)
	}

	// Full-batch gradient descent on the cross-entropy loss with a small
	// L2 penalty on the weights (not the intercepts).
	n := float64(len(examples))
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		gradW := make([][]float64, nClasses)
		for c := range gradW {
			gradW[c] = make([]float64, nFeatures)
		}
		gradB := make([]float64, nClasses)

		for i := range x {
			probs := m.Posterior(x[i])
			for c := 0; c < nClasses; c++ {
				diff := probs[c]
				if c == y[i] {
					diff -= 1
				}
				if diff == 0 {
					continue
				}
				for f, v := range x[i] {
					if v != 0 {
						gradW[c][f] += diff * v
					}
				}
				gradB[c] += diff
			}
		}

		for c := 0; c < nClasses; c++ {
			for f := 0; f < nFeatures; f++ {
				m.Weights[c][f] -= opts.LearningRate * (gradW[c][f]/n + opts.L2*m.Weights[c][f])
			}
			m.Intercepts[c] -= opts.LearningRate * gradB[c] / n
		}
	}

	return &Artifacts{
		Vectorizer: *vectorizer,
		Model:      m,
		LabelMap:   labelMap,
	}, nil
}

// fitVectorizer builds the sorted vocabulary and smoothed IDF weights
// (ln((1+n)/(1+df)) + 1) over the corpus.
func fitVectorizer(examples []Example) (*Vectorizer, error) {
	docFreq := make(map[string]int)
	for _, ex := range examples {
		seen := make(map[string]bool)
		for _, term := range Tokenize(ex.Text) {
			if !seen[term] {
				seen[term] = true
				docFreq[term]++
			}
		}
	}
	if len(docFreq) == 0 {
		return nil, fmt.Errorf("corpus produced an empty vocabulary")
	}

	terms := make([]string, 0, len(docFreq))
	for term := range docFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	v := &Vectorizer{
		Vocabulary: make(map[string]int, len(terms)),
		IDF:        make([]float64, len(terms)),
	}
	n := float64(len(examples))
	for i, term := range terms {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
	return v, nil
}

// fitLabels assigns class indices to intents in sorted order and builds the
// index-to-ActionID label map persisted alongside the model.
func fitLabels(examples []Example) (map[model.ActionID]int, map[string]model.ActionID) {
	set := make(map[model.ActionID]bool)
	for _, ex := range examples {
		set[ex.Intent] = true
	}
	intents := make([]model.ActionID, 0, len(set))
	for id := range set {
		intents = append(intents, id)
	}
	sort.Slice(intents, func(i, j int) bool { return intents[i] < intents[j] })

	classes := make(map[model.ActionID]int, len(intents))
	labelMap := make(map[string]model.ActionID, len(intents))
	for i, id := range intents {
		classes[id] = i
		labelMap[strconv.Itoa(i)] = id
	}
	return classes, labelMap
}
