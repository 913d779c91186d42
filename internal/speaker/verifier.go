// Package speaker implements the optional voice gate: MFCC feature
// extraction, additive enrollment of a single identity, and verification of
// audio samples against the accumulated profile. The gate is advisory
// security. It reduces the chance of acting on an unauthorized voice; it is
// never the sole authorization mechanism for destructive actions.
package speaker

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/auroralab/aurora/internal/model"
)

// ErrModelNotTrained means verification was requested before any profile
// was enrolled. The gate fails closed: no profile, no authorization.
var ErrModelNotTrained = errors.New("speaker: no enrolled profile, model not trained")

// ErrTooFewSamples means an enrollment batch was below the minimum.
var ErrTooFewSamples = errors.New("speaker: too few enrollment samples")

// FeatureError means MFCC extraction failed for a sample.
type FeatureError struct {
	Index int
	Err   error
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("speaker: feature extraction failed for sample %d: %v", e.Index, e.Err)
}

func (e *FeatureError) Unwrap() error { return e.Err }

// Config controls verification behavior. Threshold is configuration, not a
// model parameter: it can be tuned without retraining.
type Config struct {
	Threshold        float64
	MinEnrollSamples int
	NumCoefficients  int
}

// DefaultConfig mirrors the usual front-end settings: 13 coefficients,
// 0.5 acceptance threshold, 3 samples minimum per enrollment.
func DefaultConfig() Config {
	return Config{
		Threshold:        0.5,
		MinEnrollSamples: 3,
		NumCoefficients:  DefaultNumCoefficients,
	}
}

// Verifier scores audio samples against the enrolled voice profile.
// Enrollment is a serialized write (single-writer discipline); concurrent
// verifications read an immutable model snapshot.
type Verifier struct {
	store     *ProfileStore
	extractor *Extractor
	cfg       Config

	writeMu  sync.Mutex   // serializes enrollments
	modelMu  sync.RWMutex // guards the snapshot pointer
	snapshot *BoundaryModel
}

// NewVerifier creates a verifier over an opened profile store, loading the
// current model snapshot if one was previously persisted.
func NewVerifier(store *ProfileStore, cfg Config) (*Verifier, error) {
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("speaker: threshold %v outside [0,1]", cfg.Threshold)
	}
	if cfg.MinEnrollSamples < 1 {
		cfg.MinEnrollSamples = DefaultConfig().MinEnrollSamples
	}

	snapshot, err := store.Model()
	if err != nil {
		return nil, err
	}

	return &Verifier{
		store:     store,
		extractor: NewExtractor(cfg.NumCoefficients),
		cfg:       cfg,
		snapshot:  snapshot,
	}, nil
}

// Trained reports whether a usable profile exists.
func (v *Verifier) Trained() bool {
	v.modelMu.RLock()
	defer v.modelMu.RUnlock()
	return v.snapshot != nil
}

// EnrolledSamples returns how many voice samples have been accumulated for
// the enrolled identity.
func (v *Verifier) EnrolledSamples() (int, error) {
	return v.store.SampleCount(LabelEnrolled)
}

// Enroll extracts features from the samples, appends them to the
// accumulated profile, and retrains the discriminative boundary over the
// union of everything enrolled so far. Strictly additive: prior samples are
// never discarded. The updated samples and model land in one transaction,
// so a failed enrollment leaves the prior profile intact.
func (v *Verifier) Enroll(samples []Sample) error {
	return v.enroll(samples, LabelEnrolled)
}

// EnrollBackground adds negative-class samples (other voices, room noise)
// used as the contrast class when training the boundary.
func (v *Verifier) EnrollBackground(samples []Sample) error {
	return v.enroll(samples, LabelBackground)
}

func (v *Verifier) enroll(samples []Sample, label int) error {
	if len(samples) < v.cfg.MinEnrollSamples {
		return fmt.Errorf("%w: got %d, need at least %d", ErrTooFewSamples, len(samples), v.cfg.MinEnrollSamples)
	}

	features := make([][]float64, len(samples))
	labels := make([]int, len(samples))
	for i, s := range samples {
		vec, err := v.extractor.Features(s)
		if err != nil {
			return &FeatureError{Index: i, Err: err}
		}
		features[i] = vec
		labels[i] = label
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	existing, existingLabels, err := v.store.Samples()
	if err != nil {
		return err
	}

	allFeatures := append(existing, features...)
	allLabels := append(existingLabels, labels...)

	m, err := trainBoundary(allFeatures, allLabels, v.extractor.FeatureDim())
	if err != nil {
		return err
	}

	if err := v.store.Commit(features, labels, m); err != nil {
		return err
	}

	v.modelMu.Lock()
	v.snapshot = m
	v.modelMu.Unlock()
	return nil
}

// Verify extracts features from the sample, normalizes them through the
// persisted scaler, and scores them against the trained boundary.
// Authorized means score >= the configured threshold.
func (v *Verifier) Verify(sample Sample) (model.SpeakerVerdict, error) {
	v.modelMu.RLock()
	snapshot := v.snapshot
	v.modelMu.RUnlock()

	if snapshot == nil {
		return model.SpeakerVerdict{}, ErrModelNotTrained
	}

	vec, err := v.extractor.Features(sample)
	if err != nil {
		return model.SpeakerVerdict{}, &FeatureError{Err: err}
	}
	if len(vec) != snapshot.Dim {
		return model.SpeakerVerdict{}, &FeatureError{
			Err: fmt.Errorf("feature dimension %d does not match trained model dimension %d", len(vec), snapshot.Dim),
		}
	}

	score := snapshot.Score(vec)
	return model.SpeakerVerdict{
		Authorized: score >= v.cfg.Threshold,
		Score:      score,
	}, nil
}

// Score normalizes a feature vector through the scaler and applies the
// logistic boundary, returning the probability of the enrolled identity.
func (m *BoundaryModel) Score(features []float64) float64 {
	z := m.Bias
	for i, x := range features {
		std := m.ScalerStd[i]
		if std == 0 {
			std = 1
		}
		z += m.Weights[i] * (x - m.ScalerMean[i]) / std
	}
	return sigmoid(z)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// Boundary training settings. Fixed rather than configurable: the profile
// corpus is small and these converge reliably on it.
const (
	boundaryEpochs = 400
	boundaryLR     = 0.3
	boundaryL2     = 1e-3
	jitterStd      = 0.75
	jitterSeed     = 42
)

// trainBoundary fits a logistic regression separating enrolled samples from
// background samples. When no real background class has been enrolled, a
// synthetic one is generated by jittering the enrolled vectors with
// deterministic Gaussian noise, mirroring the contrast-class trick used at
// first enrollment.
func trainBoundary(features [][]float64, labels []int, dim int) (*BoundaryModel, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("speaker: no samples to train on")
	}
	for i, vec := range features {
		if len(vec) != dim {
			return nil, fmt.Errorf("speaker: sample %d has dimension %d, want %d", i, len(vec), dim)
		}
	}

	var positives, negatives [][]float64
	for i, vec := range features {
		if labels[i] == LabelEnrolled {
			positives = append(positives, vec)
		} else {
			negatives = append(negatives, vec)
		}
	}
	if len(positives) == 0 {
		return nil, fmt.Errorf("speaker: no enrolled samples to train on")
	}

	enrolledCount := len(positives)
	if len(negatives) == 0 {
		rng := rand.New(rand.NewSource(jitterSeed))
		for _, vec := range positives {
			jittered := make([]float64, dim)
			for i, x := range vec {
				jittered[i] = x + rng.NormFloat64()*jitterStd*math.Max(math.Abs(x), 1)
			}
			negatives = append(negatives, jittered)
		}
	}

	x := append(append([][]float64{}, positives...), negatives...)
	y := make([]float64, len(x))
	for i := range positives {
		y[i] = 1
	}

	mean, std := fitScaler(x, dim)
	scaled := make([][]float64, len(x))
	for i, vec := range x {
		s := make([]float64, dim)
		for j, v := range vec {
			d := std[j]
			if d == 0 {
				d = 1
			}
			s[j] = (v - mean[j]) / d
		}
		scaled[i] = s
	}

	weights := make([]float64, dim)
	bias := 0.0
	n := float64(len(scaled))
	for epoch := 0; epoch < boundaryEpochs; epoch++ {
		gradW := make([]float64, dim)
		gradB := 0.0
		for i, vec := range scaled {
			z := bias
			for j, v := range vec {
				z += weights[j] * v
			}
			diff := sigmoid(z) - y[i]
			for j, v := range vec {
				gradW[j] += diff * v
			}
			gradB += diff
		}
		for j := range weights {
			weights[j] -= boundaryLR * (gradW[j]/n + boundaryL2*weights[j])
		}
		bias -= boundaryLR * gradB / n
	}

	return &BoundaryModel{
		Dim:         dim,
		Weights:     weights,
		Bias:        bias,
		ScalerMean:  mean,
		ScalerStd:   std,
		SampleCount: enrolledCount,
	}, nil
}

// fitScaler computes the per-dimension mean and standard deviation.
func fitScaler(x [][]float64, dim int) (mean, std []float64) {
	mean = make([]float64, dim)
	std = make([]float64, dim)
	n := float64(len(x))
	for _, vec := range x {
		for j, v := range vec {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, vec := range x {
		for j, v := range vec {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
	}
	return mean, std
}
