package speaker

import (
	"math"
	"math/rand"
	"testing"
)

func noisePCM(seed int64, rate int, seconds float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	n := int(seconds * float64(rate))
	pcm := make([]float64, n)
	for i := range pcm {
		pcm[i] = 0.5 * (2*rng.Float64() - 1)
	}
	return pcm
}

func TestFeaturesDimension(t *testing.T) {
	e := NewExtractor(13)
	if got := e.FeatureDim(); got != 26 {
		t.Fatalf("FeatureDim() = %d, want 26", got)
	}

	vec, err := e.Features(Sample{Rate: 16000, PCM: sinePCM(440, 16000, 0.5)})
	if err != nil {
		t.Fatalf("Features() error = %v", err)
	}
	if len(vec) != 26 {
		t.Fatalf("len(vec) = %d, want 26", len(vec))
	}
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("vec[%d] = %v, not finite", i, v)
		}
	}
}

func TestFeaturesDeterministic(t *testing.T) {
	e := NewExtractor(13)
	s := Sample{Rate: 16000, PCM: sinePCM(440, 16000, 0.5)}

	a, err := e.Features(s)
	if err != nil {
		t.Fatalf("Features() error = %v", err)
	}
	b, err := e.Features(s)
	if err != nil {
		t.Fatalf("Features() error = %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vec[%d] differs between identical extractions: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestFeaturesSeparateSignals(t *testing.T) {
	e := NewExtractor(13)

	sine, err := e.Features(Sample{Rate: 16000, PCM: sinePCM(440, 16000, 0.5)})
	if err != nil {
		t.Fatalf("Features(sine) error = %v", err)
	}
	noise, err := e.Features(Sample{Rate: 16000, PCM: noisePCM(1, 16000, 0.5)})
	if err != nil {
		t.Fatalf("Features(noise) error = %v", err)
	}

	var dist float64
	for i := range sine {
		d := sine[i] - noise[i]
		dist += d * d
	}
	if math.Sqrt(dist) < 1 {
		t.Errorf("tone and noise features are nearly identical, distance = %v", math.Sqrt(dist))
	}
}

func TestFeaturesCapsDuration(t *testing.T) {
	e := NewExtractor(13)
	e.MaxDuration = 0.2

	short, err := e.Features(Sample{Rate: 16000, PCM: sinePCM(440, 16000, 0.2)})
	if err != nil {
		t.Fatalf("Features(short) error = %v", err)
	}
	// Padding the tail beyond the cap must not change the features.
	long, err := e.Features(Sample{Rate: 16000, PCM: sinePCM(440, 16000, 2.0)})
	if err != nil {
		t.Fatalf("Features(long) error = %v", err)
	}
	for i := range short {
		if short[i] != long[i] {
			t.Fatalf("vec[%d] changed when audio past the cap was appended", i)
		}
	}
}

func TestFeaturesRejectsBadInput(t *testing.T) {
	e := NewExtractor(13)
	tests := []struct {
		name string
		s    Sample
	}{
		{"empty", Sample{Rate: 16000}},
		{"zero rate", Sample{PCM: []float64{0.1, 0.2}}},
		{"too short", Sample{Rate: 16000, PCM: make([]float64, 10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Features(tt.s); err == nil {
				t.Error("Features() succeeded, want error")
			}
		})
	}
}

func TestFFTMatchesDirectTransform(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n := 64
	x := make([]complex128, n)
	for i := range x {
		x[i] = complex(rng.Float64()-0.5, 0)
	}

	// Naive O(n^2) DFT as the reference.
	want := make([]complex128, n)
	for k := 0; k < n; k++ {
		var sum complex128
		for i := 0; i < n; i++ {
			angle := -2 * math.Pi * float64(k) * float64(i) / float64(n)
			sum += x[i] * complex(math.Cos(angle), math.Sin(angle))
		}
		want[k] = sum
	}

	got := append([]complex128{}, x...)
	fft(got)
	for k := range got {
		if math.Abs(real(got[k])-real(want[k])) > 1e-9 || math.Abs(imag(got[k])-imag(want[k])) > 1e-9 {
			t.Fatalf("fft bin %d = %v, want %v", k, got[k], want[k])
		}
	}
}
