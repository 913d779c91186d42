package speaker

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Mel-frequency cepstral coefficient extraction. MFCCs are a compact,
// perceptually-motivated summary of the short-time spectrum; the verifier
// pools them over time (mean and standard deviation per coefficient) into
// a fixed-dimension vector per utterance.

// DefaultNumCoefficients matches the usual 13-coefficient MFCC front end.
const DefaultNumCoefficients = 13

// Extractor computes pooled MFCC feature vectors from audio samples.
type Extractor struct {
	NumCoefficients int
	NumFilters      int
	FrameLength     float64 // seconds
	FrameShift      float64 // seconds
	PreEmphasis     float64
	MaxDuration     float64 // seconds of audio to process; 0 = no cap
}

// NewExtractor returns an extractor with standard front-end settings:
// 25 ms frames, 10 ms shift, 26 mel filters, 0.97 pre-emphasis.
func NewExtractor(numCoefficients int) *Extractor {
	if numCoefficients <= 0 {
		numCoefficients = DefaultNumCoefficients
	}
	return &Extractor{
		NumCoefficients: numCoefficients,
		NumFilters:      26,
		FrameLength:     0.025,
		FrameShift:      0.010,
		PreEmphasis:     0.97,
		MaxDuration:     10.0,
	}
}

// FeatureDim returns the pooled vector dimension: mean and standard
// deviation for each coefficient.
func (e *Extractor) FeatureDim() int {
	return 2 * e.NumCoefficients
}

// Features computes the pooled MFCC vector for one sample.
func (e *Extractor) Features(s Sample) ([]float64, error) {
	if s.Rate <= 0 || len(s.PCM) == 0 {
		return nil, fmt.Errorf("empty audio sample")
	}

	pcm := s.PCM
	if e.MaxDuration > 0 {
		if limit := int(e.MaxDuration * float64(s.Rate)); len(pcm) > limit {
			pcm = pcm[:limit]
		}
	}

	frameLen := int(e.FrameLength * float64(s.Rate))
	frameShift := int(e.FrameShift * float64(s.Rate))
	if frameLen < 2 || frameShift < 1 {
		return nil, fmt.Errorf("sample rate %d too low for framing", s.Rate)
	}
	if len(pcm) < frameLen {
		return nil, fmt.Errorf("sample too short: %d frames of audio, need at least %d", len(pcm), frameLen)
	}

	emphasized := preEmphasize(pcm, e.PreEmphasis)
	window := hamming(frameLen)
	fftSize := nextPow2(frameLen)
	filterbank := melFilterbank(e.NumFilters, fftSize, s.Rate)

	numFrames := 1 + (len(emphasized)-frameLen)/frameShift
	coeffs := make([][]float64, 0, numFrames)
	frame := make([]complex128, fftSize)

	for f := 0; f < numFrames; f++ {
		start := f * frameShift
		for i := 0; i < fftSize; i++ {
			if i < frameLen {
				frame[i] = complex(emphasized[start+i]*window[i], 0)
			} else {
				frame[i] = 0
			}
		}
		fft(frame)

		power := make([]float64, fftSize/2+1)
		for i := range power {
			m := cmplx.Abs(frame[i])
			power[i] = m * m / float64(fftSize)
		}

		energies := make([]float64, e.NumFilters)
		for b, filter := range filterbank {
			var sum float64
			for i, w := range filter {
				if w != 0 {
					sum += w * power[i]
				}
			}
			energies[b] = math.Log(math.Max(sum, 1e-10))
		}

		coeffs = append(coeffs, dct2(energies, e.NumCoefficients))
	}

	return poolMeanStd(coeffs, e.NumCoefficients), nil
}

// poolMeanStd concatenates the per-coefficient mean and standard deviation
// across frames.
func poolMeanStd(coeffs [][]float64, n int) []float64 {
	out := make([]float64, 2*n)
	frames := float64(len(coeffs))
	for c := 0; c < n; c++ {
		var mean float64
		for _, frame := range coeffs {
			mean += frame[c]
		}
		mean /= frames
		var variance float64
		for _, frame := range coeffs {
			d := frame[c] - mean
			variance += d * d
		}
		out[c] = mean
		out[n+c] = math.Sqrt(variance / frames)
	}
	return out
}

func preEmphasize(pcm []float64, alpha float64) []float64 {
	out := make([]float64, len(pcm))
	out[0] = pcm[0]
	for i := 1; i < len(pcm); i++ {
		out[i] = pcm[i] - alpha*pcm[i-1]
	}
	return out
}

func hamming(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// fft computes an in-place iterative radix-2 Cooley-Tukey transform.
// len(x) must be a power of two.
func fft(x []complex128) {
	n := len(x)
	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		angle := -2 * math.Pi / float64(size)
		wn := cmplx.Rect(1, angle)
		for start := 0; start < n; start += size {
			w := complex(1, 0)
			for k := 0; k < size/2; k++ {
				even := x[start+k]
				odd := x[start+k+size/2] * w
				x[start+k] = even + odd
				x[start+k+size/2] = even - odd
				w *= wn
			}
		}
	}
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterbank builds triangular filters spanning 0..rate/2 on the mel
// scale, each defined over the fftSize/2+1 power spectrum bins.
func melFilterbank(numFilters, fftSize, rate int) [][]float64 {
	lowMel := hzToMel(0)
	highMel := hzToMel(float64(rate) / 2)

	points := make([]int, numFilters+2)
	for i := range points {
		mel := lowMel + (highMel-lowMel)*float64(i)/float64(numFilters+1)
		hz := melToHz(mel)
		points[i] = int(math.Floor((float64(fftSize) + 1) * hz / float64(rate)))
		if points[i] > fftSize/2 {
			points[i] = fftSize / 2
		}
	}

	filters := make([][]float64, numFilters)
	for f := 0; f < numFilters; f++ {
		filter := make([]float64, fftSize/2+1)
		left, center, right := points[f], points[f+1], points[f+2]
		for i := left; i < center; i++ {
			if center > left {
				filter[i] = float64(i-left) / float64(center-left)
			}
		}
		for i := center; i <= right; i++ {
			if right > center {
				filter[i] = float64(right-i) / float64(right-center)
			}
		}
		filters[f] = filter
	}
	return filters
}

// dct2 computes the first n coefficients of the orthonormal DCT-II.
func dct2(input []float64, n int) []float64 {
	k := len(input)
	out := make([]float64, n)
	for c := 0; c < n; c++ {
		var sum float64
		for i := 0; i < k; i++ {
			sum += input[i] * math.Cos(math.Pi*float64(c)*(float64(i)+0.5)/float64(k))
		}
		scale := math.Sqrt(2 / float64(k))
		if c == 0 {
			scale = math.Sqrt(1 / float64(k))
		}
		out[c] = scale * sum
	}
	return out
}
