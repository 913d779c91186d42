package speaker

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Sample is decoded mono audio: normalized PCM in [-1, 1] plus the sample
// rate the buffer was captured at.
type Sample struct {
	Rate int
	PCM  []float64
}

// Duration returns the sample length in seconds.
func (s Sample) Duration() float64 {
	if s.Rate == 0 {
		return 0
	}
	return float64(len(s.PCM)) / float64(s.Rate)
}

// ReadWAVFile decodes a RIFF/WAVE file from disk.
func ReadWAVFile(path string) (Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sample{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

// Chunk bodies are allocated at the length the header declares, so declared
// lengths are bounded before any allocation. 64 MiB of 16-bit PCM holds over
// ten minutes of 48 kHz mono audio, far past what the extractor will use.
const (
	maxFmtChunkLen  = 1 << 16
	maxDataChunkLen = 64 << 20
)

// DecodeWAV decodes 16-bit PCM RIFF/WAVE audio. Multi-channel input is
// downmixed to mono by averaging. This covers what the ASR collaborator
// hands over; other encodings are rejected.
func DecodeWAV(r io.Reader) (Sample, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Sample{}, fmt.Errorf("wav: read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Sample{}, fmt.Errorf("wav: not a RIFF/WAVE stream")
	}

	var (
		rate          int
		channels      int
		bitsPerSample int
		haveFmt       bool
	)

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return Sample{}, fmt.Errorf("wav: no data chunk found")
			}
			return Sample{}, fmt.Errorf("wav: read chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkLen := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			if chunkLen > maxFmtChunkLen {
				return Sample{}, fmt.Errorf("wav: fmt chunk declares %d bytes, limit is %d", chunkLen, maxFmtChunkLen)
			}
			body := make([]byte, chunkLen)
			if _, err := io.ReadFull(r, body); err != nil {
				return Sample{}, fmt.Errorf("wav: read fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return Sample{}, fmt.Errorf("wav: fmt chunk too short")
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			if audioFormat != 1 {
				return Sample{}, fmt.Errorf("wav: unsupported audio format %d, only PCM is supported", audioFormat)
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			rate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			if bitsPerSample != 16 {
				return Sample{}, fmt.Errorf("wav: unsupported bit depth %d, only 16-bit PCM is supported", bitsPerSample)
			}
			if channels < 1 || rate <= 0 {
				return Sample{}, fmt.Errorf("wav: invalid fmt: channels=%d rate=%d", channels, rate)
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return Sample{}, fmt.Errorf("wav: data chunk before fmt chunk")
			}
			if chunkLen > maxDataChunkLen {
				return Sample{}, fmt.Errorf("wav: data chunk declares %d bytes, limit is %d", chunkLen, maxDataChunkLen)
			}
			body := make([]byte, chunkLen)
			if _, err := io.ReadFull(r, body); err != nil {
				return Sample{}, fmt.Errorf("wav: read data chunk: %w", err)
			}
			frames := len(body) / (2 * channels)
			if frames == 0 {
				return Sample{}, fmt.Errorf("wav: empty data chunk")
			}
			pcm := make([]float64, frames)
			for i := 0; i < frames; i++ {
				var sum float64
				for c := 0; c < channels; c++ {
					off := (i*channels + c) * 2
					v := int16(binary.LittleEndian.Uint16(body[off : off+2]))
					sum += float64(v) / 32768.0
				}
				pcm[i] = sum / float64(channels)
			}
			return Sample{Rate: rate, PCM: pcm}, nil

		default:
			// Skip unknown chunks (LIST, fact, ...). Chunks are word-aligned.
			skip := int64(chunkLen)
			if skip%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return Sample{}, fmt.Errorf("wav: skip %s chunk: %w", chunkID, err)
			}
		}
	}
}
