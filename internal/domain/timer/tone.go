package timer

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"time"
)

// ToneSpec describes the cue tone: a sine wave whose gain decays exponentially.
type ToneSpec struct {
	Frequency  float64
	Duration   time.Duration
	SampleRate int
	StartGain  float64
	EndGain    float64
}

// DefaultTone is the cue played on turn change and expiry.
var DefaultTone = ToneSpec{
	Frequency:  800,
	Duration:   500 * time.Millisecond,
	SampleRate: 44100,
	StartGain:  0.3,
	EndGain:    0.01,
}

// Samples returns the number of PCM frames the tone spans.
func (s ToneSpec) Samples() int {
	return int(float64(s.SampleRate) * s.Duration.Seconds())
}

// WriteToneWAV writes spec as a 16-bit mono PCM WAV file.
func WriteToneWAV(w io.Writer, spec ToneSpec) error {
	if spec.SampleRate <= 0 || spec.Duration <= 0 || spec.StartGain <= 0 || spec.EndGain <= 0 {
		spec = DefaultTone
	}
	const (
		channels      = 1
		bitsPerSample = 16
		blockAlign    = channels * bitsPerSample / 8
	)
	n := spec.Samples()
	dataSize := uint32(n * blockAlign)

	bw := bufio.NewWriter(w)
	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(36 + dataSize),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1), // PCM
		uint16(channels),
		uint32(spec.SampleRate),
		uint32(spec.SampleRate * blockAlign),
		uint16(blockAlign),
		uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	ratio := spec.EndGain / spec.StartGain
	frame := make([]byte, blockAlign)
	for i := 0; i < n; i++ {
		progress := float64(i) / float64(n)
		gain := spec.StartGain * math.Pow(ratio, progress)
		v := gain * math.Sin(2*math.Pi*spec.Frequency*float64(i)/float64(spec.SampleRate))
		binary.LittleEndian.PutUint16(frame, uint16(int16(v*math.MaxInt16)))
		if _, err := bw.Write(frame); err != nil {
			return err
		}
	}
	return bw.Flush()
}
