package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Convert resamples and downmixes b to the target format. Conversion order:
// resample first, then channel convert. Only downmixing is supported; a
// target with more channels than the source is rejected.
//
// When downsampling, an anti-alias low-pass at 45% of the target rate is
// applied before interpolation.
func Convert(b Buffer, target Format) (Buffer, error) {
	if target.SampleRate <= 0 || target.Channels <= 0 {
		return Buffer{}, fmt.Errorf("audio: invalid target format %s", formatString(target.SampleRate, target.Channels))
	}
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return Buffer{}, fmt.Errorf("audio: invalid source format %s", formatString(b.SampleRate, b.Channels))
	}
	if target.Channels > b.Channels {
		return Buffer{}, fmt.Errorf("audio: cannot upmix %s to %s",
			formatString(b.SampleRate, b.Channels), formatString(target.SampleRate, target.Channels))
	}

	samples := b.Samples
	if b.SampleRate > target.SampleRate {
		samples = LowPass(samples, b.Channels, b.SampleRate, 0.45*float64(target.SampleRate))
	}
	samples = Resample(samples, b.Channels, b.SampleRate, target.SampleRate)
	if target.Channels == 1 && b.Channels > 1 {
		samples = Downmix(samples, b.Channels)
	} else if target.Channels != b.Channels {
		return Buffer{}, fmt.Errorf("audio: unsupported channel conversion %d -> %d", b.Channels, target.Channels)
	}
	return Buffer{Samples: samples, SampleRate: target.SampleRate, Channels: target.Channels}, nil
}

// Downmix averages every interleaved frame of the given channel count into a
// single mono sample. A trailing partial frame is dropped.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += float64(samples[i*channels+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// Resample converts interleaved samples from srcRate to dstRate using linear
// interpolation per channel. If srcRate == dstRate a copy of the input is
// returned.
func Resample(samples []float32, channels, srcRate, dstRate int) []float32 {
	if channels <= 0 {
		channels = 1
	}
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	srcFrames := len(samples) / channels
	if srcFrames == 0 {
		return nil
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]float32, dstFrames*channels)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)
		next := srcIdx + 1
		if next >= srcFrames {
			next = srcFrames - 1
		}
		for c := range channels {
			s0 := float64(samples[srcIdx*channels+c])
			s1 := float64(samples[next*channels+c])
			out[i*channels+c] = float32(s0*(1-frac) + s1*frac)
		}
	}
	return out
}

// Float32ToPCM16 packs samples as little-endian int16 PCM, clamping to the
// int16 range.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(s)))
	}
	return out
}

// PCM16ToFloat32 converts little-endian int16 PCM bytes to float32 samples
// in [-1.0, 1.0). A trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := range n {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return out
}

func floatToInt16(s float32) int16 {
	v := math.Round(float64(s) * 32767)
	if math.IsNaN(v) {
		return 0
	}
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
