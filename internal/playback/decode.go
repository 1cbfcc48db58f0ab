package playback

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// pcm is interleaved signed 16-bit little-endian audio.
type pcm struct {
	data       []byte
	sampleRate int
	channels   int
}

func decodeClip(clip Clip) (pcm, error) {
	switch clip.container() {
	case containerMP3:
		return decodeMP3(clip.Data)
	case containerWAV:
		return decodeWAV(clip.Data)
	default:
		return pcm{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, clip.MIME)
	}
}

func decodeMP3(data []byte) (pcm, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return pcm{}, fmt.Errorf("%w: mp3: %v", ErrUnsupportedFormat, err)
	}
	samples, err := io.ReadAll(decoder)
	if err != nil {
		return pcm{}, fmt.Errorf("%w: mp3: %v", ErrUnsupportedFormat, err)
	}
	if len(samples) == 0 {
		return pcm{}, fmt.Errorf("%w: mp3 has no frames", ErrUnsupportedFormat)
	}
	// go-mp3 always yields stereo s16le.
	return pcm{data: samples, sampleRate: decoder.SampleRate(), channels: 2}, nil
}

func decodeWAV(data []byte) (pcm, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return pcm{}, fmt.Errorf("%w: invalid wav", ErrUnsupportedFormat)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return pcm{}, fmt.Errorf("%w: wav: %v", ErrUnsupportedFormat, err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return pcm{}, fmt.Errorf("%w: wav has no samples", ErrUnsupportedFormat)
	}

	var shift uint
	switch decoder.BitDepth {
	case 16:
		shift = 0
	case 24:
		shift = 8
	case 32:
		shift = 16
	default:
		return pcm{}, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, decoder.BitDepth)
	}

	out := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sample>>shift)))
	}
	return pcm{data: out, sampleRate: int(decoder.SampleRate), channels: int(decoder.NumChans)}, nil
}

// conform adapts decoded audio to the output format: mono/stereo remixing,
// then linear resampling when the rates differ.
func conform(in pcm, format Format) ([]byte, error) {
	if in.sampleRate <= 0 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d Hz clip on %d Hz output", ErrUnsupportedFormat, in.sampleRate, format.SampleRate)
	}
	data, err := remix(in.data, in.channels, format.Channels)
	if err != nil {
		return nil, err
	}
	if in.sampleRate == format.SampleRate {
		return data, nil
	}
	return resample(data, format.Channels, in.sampleRate, format.SampleRate), nil
}

func remix(data []byte, from, to int) ([]byte, error) {
	switch {
	case from == to:
		return data, nil
	case from == 1 && to == 2:
		out := make([]byte, len(data)*2)
		for i := 0; i+1 < len(data); i += 2 {
			copy(out[i*2:], data[i:i+2])
			copy(out[i*2+2:], data[i:i+2])
		}
		return out, nil
	case from == 2 && to == 1:
		out := make([]byte, len(data)/2)
		for i := 0; i+3 < len(data); i += 4 {
			left := int32(int16(binary.LittleEndian.Uint16(data[i:])))
			right := int32(int16(binary.LittleEndian.Uint16(data[i+2:])))
			binary.LittleEndian.PutUint16(out[i/2:], uint16(int16((left+right)/2)))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d channels on %d channel output", ErrUnsupportedFormat, from, to)
	}
}

// resample converts interleaved s16le frames from one rate to another by
// linear interpolation between neighbouring frames.
func resample(data []byte, channels, from, to int) []byte {
	frameSize := channels * 2
	inFrames := len(data) / frameSize
	if inFrames == 0 {
		return nil
	}
	outFrames := int(int64(inFrames) * int64(to) / int64(from))
	if outFrames == 0 {
		outFrames = 1
	}

	sample := func(frame, ch int) int64 {
		return int64(int16(binary.LittleEndian.Uint16(data[frame*frameSize+ch*2:])))
	}

	out := make([]byte, outFrames*frameSize)
	for j := 0; j < outFrames; j++ {
		pos := int64(j) * int64(from)
		i0 := int(pos / int64(to))
		frac := pos % int64(to)
		i1 := i0 + 1
		if i1 >= inFrames {
			i1 = inFrames - 1
		}
		for ch := 0; ch < channels; ch++ {
			s0, s1 := sample(i0, ch), sample(i1, ch)
			v := s0 + (s1-s0)*frac/int64(to)
			binary.LittleEndian.PutUint16(out[j*frameSize+ch*2:], uint16(int16(v)))
		}
	}
	return out
}
