// Package wavio decodes and encodes WAV containers. Decoding yields
// interleaved integer samples at the source bit depth; encoding rebuilds a
// playable container from samples and format parameters without any
// resampling, so amplitude values round-trip bit-identical.
package wavio

import (
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/passby-go/internal/errors"
)

// Info describes the format of a WAV file.
type Info struct {
	SampleRate  int
	NumChannels int
	BitDepth    int
	TotalFrames int
}

// File is a decoded WAV file: format info plus interleaved samples,
// len(Samples) = TotalFrames * NumChannels.
type File struct {
	Info
	Samples []int
}

// BytesPerSample returns the sample width in bytes.
func (i Info) BytesPerSample() int {
	return i.BitDepth / 8
}

// DurationNs returns the audio duration in nanoseconds.
func (i Info) DurationNs() int64 {
	if i.SampleRate <= 0 {
		return 0
	}
	return int64(i.TotalFrames) * 1_000_000_000 / int64(i.SampleRate)
}

// decodeBufferSize is the chunk size for PCM reads, in samples.
const decodeBufferSize = 1_152_000

// Decode reads a complete WAV container from r.
func Decode(r io.ReadSeeker) (*File, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return nil, errors.Newf("invalid WAV file format").
			Component("wavio").
			Category(errors.CategoryMalformedAudio).
			Build()
	}

	if decoder.SampleRate == 0 {
		return nil, errors.Newf("invalid WAV header: zero sample rate").
			Component("wavio").
			Category(errors.CategoryMalformedAudio).
			Build()
	}

	if decoder.NumChans == 0 {
		return nil, errors.Newf("invalid WAV header: zero channels").
			Component("wavio").
			Category(errors.CategoryMalformedAudio).
			Build()
	}

	if decoder.BitDepth != 16 && decoder.BitDepth != 24 && decoder.BitDepth != 32 {
		return nil, errors.Newf("unsupported bit depth: %d", decoder.BitDepth).
			Component("wavio").
			Category(errors.CategoryMalformedAudio).
			Context("bit_depth", int(decoder.BitDepth)).
			Build()
	}

	channels := int(decoder.NumChans)

	buf := &audio.IntBuffer{
		Data:   make([]int, decodeBufferSize),
		Format: &audio.Format{SampleRate: int(decoder.SampleRate), NumChannels: channels},
	}

	var samples []int
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, errors.New(err).
				Component("wavio").
				Category(errors.CategoryMalformedAudio).
				Context("operation", "pcm-read").
				Build()
		}
		if n == 0 {
			break
		}
		samples = append(samples, buf.Data[:n]...)
	}

	if len(samples) == 0 {
		return nil, errors.Newf("WAV file has an empty data chunk").
			Component("wavio").
			Category(errors.CategoryMalformedAudio).
			Build()
	}

	// A stream that ends mid-frame means the data chunk was cut off.
	if len(samples)%channels != 0 {
		return nil, errors.Newf("WAV data chunk truncated mid-frame: %d samples across %d channels",
			len(samples), channels).
			Component("wavio").
			Category(errors.CategoryMalformedAudio).
			Build()
	}

	return &File{
		Info: Info{
			SampleRate:  int(decoder.SampleRate),
			NumChannels: channels,
			BitDepth:    int(decoder.BitDepth),
			TotalFrames: len(samples) / channels,
		},
		Samples: samples,
	}, nil
}

// DecodeFile opens and decodes the WAV file at path.
func DecodeFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("wavio").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	defer f.Close()

	decoded, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

// Encoder builds a WAV container in memory. Samples can be appended in
// batches; Bytes finalizes the header and returns the container.
type Encoder struct {
	buf    *seekableBuffer
	enc    *wav.Encoder
	format *audio.Format
	closed bool
}

// NewEncoder returns an in-memory WAV encoder for the given format.
func NewEncoder(sampleRate, bitDepth, numChannels int) *Encoder {
	buf := &seekableBuffer{}
	return &Encoder{
		buf:    buf,
		enc:    wav.NewEncoder(buf, sampleRate, bitDepth, numChannels, 1),
		format: &audio.Format{SampleRate: sampleRate, NumChannels: numChannels},
	}
}

// WriteSamples appends interleaved samples to the container.
func (e *Encoder) WriteSamples(samples []int) error {
	if e.closed {
		return errors.Newf("encoder already finalized").
			Component("wavio").
			Category(errors.CategoryAudio).
			Build()
	}
	if len(samples) == 0 {
		return nil
	}
	if err := e.enc.Write(&audio.IntBuffer{Data: samples, Format: e.format}); err != nil {
		return errors.New(err).
			Component("wavio").
			Category(errors.CategoryAudio).
			Context("operation", "wav-encode").
			Build()
	}
	return nil
}

// Bytes finalizes the container and returns its bytes.
func (e *Encoder) Bytes() ([]byte, error) {
	if !e.closed {
		if err := e.enc.Close(); err != nil {
			return nil, errors.New(err).
				Component("wavio").
				Category(errors.CategoryAudio).
				Context("operation", "wav-finalize").
				Build()
		}
		e.closed = true
	}
	return e.buf.Bytes(), nil
}

// Encode builds a complete WAV container from interleaved samples.
func Encode(info Info, samples []int) ([]byte, error) {
	enc := NewEncoder(info.SampleRate, info.BitDepth, info.NumChannels)
	if err := enc.WriteSamples(samples); err != nil {
		return nil, err
	}
	return enc.Bytes()
}
