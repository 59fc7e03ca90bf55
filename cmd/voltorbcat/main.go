// Command voltorbcat decodes an Ogg Vorbis file to a 16-bit PCM WAV file.
//
// Usage:
//
//	go run . -in input.ogg -out output.wav
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Khitiara/Voltorb"
)

const wavBitDepth = 16

func main() {
	input := flag.String("in", "", "Input Ogg Vorbis file")
	output := flag.String("out", "", "Output WAV file (16-bit PCM). Defaults to decoded.wav")
	noClip := flag.Bool("no-clip", false, "Disable sample clipping to +/-0.99999994")
	flag.Parse()

	if *input == "" {
		fmt.Println("Usage: voltorbcat -in <file.ogg> [-out output.wav]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	outPath := *output
	if outPath == "" {
		outPath = "decoded.wav"
	}

	stats, err := decode(*input, outPath, !*noClip)
	if err != nil {
		log.Fatalf("decode failed: %v", err)
	}

	fmt.Printf("%s -> %s\n", *input, outPath)
	fmt.Printf("channels=%d rate=%d frames=%d clipped=%v skipped_packets=%d\n",
		stats.Channels, stats.SampleRate, stats.Frames, stats.Clipped, stats.SkippedPackets)
}

type decodeStats struct {
	Channels       int
	SampleRate     int
	Frames         int64
	Clipped        bool
	SkippedPackets int
}

func decode(inPath, outPath string, clip bool) (decodeStats, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return decodeStats{}, fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	dec, err := voltorb.NewDecoder(in, nil, voltorb.WithClipping(clip))
	if err != nil {
		return decodeStats{}, fmt.Errorf("open decoder: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return decodeStats{}, fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	enc := wav.NewEncoder(out, dec.SampleRate(), wavBitDepth, dec.Channels(), 1)
	sink := &wavSink{enc: enc, channels: dec.Channels()}

	if err := dec.Decode(sink); err != nil {
		return decodeStats{}, fmt.Errorf("decode: %w", err)
	}
	if err := sink.flush(); err != nil {
		return decodeStats{}, fmt.Errorf("flush: %w", err)
	}
	if err := enc.Close(); err != nil {
		return decodeStats{}, fmt.Errorf("close wav encoder: %w", err)
	}

	return decodeStats{
		Channels:       dec.Channels(),
		SampleRate:     dec.SampleRate(),
		Frames:         dec.SamplePosition(),
		Clipped:        dec.HasClipped(),
		SkippedPackets: dec.SkippedPackets(),
	}, nil
}

// wavSink adapts voltorb.Sink onto a go-audio/wav Encoder: it buffers
// interleaved float32 samples, converts them to 16-bit PCM, and hands them
// to the encoder as an audio.IntBuffer.
type wavSink struct {
	enc      *wav.Encoder
	channels int
	buf      []float32
	intBuf   *goaudio.IntBuffer
}

const wavSinkFrames = 4096

func (s *wavSink) GetWritable(minSamples int) []float32 {
	n := minSamples
	if n < wavSinkFrames*s.channels {
		n = wavSinkFrames * s.channels
	}
	if cap(s.buf) < n {
		s.buf = make([]float32, n)
	}
	return s.buf[:n]
}

func (s *wavSink) Advance(samplesWritten int) {
	if samplesWritten == 0 {
		return
	}
	if s.intBuf == nil {
		s.intBuf = &goaudio.IntBuffer{
			Format: &goaudio.Format{SampleRate: 0, NumChannels: s.channels},
			Data:   make([]int, 0, samplesWritten),
		}
	}
	data := s.intBuf.Data[:0]
	for i := 0; i < samplesWritten; i++ {
		v := s.buf[i]
		data = append(data, int(v*32767))
	}
	s.intBuf.Data = data
	if err := s.enc.Write(s.intBuf); err != nil {
		log.Printf("wav write: %v", err)
	}
}

func (s *wavSink) flush() error { return nil }
