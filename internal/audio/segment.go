package audio

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ryom080502-dev/audioGIJI6/internal/domain"
	"github.com/ryom080502-dev/audioGIJI6/internal/logger"
	"github.com/ryom080502-dev/audioGIJI6/pkg/executor"
)

// Canonical decode profile. Every source is normalized to this before
// slicing so segment boundaries are sample-accurate regardless of the
// uploaded container.
const (
	SampleRate     = 16000
	Channels       = 1
	bytesPerSample = 2 // s16le

	segmentBitrate  = "64k"
	segmentMIMEType = "audio/mpeg"
)

// PCM holds a fully decoded recording as signed 16-bit little-endian mono
// samples.
type PCM struct {
	Data       []byte
	SampleRate int
	Channels   int
}

func (p *PCM) Samples() int64 {
	return int64(len(p.Data)) / bytesPerSample
}

func (p *PCM) Duration() time.Duration {
	return durationOf(p.Samples(), p.SampleRate)
}

// Segmenter cuts a recording into fixed-duration, independently decodable
// slices. Decoding is eager: the whole source becomes PCM in memory before
// any boundary is computed.
type Segmenter struct {
	bin    string
	segDur time.Duration
	exec   executor.Executor
	log    *logger.Logger
}

func NewSegmenter(bin string, segmentDuration time.Duration, execer executor.Executor, log *logger.Logger) *Segmenter {
	return &Segmenter{
		bin:    bin,
		segDur: segmentDuration,
		exec:   execer,
		log:    log.WithComponent("segmenter"),
	}
}

// Segment decodes the file at path and returns its ten-minute slices (or
// whatever duration the segmenter was built with), each re-encoded as a
// self-contained MP3.
func (s *Segmenter) Segment(ctx context.Context, path string) ([]domain.AudioSegment, error) {
	pcm, err := s.Decode(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.Split(ctx, pcm)
}

// Decode runs the whole source through ffmpeg into canonical PCM.
func (s *Segmenter) Decode(ctx context.Context, path string) (*PCM, error) {
	out, err := s.exec.Execute(ctx, nil, s.bin,
		"-v", "error",
		"-i", path,
		"-vn",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-acodec", "pcm_s16le",
		"-f", "s16le",
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	if len(out) < bytesPerSample {
		return nil, fmt.Errorf("%w: no audio samples in %s", domain.ErrDecode, filepath.Base(path))
	}

	// trim a trailing partial sample, if any
	out = out[:len(out)-len(out)%bytesPerSample]

	pcm := &PCM{Data: out, SampleRate: SampleRate, Channels: Channels}
	s.log.WithField("duration", pcm.Duration().String()).Debug("decoded source audio")
	return pcm, nil
}

// Split slices pcm into contiguous segments of the configured duration and
// re-encodes each slice. The final segment keeps the remainder; sample math
// guarantees no gaps and no overlaps.
func (s *Segmenter) Split(ctx context.Context, pcm *PCM) ([]domain.AudioSegment, error) {
	if pcm == nil || pcm.Samples() == 0 {
		return nil, fmt.Errorf("%w: empty decode buffer", domain.ErrDecode)
	}

	bounds := segmentBounds(pcm.Samples(), samplesPerSegment(s.segDur, pcm.SampleRate))
	if len(bounds) == 0 {
		return nil, fmt.Errorf("%w: segment duration %s is not usable", domain.ErrInvalidInput, s.segDur)
	}

	segments := make([]domain.AudioSegment, 0, len(bounds))
	for i, b := range bounds {
		payload, err := s.encodeSlice(ctx, pcm.Data[int(b.start)*bytesPerSample:int(b.end)*bytesPerSample])
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}

		segments = append(segments, domain.AudioSegment{
			Index:      i,
			Start:      durationOf(b.start, pcm.SampleRate),
			End:        durationOf(b.end, pcm.SampleRate),
			Payload:    payload,
			MIMEType:   segmentMIMEType,
			SampleRate: pcm.SampleRate,
			Channels:   pcm.Channels,
		})
	}

	s.log.WithField("segments", len(segments)).Info("split source audio")
	return segments, nil
}

// encodeSlice turns a raw sample window into an independently decodable
// MP3 file image.
func (s *Segmenter) encodeSlice(ctx context.Context, raw []byte) ([]byte, error) {
	out, err := s.exec.Execute(ctx, bytes.NewReader(raw), s.bin,
		"-v", "error",
		"-f", "s16le",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-i", "-",
		"-acodec", "libmp3lame",
		"-b:a", segmentBitrate,
		"-f", "mp3",
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("%w: re-encode: %v", domain.ErrDecode, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: re-encode produced no data", domain.ErrDecode)
	}
	return out, nil
}

type bound struct {
	start, end int64
}

// segmentBounds returns ceil(total/per) contiguous [start,end) sample
// ranges covering total samples exactly.
func segmentBounds(total, per int64) []bound {
	if total <= 0 || per <= 0 {
		return nil
	}

	bounds := make([]bound, 0, (total+per-1)/per)
	for start := int64(0); start < total; start += per {
		end := start + per
		if end > total {
			end = total
		}
		bounds = append(bounds, bound{start: start, end: end})
	}
	return bounds
}

func samplesPerSegment(segDur time.Duration, rate int) int64 {
	return int64(segDur) * int64(rate) / int64(time.Second)
}

func durationOf(samples int64, rate int) time.Duration {
	return time.Duration(samples * int64(time.Second) / int64(rate))
}
