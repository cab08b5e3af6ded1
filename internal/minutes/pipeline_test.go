package minutes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ryom080502-dev/audioGIJI6/internal/domain"
	"github.com/ryom080502-dev/audioGIJI6/internal/logger"
)

type analyzeFunc func(ctx context.Context, payload []byte, mimeType string, meta domain.Metadata) (domain.SegmentResult, error)

type fakeAnalyzer struct {
	calls atomic.Int64
	fn    analyzeFunc
}

func (f *fakeAnalyzer) AnalyzeAudio(ctx context.Context, payload []byte, mimeType string, meta domain.Metadata) (domain.SegmentResult, error) {
	f.calls.Add(1)
	return f.fn(ctx, payload, mimeType, meta)
}

type fakeSegmenter struct {
	segments []domain.AudioSegment
	err      error
}

func (f *fakeSegmenter) Segment(_ context.Context, _ string) ([]domain.AudioSegment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.segments, nil
}

type fakePolisher struct {
	calls int
	out   string
	err   error
}

func (f *fakePolisher) UnifySummary(_ context.Context, _ []string) (string, error) {
	f.calls++
	return f.out, f.err
}

func testMeta() domain.Metadata {
	return domain.Metadata{
		CreatedDate:  "2024-05-01",
		Creator:      "田中",
		CustomerName: "株式会社東雲",
		MeetingPlace: "本社",
	}
}

func writeUpload(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting.mp3")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xAB}, size), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return path
}

func indexedSegments(n int) []domain.AudioSegment {
	segs := make([]domain.AudioSegment, n)
	for i := range segs {
		segs[i] = domain.AudioSegment{Index: i, Payload: []byte{byte(i)}, MIMEType: "audio/mpeg"}
	}
	return segs
}

func TestRunDirectSingleCall(t *testing.T) {
	path := writeUpload(t, 64)

	analyzer := &fakeAnalyzer{fn: func(_ context.Context, payload []byte, mimeType string, _ domain.Metadata) (domain.SegmentResult, error) {
		if len(payload) != 64 {
			t.Errorf("expected the whole payload, got %d bytes", len(payload))
		}
		if mimeType != "audio/mpeg" {
			t.Errorf("unexpected mime type %q", mimeType)
		}
		return domain.SegmentResult{Summary: "whole", ConfirmationItems: []string{"a"}, Title: "T"}, nil
	}}

	p := NewPipeline(analyzer, &fakeSegmenter{}, nil, Options{IngressLimit: 1024, Workers: 2}, logger.New())
	job := domain.UploadJob{Path: path, Filename: "meeting.mp3", MIMEType: "audio/mpeg", Size: 64, Meta: testMeta()}

	merged, err := p.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if merged.Summary != "whole" || merged.Title != "T" {
		t.Fatalf("unexpected merge result: %+v", merged)
	}
	if analyzer.calls.Load() != 1 {
		t.Fatalf("expected exactly one analyzer call, got %d", analyzer.calls.Load())
	}
}

func TestRunSegmentedMergesInIndexOrder(t *testing.T) {
	path := writeUpload(t, 64)

	analyzer := &fakeAnalyzer{fn: func(_ context.Context, payload []byte, _ string, _ domain.Metadata) (domain.SegmentResult, error) {
		idx := int(payload[0])
		// later segments answer first so completion order is reversed
		time.Sleep(time.Duration(3-idx) * 5 * time.Millisecond)
		return domain.SegmentResult{Summary: fmt.Sprintf("S%d", idx), Title: fmt.Sprintf("T%d", idx)}, nil
	}}

	p := NewPipeline(analyzer, &fakeSegmenter{segments: indexedSegments(3)}, nil, Options{IngressLimit: 32, Workers: 3}, logger.New())
	job := domain.UploadJob{Path: path, Filename: "long.mp3", MIMEType: "audio/mpeg", Size: 64, Meta: testMeta()}

	merged, err := p.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := "S0" + SummarySeparator + "S1" + SummarySeparator + "S2"
	if merged.Summary != want {
		t.Fatalf("expected %q, got %q", want, merged.Summary)
	}
	if merged.Title != "T0" {
		t.Fatalf("expected first segment title, got %q", merged.Title)
	}
	if analyzer.calls.Load() != 3 {
		t.Fatalf("expected 3 analyzer calls, got %d", analyzer.calls.Load())
	}
}

func TestRunAbortsWhenOneSegmentFails(t *testing.T) {
	path := writeUpload(t, 64)

	analyzer := &fakeAnalyzer{fn: func(_ context.Context, payload []byte, _ string, _ domain.Metadata) (domain.SegmentResult, error) {
		if payload[0] == 1 {
			return domain.SegmentResult{}, fmt.Errorf("%w: remote exploded", domain.ErrAnalysis)
		}
		return domain.SegmentResult{Summary: "ok"}, nil
	}}

	p := NewPipeline(analyzer, &fakeSegmenter{segments: indexedSegments(3)}, nil, Options{IngressLimit: 32, Workers: 2}, logger.New())
	job := domain.UploadJob{Path: path, Filename: "long.mp3", MIMEType: "audio/mpeg", Size: 64, Meta: testMeta()}

	merged, err := p.Run(context.Background(), job)
	if !errors.Is(err, domain.ErrAnalysis) {
		t.Fatalf("expected ErrAnalysis, got %v", err)
	}
	if merged.Summary != "" || merged.Title != "" || len(merged.ConfirmationItems) != 0 {
		t.Fatalf("partial result escaped: %+v", merged)
	}
}

func TestRunRejectsMissingMetadata(t *testing.T) {
	path := writeUpload(t, 64)
	analyzer := &fakeAnalyzer{fn: func(_ context.Context, _ []byte, _ string, _ domain.Metadata) (domain.SegmentResult, error) {
		return domain.SegmentResult{Summary: "x"}, nil
	}}

	meta := testMeta()
	meta.CustomerName = "   "

	p := NewPipeline(analyzer, &fakeSegmenter{}, nil, Options{IngressLimit: 1024, Workers: 1}, logger.New())
	job := domain.UploadJob{Path: path, Filename: "meeting.mp3", MIMEType: "audio/mpeg", Size: 64, Meta: meta}

	if _, err := p.Run(context.Background(), job); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if analyzer.calls.Load() != 0 {
		t.Fatalf("analyzer should not run on invalid input")
	}
}

func TestRunSurfacesDecodeFailure(t *testing.T) {
	path := writeUpload(t, 64)
	analyzer := &fakeAnalyzer{fn: func(_ context.Context, _ []byte, _ string, _ domain.Metadata) (domain.SegmentResult, error) {
		return domain.SegmentResult{Summary: "x"}, nil
	}}
	segmenter := &fakeSegmenter{err: fmt.Errorf("%w: corrupt container", domain.ErrDecode)}

	p := NewPipeline(analyzer, segmenter, nil, Options{IngressLimit: 32, Workers: 1}, logger.New())
	job := domain.UploadJob{Path: path, Filename: "broken.m4a", MIMEType: "audio/mp4", Size: 64, Meta: testMeta()}

	if _, err := p.Run(context.Background(), job); !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if analyzer.calls.Load() != 0 {
		t.Fatalf("analyzer should not run after decode failure")
	}
}

func TestRunPolishReplacesSummary(t *testing.T) {
	path := writeUpload(t, 64)
	analyzer := &fakeAnalyzer{fn: func(_ context.Context, payload []byte, _ string, _ domain.Metadata) (domain.SegmentResult, error) {
		return domain.SegmentResult{Summary: fmt.Sprintf("S%d", payload[0])}, nil
	}}
	polisher := &fakePolisher{out: "unified minutes"}

	p := NewPipeline(analyzer, &fakeSegmenter{segments: indexedSegments(2)}, polisher, Options{IngressLimit: 32, Workers: 1, Polish: true}, logger.New())
	job := domain.UploadJob{Path: path, Filename: "long.mp3", MIMEType: "audio/mpeg", Size: 64, Meta: testMeta()}

	merged, err := p.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if merged.Summary != "unified minutes" {
		t.Fatalf("expected polished summary, got %q", merged.Summary)
	}
	if polisher.calls != 1 {
		t.Fatalf("expected one polish call, got %d", polisher.calls)
	}
}

func TestRunPolishFallsBackOnFailure(t *testing.T) {
	path := writeUpload(t, 64)
	analyzer := &fakeAnalyzer{fn: func(_ context.Context, payload []byte, _ string, _ domain.Metadata) (domain.SegmentResult, error) {
		return domain.SegmentResult{Summary: fmt.Sprintf("S%d", payload[0])}, nil
	}}
	polisher := &fakePolisher{err: errors.New("model unavailable")}

	p := NewPipeline(analyzer, &fakeSegmenter{segments: indexedSegments(2)}, polisher, Options{IngressLimit: 32, Workers: 1, Polish: true}, logger.New())
	job := domain.UploadJob{Path: path, Filename: "long.mp3", MIMEType: "audio/mpeg", Size: 64, Meta: testMeta()}

	merged, err := p.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := "S0" + SummarySeparator + "S1"; merged.Summary != want {
		t.Fatalf("expected deterministic merge %q, got %q", want, merged.Summary)
	}
}

func TestRunPolishSkippedForSingleSegment(t *testing.T) {
	path := writeUpload(t, 64)
	analyzer := &fakeAnalyzer{fn: func(_ context.Context, _ []byte, _ string, _ domain.Metadata) (domain.SegmentResult, error) {
		return domain.SegmentResult{Summary: "whole"}, nil
	}}
	polisher := &fakePolisher{out: "should not appear"}

	p := NewPipeline(analyzer, &fakeSegmenter{}, polisher, Options{IngressLimit: 1024, Workers: 1, Polish: true}, logger.New())
	job := domain.UploadJob{Path: path, Filename: "meeting.mp3", MIMEType: "audio/mpeg", Size: 64, Meta: testMeta()}

	merged, err := p.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if merged.Summary != "whole" {
		t.Fatalf("single segment summary must pass through, got %q", merged.Summary)
	}
	if polisher.calls != 0 {
		t.Fatalf("polisher must not run for a single segment")
	}
}
