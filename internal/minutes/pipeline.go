package minutes

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ryom080502-dev/audioGIJI6/internal/audio"
	"github.com/ryom080502-dev/audioGIJI6/internal/domain"
	"github.com/ryom080502-dev/audioGIJI6/internal/logger"
)

// Analyzer is the remote transcription/summarization boundary. Any failure
// it reports aborts the whole job; retries are not this package's concern.
type Analyzer interface {
	AnalyzeAudio(ctx context.Context, payload []byte, mimeType string, meta domain.Metadata) (domain.SegmentResult, error)
}

// Segmenter produces independently decodable slices of a recording.
type Segmenter interface {
	Segment(ctx context.Context, path string) ([]domain.AudioSegment, error)
}

// Polisher optionally rewrites the per-segment summaries into one unified
// minutes document. Failures fall back to the deterministic merge output.
type Polisher interface {
	UnifySummary(ctx context.Context, summaries []string) (string, error)
}

type Options struct {
	IngressLimit int64 // bytes; single-request cap of the analysis platform
	Workers      int   // bounded concurrency for segment analysis; 1 = sequential
	Polish       bool  // rewrite merged summaries through the model
}

// Pipeline runs one upload job start to finish: classify, split when
// needed, analyze every part, merge.
type Pipeline struct {
	analyzer  Analyzer
	segmenter Segmenter
	polisher  Polisher
	opts      Options
	log       *logger.Logger
}

func NewPipeline(analyzer Analyzer, segmenter Segmenter, polisher Polisher, opts Options, log *logger.Logger) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{
		analyzer:  analyzer,
		segmenter: segmenter,
		polisher:  polisher,
		opts:      opts,
		log:       log.WithComponent("pipeline"),
	}
}

// Run consumes the job exactly once. A failure on any segment aborts the
// whole job; no partial MergedResult ever escapes.
func (p *Pipeline) Run(ctx context.Context, job domain.UploadJob) (domain.MergedResult, error) {
	if err := validateJob(job); err != nil {
		return domain.MergedResult{}, err
	}

	mode, err := audio.Classify(job.Size, p.opts.IngressLimit)
	if err != nil {
		return domain.MergedResult{}, err
	}

	p.log.WithField("mode", string(mode)).
		WithField("size", job.Size).
		WithField("filename", job.Filename).
		Info("classified upload")

	var results []domain.SegmentResult
	switch mode {
	case audio.ModeDirect:
		results, err = p.analyzeWhole(ctx, job)
	default:
		results, err = p.analyzeSegmented(ctx, job)
	}
	if err != nil {
		return domain.MergedResult{}, err
	}

	merged, err := Merge(results)
	if err != nil {
		return domain.MergedResult{}, err
	}

	if p.opts.Polish && p.polisher != nil && len(results) > 1 {
		merged.Summary = p.polish(ctx, results, merged.Summary)
	}

	return merged, nil
}

func validateJob(job domain.UploadJob) error {
	if job.Path == "" {
		return fmt.Errorf("%w: missing audio payload", domain.ErrInvalidInput)
	}
	for field, value := range map[string]string{
		"created_date":  job.Meta.CreatedDate,
		"creator":       job.Meta.Creator,
		"customer_name": job.Meta.CustomerName,
		"meeting_place": job.Meta.MeetingPlace,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, field)
		}
	}
	return nil
}

func (p *Pipeline) analyzeWhole(ctx context.Context, job domain.UploadJob) ([]domain.SegmentResult, error) {
	payload, err := os.ReadFile(job.Path)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	res, err := p.analyzer.AnalyzeAudio(ctx, payload, job.MIMEType, job.Meta)
	if err != nil {
		return nil, err
	}
	res.Index = 0
	return []domain.SegmentResult{res}, nil
}

// analyzeSegmented fans segment analysis out over a bounded worker count.
// Results land in an index-addressed slice so the merge input is ordered by
// segment index, not by network completion order.
func (p *Pipeline) analyzeSegmented(ctx context.Context, job domain.UploadJob) ([]domain.SegmentResult, error) {
	segments, err := p.segmenter.Segment(ctx, job.Path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]domain.SegmentResult, len(segments))
	errs := make([]error, len(segments))
	sem := make(chan struct{}, p.opts.Workers)

	var wg sync.WaitGroup
	for i := range segments {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			seg := segments[idx]
			p.log.WithField("segment", seg.Index).
				WithField("total", len(segments)).
				Info("analyzing segment")

			res, err := p.analyzer.AnalyzeAudio(ctx, seg.Payload, seg.MIMEType, job.Meta)
			if err != nil {
				errs[idx] = fmt.Errorf("segment %d: %w", seg.Index, err)
				cancel()
				return
			}

			res.Index = seg.Index
			results[idx] = res
			segments[idx].Payload = nil // segment is done, release it
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: job canceled: %v", domain.ErrAnalysis, err)
	}

	return results, nil
}

func (p *Pipeline) polish(ctx context.Context, results []domain.SegmentResult, fallback string) string {
	summaries := make([]string, len(results))
	for i, r := range results {
		summaries[i] = r.Summary
	}

	unified, err := p.polisher.UnifySummary(ctx, summaries)
	if err != nil || strings.TrimSpace(unified) == "" {
		p.log.WithError(err).Warn("summary unification failed, keeping deterministic merge")
		return fallback
	}
	return unified
}
