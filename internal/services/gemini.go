package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"

	"github.com/ryom080502-dev/audioGIJI6/internal/config"
	"github.com/ryom080502-dev/audioGIJI6/internal/domain"
	"github.com/ryom080502-dev/audioGIJI6/internal/logger"
)

const (
	analysisTemperature float32 = 0.3
	analysisMaxTokens   int32   = 4096
	unifyMaxTokens      int32   = 8192

	// Remote files stay in PROCESSING for a while after upload; give up
	// after a minute like the rest of the analysis path.
	fileProcessingTimeout = 60 * time.Second

	confirmationMarker     = "【💡確認事項】"
	confirmationMarkerBare = "💡確認事項"
)

// segmentPrompt is sent together with each audio slice. The model is told to
// stick to 「・」 bullets so the exported documents render consistently.
const segmentPrompt = `あなたは優秀な書記です。以下の音声内容を解析し、内容を詳細に記録してください。

【重要な指示】
1. 音声の内容を全て聞き取り、漏れなく記録してください
2. 箇条書きには「・」（中黒）のみを使用してください
3. 「*」（アスタリスク）や「#」（ハッシュ）は使用しないでください
4. この音声セグメントで話された内容を時系列で詳細に記録してください
5. 話者が誰か分かる場合は記載してください
6. 決定事項やアクション項目があれば特に明記してください

【出力形式】
話された内容を時系列で詳細に記録してください。箇条書き（・）を使用して整理してください。

音声内容を解析してください。`

// unifyPrompt rewrites the per-segment records into one polished document.
// %s receives the numbered segment blocks.
const unifyPrompt = `以下は同じ会議を時間ごとに分割して解析した複数の記録です。
これらを統合して、読みやすく整理された1つの議事録にまとめてください。

【統合の指示】
1. 全ての分割記録の内容を漏れなく含めてください
2. 重複する内容があれば削除し、一度だけ記載してください
3. 時系列順に整理し、会議全体の流れが分かるようにしてください
4. 箇条書きには「・」（中黒）のみを使用してください
5. 「*」（アスタリスク）や「#」（ハッシュ）は絶対に使用しないでください
6. 5つのセクションに「 1.」～「 5.」の形式で必ず整理してください
7. 各セクションは明確に分けて、読みやすく構成してください
8. 決定事項とネクストアクションは特に丁寧にまとめてください

【必須出力形式】
## 1. 会議の概要
（会議全体の目的、参加者、主なテーマを2-3行で簡潔に記載）

## 2. 議論内容
（議論された内容を時系列で、「・」を使って箇条書きで整理）

## 3. 決定事項
（会議で決まったことを「・」で箇条書きにして明確に記載）

## 4. ネクストアクション
（次に実施すべき行動を、担当者と期限を含めて「・」で箇条書きに記載）

## 5. 補足・確認事項
（追加の補足情報や、後で確認が必要な事項があれば「・」で箇条書きに記載、なければ「なし」）

---
【分割された記録】
%s

上記の分割記録を統合して、上記の5つのセクション形式で出力してください。`

// GeminiService analyzes meeting audio with the Gemini API. It holds a pool
// of API keys and rotates to the next one whenever a call is rate limited.
type GeminiService struct {
	keys    []string
	model   string
	timeout time.Duration
	log     *logger.Logger

	mu      sync.Mutex
	current int
}

func NewGeminiService(cfg config.Config, log *logger.Logger) *GeminiService {
	return &GeminiService{
		keys:    cfg.GeminiAPIKeys,
		model:   cfg.GeminiModel,
		timeout: cfg.AnalyzeTimeout,
		log:     log.WithComponent("gemini"),
	}
}

// AnalyzeAudio uploads one audio payload, asks the model for a detailed
// record of what was said and parses the response into a segment result.
// The whole call, including remote file processing, is bounded by the
// configured analysis timeout.
func (s *GeminiService) AnalyzeAudio(ctx context.Context, payload []byte, mimeType string, meta domain.Metadata) (domain.SegmentResult, error) {
	if err := s.ensureAPIKey(); err != nil {
		return domain.SegmentResult{}, err
	}
	if len(payload) == 0 {
		return domain.SegmentResult{}, fmt.Errorf("%w: empty audio payload", domain.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var result domain.SegmentResult
	err := s.withRotation(ctx, func(client *genai.Client) error {
		res, err := s.analyzeOnce(ctx, client, payload, mimeType)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return domain.SegmentResult{}, err
	}

	result.Title = meta.DynamicTitle()
	return result, nil
}

// UnifySummary merges the per-segment records into one polished document.
// Callers keep their deterministic merge when this fails.
func (s *GeminiService) UnifySummary(ctx context.Context, summaries []string) (string, error) {
	if err := s.ensureAPIKey(); err != nil {
		return "", err
	}
	if len(summaries) == 0 {
		return "", fmt.Errorf("%w: no summaries to unify", domain.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	blocks := make([]string, len(summaries))
	for i, summary := range summaries {
		blocks[i] = fmt.Sprintf("--- セグメント %d ---\n%s", i+1, summary)
	}
	prompt := fmt.Sprintf(unifyPrompt, strings.Join(blocks, "\n\n"))

	var unified string
	err := s.withRotation(ctx, func(client *genai.Client) error {
		resp, err := client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(analysisTemperature),
			MaxOutputTokens: unifyMaxTokens,
		})
		if err != nil {
			return fmt.Errorf("%w: unify summaries: %v", domain.ErrAnalysis, err)
		}

		text := strings.TrimSpace(responseText(resp))
		if text == "" {
			return fmt.Errorf("%w: empty unification response", domain.ErrAnalysis)
		}
		unified = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return unified, nil
}

// withRotation runs fn with a fresh client, moving to the next API key when
// the current one is rate limited. Any other failure is returned as is.
func (s *GeminiService) withRotation(ctx context.Context, fn func(client *genai.Client) error) error {
	attempts := len(s.keys)
	var lastErr error

	for range attempts {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  s.currentKey(),
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			lastErr = fmt.Errorf("create client: %w", err)
			s.rotateKey()
			continue
		}

		if err := fn(client); err != nil {
			if isQuotaError(err) {
				s.log.WithError(err).Warn("api key rate limited, rotating")
				s.rotateKey()
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}

	return fmt.Errorf("%w: all api keys exhausted: %v", domain.ErrAnalysis, lastErr)
}

func (s *GeminiService) analyzeOnce(ctx context.Context, client *genai.Client, payload []byte, mimeType string) (domain.SegmentResult, error) {
	file, err := client.Files.Upload(ctx, bytes.NewReader(payload), &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return domain.SegmentResult{}, fmt.Errorf("%w: upload audio: %v", domain.ErrAnalysis, err)
	}
	defer func() {
		if _, derr := client.Files.Delete(ctx, file.Name, nil); derr != nil {
			s.log.WithError(derr).Warn("failed to delete uploaded file")
		}
	}()

	active, err := s.waitActive(ctx, client, file)
	if err != nil {
		return domain.SegmentResult{}, err
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(segmentPrompt),
		genai.NewPartFromURI(active.URI, active.MIMEType),
	}, genai.RoleUser)}

	resp, err := client.Models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(analysisTemperature),
		MaxOutputTokens: analysisMaxTokens,
	})
	if err != nil {
		return domain.SegmentResult{}, fmt.Errorf("%w: generate content: %v", domain.ErrAnalysis, err)
	}

	summary, items, err := parseAnalysis(responseText(resp))
	if err != nil {
		return domain.SegmentResult{}, err
	}

	return domain.SegmentResult{Summary: summary, ConfirmationItems: items}, nil
}

// waitActive polls the uploaded file until the backend finishes processing
// it. A FAILED state is permanent and aborts immediately.
func (s *GeminiService) waitActive(ctx context.Context, client *genai.Client, file *genai.File) (*genai.File, error) {
	if file.State == genai.FileStateActive {
		return file, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = fileProcessingTimeout

	current := file
	poll := func() error {
		got, err := client.Files.Get(ctx, current.Name, nil)
		if err != nil {
			return err
		}
		current = got

		switch got.State {
		case genai.FileStateActive:
			return nil
		case genai.FileStateFailed:
			return backoff.Permanent(fmt.Errorf("remote processing failed for %s", got.Name))
		default:
			return fmt.Errorf("file %s still in state %s", got.Name, got.State)
		}
	}

	if err := backoff.Retry(poll, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("%w: wait for file processing: %v", domain.ErrAnalysis, err)
	}
	return current, nil
}

func (s *GeminiService) currentKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[s.current]
}

func (s *GeminiService) rotateKey() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = (s.current + 1) % len(s.keys)
}

func (s *GeminiService) ensureAPIKey() error {
	if len(s.keys) == 0 {
		return fmt.Errorf("%w: gemini api key is not configured", domain.ErrAnalysis)
	}
	return nil
}

func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	return text.String()
}

// parseAnalysis splits a model response into the summary body and the
// confirmation items listed under the 【💡確認事項】 marker.
func parseAnalysis(text string) (string, []string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil, fmt.Errorf("%w: empty model response", domain.ErrAnalysis)
	}

	items := extractConfirmationItems(text)

	summary := strings.TrimSpace(stripConfirmationSection(text))
	if summary == "" {
		return "", nil, fmt.Errorf("%w: model response has no summary body", domain.ErrAnalysis)
	}

	return summary, items, nil
}

// extractConfirmationItems collects the bullet lines under the confirmation
// marker, up to the next ## heading. Bullet and numbering prefixes are
// stripped; bare 「なし」 lines are ignored.
func extractConfirmationItems(text string) []string {
	_, section, found := splitOnMarker(text)
	if !found {
		return nil
	}

	if idx := strings.Index(section, "\n##"); idx != -1 {
		section = section[:idx]
	}

	var items []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "なし" {
			continue
		}

		for _, prefix := range []string{"• ", "- ", "* ", "・"} {
			if strings.HasPrefix(line, prefix) {
				line = strings.TrimSpace(strings.TrimPrefix(line, prefix))
				break
			}
		}

		if line != "" && line[0] >= '0' && line[0] <= '9' {
			if idx := strings.Index(line, ". "); idx > 0 && idx < 4 {
				line = strings.TrimSpace(line[idx+2:])
			}
		}

		if line != "" {
			items = append(items, line)
		}
	}
	return items
}

// stripConfirmationSection returns the text that precedes the confirmation
// marker, or the input unchanged when no marker is present.
func stripConfirmationSection(text string) string {
	before, _, found := splitOnMarker(text)
	if !found {
		return text
	}
	return strings.TrimSpace(before)
}

func splitOnMarker(text string) (before, section string, found bool) {
	if b, s, ok := strings.Cut(text, confirmationMarker); ok {
		return b, s, true
	}
	if b, s, ok := strings.Cut(text, confirmationMarkerBare); ok {
		return b, s, true
	}
	return text, "", false
}
