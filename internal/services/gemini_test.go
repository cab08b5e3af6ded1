package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ryom080502-dev/audioGIJI6/internal/domain"
)

func TestParseAnalysisSplitsSummaryAndItems(t *testing.T) {
	text := "会議の記録\n・予算は合意済み\n・次期計画を説明\n\n【💡確認事項】\n・ 次回日程の確定\n• リリース日の承認\n1. 契約書の最終確認\nなし\n"

	summary, items, err := parseAnalysis(text)
	if err != nil {
		t.Fatalf("parseAnalysis returned error: %v", err)
	}

	wantSummary := "会議の記録\n・予算は合意済み\n・次期計画を説明"
	if summary != wantSummary {
		t.Fatalf("summary = %q, want %q", summary, wantSummary)
	}

	wantItems := []string{"次回日程の確定", "リリース日の承認", "契約書の最終確認"}
	if len(items) != len(wantItems) {
		t.Fatalf("items = %v, want %v", items, wantItems)
	}
	for i, want := range wantItems {
		if items[i] != want {
			t.Fatalf("items[%d] = %q, want %q", i, items[i], want)
		}
	}
}

func TestParseAnalysisBareMarkerFallback(t *testing.T) {
	summary, items, err := parseAnalysis("本文の内容\n💡確認事項\n- 確認A\n")
	if err != nil {
		t.Fatalf("parseAnalysis returned error: %v", err)
	}
	if summary != "本文の内容" {
		t.Fatalf("summary = %q, want %q", summary, "本文の内容")
	}
	if len(items) != 1 || items[0] != "確認A" {
		t.Fatalf("items = %v, want [確認A]", items)
	}
}

func TestParseAnalysisNoMarker(t *testing.T) {
	summary, items, err := parseAnalysis("  確認事項のない記録です。  ")
	if err != nil {
		t.Fatalf("parseAnalysis returned error: %v", err)
	}
	if summary != "確認事項のない記録です。" {
		t.Fatalf("summary = %q", summary)
	}
	if len(items) != 0 {
		t.Fatalf("items = %v, want none", items)
	}
}

func TestExtractConfirmationItemsStopsAtNextHeading(t *testing.T) {
	text := "本文\n【💡確認事項】\n・確認A\n## 5. 補足\n・補足B\n"

	items := extractConfirmationItems(text)
	if len(items) != 1 || items[0] != "確認A" {
		t.Fatalf("items = %v, want [確認A]", items)
	}
}

func TestParseAnalysisEmptyResponse(t *testing.T) {
	for name, text := range map[string]string{
		"blank":      "   \n ",
		"markerOnly": "【💡確認事項】\n・確認A\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := parseAnalysis(text)
			if !errors.Is(err, domain.ErrAnalysis) {
				t.Fatalf("parseAnalysis(%q) error = %v, want ErrAnalysis", text, err)
			}
		})
	}
}

func TestAnalyzeAudioWithoutKeys(t *testing.T) {
	svc := &GeminiService{}

	_, err := svc.AnalyzeAudio(context.Background(), []byte{1}, "audio/mpeg", domain.Metadata{})
	if !errors.Is(err, domain.ErrAnalysis) {
		t.Fatalf("AnalyzeAudio error = %v, want ErrAnalysis", err)
	}
}

func TestIsQuotaError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("googleapi: Error 429: rate limit"), true},
		{errors.New("quota exceeded for project"), true},
		{errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED"), true},
		{errors.New("connection refused"), false},
	}

	for _, tc := range cases {
		if got := isQuotaError(tc.err); got != tc.want {
			t.Fatalf("isQuotaError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
