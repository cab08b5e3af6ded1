package minutes

import (
	"errors"
	"testing"

	"github.com/ryom080502-dev/audioGIJI6/internal/domain"
)

func TestMergeSingleIsIdentity(t *testing.T) {
	in := domain.SegmentResult{
		Index:             0,
		Summary:           "・冒頭挨拶\n・本題の議論",
		ConfirmationItems: []string{"納期の確認", "担当者の確定", "納期の確認"},
		Title:             "2024-05-01_田中_株式会社東雲_本社_議事録",
	}

	merged, err := Merge([]domain.SegmentResult{in})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	if merged.Summary != in.Summary {
		t.Fatalf("summary changed: %q", merged.Summary)
	}
	if merged.Title != in.Title {
		t.Fatalf("title changed: %q", merged.Title)
	}
	assertItems(t, merged.ConfirmationItems, []string{"納期の確認", "担当者の確定"})
}

func TestMergeTwoSegments(t *testing.T) {
	results := []domain.SegmentResult{
		{Index: 0, Summary: "A", ConfirmationItems: []string{"x", "y"}, Title: "first title"},
		{Index: 1, Summary: "B", ConfirmationItems: []string{"y", "z"}, Title: "second title"},
	}

	merged, err := Merge(results)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	if merged.Summary != "A\n\n---\n\nB" {
		t.Fatalf("unexpected summary: %q", merged.Summary)
	}
	assertItems(t, merged.ConfirmationItems, []string{"x", "y", "z"})
	if merged.Title != "first title" {
		t.Fatalf("expected first segment title, got %q", merged.Title)
	}
}

func TestMergeDedupIsExactString(t *testing.T) {
	results := []domain.SegmentResult{
		{Summary: "A", ConfirmationItems: []string{"予算の確認", "予算の確認 "}},
		{Summary: "B", ConfirmationItems: []string{"予算の確認", "Budget check", "budget check"}},
	}

	merged, err := Merge(results)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	// trailing whitespace and letter case make distinct items
	assertItems(t, merged.ConfirmationItems, []string{"予算の確認", "予算の確認 ", "Budget check", "budget check"})
}

func TestMergeEmptyInput(t *testing.T) {
	if _, err := Merge(nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func assertItems(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d items %v, got %d %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
