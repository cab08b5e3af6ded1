package minutes

import (
	"fmt"
	"strings"

	"github.com/ryom080502-dev/audioGIJI6/internal/domain"
)

// SummarySeparator sits between two adjacent segment summaries in a merged
// document.
const SummarySeparator = "\n\n---\n\n"

// Merge combines per-segment results, already ordered by segment index,
// into one MergedResult. Summaries are joined with SummarySeparator,
// confirmation items are deduplicated by exact string match keeping first
// appearance, and the title comes from the first segment. Merging a single
// result is the identity operation apart from internal duplicate removal.
func Merge(results []domain.SegmentResult) (domain.MergedResult, error) {
	if len(results) == 0 {
		return domain.MergedResult{}, fmt.Errorf("%w: no segment results to merge", domain.ErrInvalidInput)
	}

	summaries := make([]string, 0, len(results))
	items := make([]string, 0)
	seen := make(map[string]struct{})

	for _, r := range results {
		summaries = append(summaries, r.Summary)
		for _, item := range r.ConfirmationItems {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			items = append(items, item)
		}
	}

	return domain.MergedResult{
		Summary:           strings.Join(summaries, SummarySeparator),
		ConfirmationItems: items,
		Title:             results[0].Title,
	}, nil
}
