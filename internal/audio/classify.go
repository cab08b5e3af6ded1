package audio

import (
	"fmt"

	"github.com/ryom080502-dev/audioGIJI6/internal/domain"
)

// Mode tells the pipeline whether a file fits in a single analysis request.
type Mode string

const (
	ModeDirect    Mode = "DIRECT"
	ModeSegmented Mode = "SEGMENTED"
)

// Classify decides whether a file can be analyzed in one request or must be
// split first. thresholdBytes is the platform's single-request payload cap.
func Classify(sizeBytes, thresholdBytes int64) (Mode, error) {
	if sizeBytes <= 0 {
		return "", fmt.Errorf("%w: file size must be positive, got %d", domain.ErrInvalidInput, sizeBytes)
	}
	if thresholdBytes <= 0 {
		return "", fmt.Errorf("%w: ingress threshold must be positive, got %d", domain.ErrInvalidInput, thresholdBytes)
	}

	if sizeBytes <= thresholdBytes {
		return ModeDirect, nil
	}
	return ModeSegmented, nil
}
