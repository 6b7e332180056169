package generation

import (
	"strings"

	"github.com/ashureev/growthdesk/internal/domain"
)

// Markers in the prompt-stage output.
const (
	ImagePromptMarker    = "IMAGE PROMPT:"
	NegativePromptMarker = "NEGATIVE PROMPT:"
)

// ParsePromptPair splits raw prompt-stage output into an image prompt and a
// negative prompt. A missing negative marker leaves NegativePrompt empty.
func ParsePromptPair(raw string) domain.PromptPair {
	parts := strings.Split(raw, NegativePromptMarker)
	pair := domain.PromptPair{
		ImagePrompt: strings.TrimSpace(strings.Replace(parts[0], ImagePromptMarker, "", 1)),
		Raw:         raw,
	}
	// Only the segment between the first and second marker is kept.
	if len(parts) > 1 {
		pair.NegativePrompt = strings.TrimSpace(parts[1])
	}
	return pair
}

// FormatPromptPair renders a pair back into the marker format.
func FormatPromptPair(p domain.PromptPair) string {
	return ImagePromptMarker + " " + p.ImagePrompt + "\n" + NegativePromptMarker + " " + p.NegativeOrNA()
}
