package transcription

import (
	"fmt"
	"strings"
)

// Segments below this confidence get an explicit annotation in the
// formatted transcript.
const lowConfidenceThreshold = 0.8

// Format renders diarized segments as human-readable text grouped by
// speaker. A header line precedes each change of speaker; consecutive
// segments from the same speaker share one header. Whitespace-only
// segments are skipped without affecting the current speaker. Low
// confidence values are annotated to two decimal places. An empty
// input yields an empty string.
func Format(segments []RecognizedSegment) string {
	var lines []string
	var current string
	started := false

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if !started || seg.SpeakerID != current {
			lines = append(lines, fmt.Sprintf("--- Speaker %s ---", seg.SpeakerID))
			current = seg.SpeakerID
			started = true
		}
		if seg.Confidence < lowConfidenceThreshold {
			text = fmt.Sprintf("%s [Confidence: %.2f]", text, seg.Confidence)
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}
