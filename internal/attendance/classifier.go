package attendance

import "github.com/The-Ops-King/closerMetrix-sub003/internal/calls"

// Thresholds are the per-tenant knobs separating a show from a ghosted call.
type Thresholds struct {
	// MinTranscriptChars is the minimum transcript length counted as
	// substantive dialogue. Shorter transcripts are effectively blank.
	MinTranscriptChars int
	// MinSpeakers is the minimum count of distinct speakers for a show.
	MinSpeakers int
}

// ClassifyTranscript maps a transcript's speaker count and character length
// to a terminal attendance outcome. A transcript with fewer distinct
// speakers than the threshold, or below the length floor, means the
// prospect never really participated.
func ClassifyTranscript(speakers, chars int, th Thresholds) calls.AttendanceState {
	if th.MinSpeakers <= 0 {
		th.MinSpeakers = 2
	}
	if th.MinTranscriptChars <= 0 {
		th.MinTranscriptChars = 500
	}
	if speakers >= th.MinSpeakers && chars >= th.MinTranscriptChars {
		return calls.StateShow
	}
	return calls.StateGhosted
}
