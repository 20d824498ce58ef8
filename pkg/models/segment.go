package models

import (
	"fmt"
)

// Segment is one timestamped unit of transcript text. IDs are assigned by the
// transcriber and stay stable through translation and synthesis; later stages
// annotate TranslatedText and AudioPath in place, they never renumber.
type Segment struct {
	ID             int     `json:"id" db:"id"`
	Start          float64 `json:"start" db:"start"`
	End            float64 `json:"end" db:"end"`
	SourceText     string  `json:"source_text" db:"source_text"`
	TranslatedText string  `json:"translated_text,omitempty" db:"translated_text"`
	AudioPath      string  `json:"audio_path,omitempty" db:"audio_path"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Validate checks the segment's timing invariants.
func (s Segment) Validate() error {
	if s.Start < 0 {
		return fmt.Errorf("segment %d: negative start %.3f", s.ID, s.Start)
	}
	if s.End <= s.Start {
		return fmt.Errorf("segment %d: end %.3f not after start %.3f", s.ID, s.End, s.Start)
	}
	return nil
}

// Transcript is the ordered output of a single transcription call plus the
// detected source language.
type Transcript struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Validate checks that segments are individually valid, sorted by start,
// non-overlapping (abutting is fine) and carry unique IDs.
func (t *Transcript) Validate() error {
	seen := make(map[int]bool, len(t.Segments))
	for i, seg := range t.Segments {
		if err := seg.Validate(); err != nil {
			return err
		}
		if seen[seg.ID] {
			return fmt.Errorf("duplicate segment id %d", seg.ID)
		}
		seen[seg.ID] = true

		if i > 0 {
			prev := t.Segments[i-1]
			if seg.Start < prev.Start {
				return fmt.Errorf("segment %d starts at %.3f before segment %d at %.3f",
					seg.ID, seg.Start, prev.ID, prev.Start)
			}
			if seg.Start < prev.End {
				return fmt.Errorf("segment %d overlaps segment %d", seg.ID, prev.ID)
			}
		}
	}
	return nil
}

// Text joins the source text of all segments.
func (t *Transcript) Text() string {
	var out string
	for i, seg := range t.Segments {
		if i > 0 {
			out += " "
		}
		out += seg.SourceText
	}
	return out
}
