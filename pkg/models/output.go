package models

import "time"

// Output is a produced dubbed video file.
type Output struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
